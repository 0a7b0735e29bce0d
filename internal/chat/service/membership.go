package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrNotRoomMember       = errors.New("not a member of this room")
	ErrNotInRoom           = errors.New("user not in room")
	ErrRoomNameTaken       = errors.New("room name already taken")
	ErrInvalidRoomName     = errors.New("invalid room name")
	ErrCannotDeleteDefault = errors.New("the default room cannot be deleted")
	ErrCannotModifyDefault = errors.New("the default room cannot be modified")
)

// VoiceEnsurer provisions a room's voice session. Satisfied by VoiceService;
// nil disables voice entirely.
type VoiceEnsurer interface {
	EnsureVoiceRoom(ctx context.Context, roomID idx.ID) (string, error)
}

// MembershipService owns room lifecycle and the membership ledger.
//
// Joins and leaves for one room are serialized through a per-room mutex so the
// capacity check and the membership append happen atomically even though they
// are separate statements. The mutex guards within this process; the
// transaction keeps the store consistent.
type MembershipService struct {
	Store  store.Store
	Events EventPublisher
	Voice  VoiceEnsurer

	mu    sync.Mutex
	locks map[idx.ID]*sync.Mutex
}

func (s *MembershipService) roomLock(roomID idx.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[idx.ID]*sync.Mutex)
	}
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	return l
}

func (s *MembershipService) events() EventPublisher {
	if s.Events == nil {
		return NopPublisher{}
	}
	return s.Events
}

// CreateRoom creates a new named room.
func (s *MembershipService) CreateRoom(
	ctx context.Context,
	name, description string,
	maxUsers int,
	isDefault bool,
) (domain.Room, error) {
	log := slogx.FromContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, ErrInvalidRoomName
	}
	if maxUsers < 1 {
		maxUsers = domain.DefaultMaxUsers
	}

	now := time.Now()
	room := domain.Room{
		ID:          idx.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		IsDefault:   isDefault,
		MaxUsers:    maxUsers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Store.Rooms().CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Room{}, ErrRoomNameTaken
		}
		log.Error("failed to create room", slog.Any("error", err))
		return domain.Room{}, err
	}

	log.Info("room created",
		slog.String("room_id", room.ID.String()),
		slog.String("name", room.Name),
		slog.Int("max_users", room.MaxUsers),
	)
	return room, nil
}

// GetRoom returns the room with its membership list loaded.
func (s *MembershipService) GetRoom(ctx context.Context, roomID idx.ID) (domain.Room, error) {
	room, err := s.Store.Rooms().GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Room{}, ErrRoomNotFound
		}
		return domain.Room{}, err
	}

	members, err := s.Store.Rooms().ListActiveUsers(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	room.ActiveUsers = members
	return room, nil
}

// ListRooms returns all live rooms with active-user counts.
func (s *MembershipService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return s.Store.Rooms().ListRooms(ctx)
}

// ListActiveUsers returns the membership list of one room.
func (s *MembershipService) ListActiveUsers(ctx context.Context, roomID idx.ID) ([]domain.ActiveUser, error) {
	if _, err := s.Store.Rooms().GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return s.Store.Rooms().ListActiveUsers(ctx, roomID)
}

// UpdateRoom edits a room's name, description, and capacity. The default
// room is immutable. Capacity can shrink below the current membership;
// existing members stay, new joins are refused until attrition brings the
// room back under the limit.
func (s *MembershipService) UpdateRoom(
	ctx context.Context,
	roomID idx.ID,
	name, description string,
	maxUsers int,
) (domain.Room, error) {
	log := slogx.FromContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, ErrInvalidRoomName
	}
	if maxUsers < 1 {
		return domain.Room{}, ErrInvalidRoomName
	}

	room, err := s.Store.Rooms().GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Room{}, ErrRoomNotFound
		}
		return domain.Room{}, err
	}
	if room.IsDefault {
		return domain.Room{}, ErrCannotModifyDefault
	}

	err = s.Store.Rooms().UpdateRoom(ctx, roomID, name, strings.TrimSpace(description), maxUsers)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Room{}, ErrRoomNotFound
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.Room{}, ErrRoomNameTaken
		}
		log.Error("failed to update room",
			slog.String("room_id", roomID.String()),
			slog.Any("error", err),
		)
		return domain.Room{}, err
	}

	return s.GetRoom(ctx, roomID)
}

// DeleteRoom soft-deletes the room and its message history, then evicts all
// websocket subscribers. The default room is protected.
func (s *MembershipService) DeleteRoom(ctx context.Context, roomID, deletedBy idx.ID) error {
	log := slogx.FromContext(ctx)

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		room, err := tx.Rooms().GetRoomByID(ctx, roomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if room.IsDefault {
			return ErrCannotDeleteDefault
		}

		now := time.Now()
		if err := tx.Rooms().SoftDeleteRoom(ctx, roomID, deletedBy, now); err != nil {
			return err
		}
		return tx.Messages().SoftDeleteRoomMessages(ctx, roomID, deletedBy, now)
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrCannotDeleteDefault) {
			log.Error("failed to delete room",
				slog.String("room_id", roomID.String()),
				slog.Any("error", err),
			)
		}
		return err
	}

	s.events().CloseRoom(roomID)

	log.Info("room deleted",
		slog.String("room_id", roomID.String()),
		slog.String("deleted_by", deletedBy.String()),
	)
	return nil
}

// JoinRoom adds the user to the room's membership ledger. Joining a room the
// user already belongs to is a no-op: no duplicate entry, no second system
// message. A successful first join appends a system message and fans out the
// presence change.
func (s *MembershipService) JoinRoom(ctx context.Context, roomID, userID idx.ID, username string) (domain.Room, error) {
	log := slogx.FromContext(ctx)

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	var (
		joined bool
		sysMsg domain.Message
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		room, err := tx.Rooms().GetRoomByID(ctx, roomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		already, err := tx.Rooms().HasActiveUser(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if already {
			return nil
		}

		count, err := tx.Rooms().CountActiveUsers(ctx, roomID)
		if err != nil {
			return err
		}
		if count >= room.MaxUsers {
			return ErrRoomFull
		}

		now := time.Now()
		err = tx.Rooms().AddActiveUser(ctx, domain.ActiveUser{
			RoomID:   roomID,
			UserID:   userID,
			Username: username,
			JoinedAt: now,
		})
		if err != nil {
			return err
		}

		sysMsg = systemMessage(roomID, userID, username, fmt.Sprintf("%s joined the room", username), now)
		if err := tx.Messages().CreateMessage(ctx, sysMsg); err != nil {
			return err
		}

		joined = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoomFull) {
			log.Info("join refused, room full",
				slog.String("room_id", roomID.String()),
				slog.String("user_id", userID.String()),
			)
		} else if !errors.Is(err, ErrRoomNotFound) {
			log.Error("failed to join room",
				slog.String("room_id", roomID.String()),
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		}
		return domain.Room{}, err
	}

	if joined {
		// Attach live connections first so the joiner sees their own join.
		s.events().SubscribeUser(roomID, userID)
		s.events().Publish(roomID, ws.NewEvent(ws.EventMessage, roomID, sysMsg))
		s.events().Publish(roomID, ws.NewEvent(ws.EventUserJoined, roomID, ws.PresenceData{
			UserID:   userID,
			Username: username,
		}))

		// Voice is best effort relative to chat membership: a provisioning
		// failure leaves the room chat-only, it never undoes the join.
		if s.Voice != nil {
			if _, err := s.Voice.EnsureVoiceRoom(ctx, roomID); err != nil {
				log.Warn("voice provisioning failed, room stays chat-only",
					slog.String("room_id", roomID.String()),
					slog.Any("error", err),
				)
			}
		}

		log.Info("user joined room",
			slog.String("room_id", roomID.String()),
			slog.String("user_id", userID.String()),
		)
	}

	return s.GetRoom(ctx, roomID)
}

// LeaveRoom removes the user's membership entry. Leaving a room the user is
// not in fails with ErrNotInRoom.
func (s *MembershipService) LeaveRoom(ctx context.Context, roomID, userID idx.ID, username string) error {
	log := slogx.FromContext(ctx)

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	var sysMsg domain.Message

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Rooms().GetRoomByID(ctx, roomID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		removed, err := tx.Rooms().RemoveActiveUser(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotInRoom
		}

		now := time.Now()
		sysMsg = systemMessage(roomID, userID, username, fmt.Sprintf("%s left the room", username), now)
		return tx.Messages().CreateMessage(ctx, sysMsg)
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrNotInRoom) {
			log.Error("failed to leave room",
				slog.String("room_id", roomID.String()),
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		}
		return err
	}

	s.events().Publish(roomID, ws.NewEvent(ws.EventMessage, roomID, sysMsg))
	s.events().Publish(roomID, ws.NewEvent(ws.EventUserLeft, roomID, ws.PresenceData{
		UserID:   userID,
		Username: username,
	}))
	s.events().UnsubscribeUser(roomID, userID)
	log.Info("user left room",
		slog.String("room_id", roomID.String()),
		slog.String("user_id", userID.String()),
	)

	return nil
}

// IsMember reports whether the user currently belongs to the room.
func (s *MembershipService) IsMember(ctx context.Context, roomID, userID idx.ID) (bool, error) {
	return s.Store.Rooms().HasActiveUser(ctx, roomID, userID)
}

func systemMessage(roomID, userID idx.ID, username, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:        idx.New(),
		RoomID:    roomID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		Type:      domain.MessageTypeSystem,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
