package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

var (
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrMessageTooLong  = errors.New("message text exceeds the maximum length")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMessageOwner = errors.New("message belongs to another user")
)

// DefaultHistoryLimit is the page size when the caller does not specify one.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps how many messages one history page may return.
const MaxHistoryLimit = 200

// MessageService persists room messages and fans them out to subscribers.
type MessageService struct {
	Store      store.Store
	Membership *MembershipService
	Events     EventPublisher
}

func (s *MessageService) events() EventPublisher {
	if s.Events == nil {
		return NopPublisher{}
	}
	return s.Events
}

// SendMessage validates, persists, and fans out a text message. Only current
// room members may send.
func (s *MessageService) SendMessage(
	ctx context.Context,
	roomID, userID idx.ID,
	username, text string,
) (domain.Message, error) {
	log := slogx.FromContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if len(text) > domain.MaxMessageLength {
		return domain.Message{}, ErrMessageTooLong
	}

	if _, err := s.Store.Rooms().GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Message{}, ErrRoomNotFound
		}
		return domain.Message{}, err
	}

	member, err := s.Store.Rooms().HasActiveUser(ctx, roomID, userID)
	if err != nil {
		return domain.Message{}, err
	}
	if !member {
		log.Warn("non-member attempted to send a message",
			slog.String("room_id", roomID.String()),
			slog.String("user_id", userID.String()),
		)
		return domain.Message{}, ErrNotRoomMember
	}

	now := time.Now()
	msg := domain.Message{
		ID:        idx.New(),
		RoomID:    roomID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		Type:      domain.MessageTypeText,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.Messages().CreateMessage(ctx, msg); err != nil {
		log.Error("failed to persist message",
			slog.String("room_id", roomID.String()),
			slog.Any("error", err),
		)
		return domain.Message{}, err
	}

	s.events().Publish(roomID, ws.NewEvent(ws.EventMessage, roomID, msg))
	return msg, nil
}

// History pages through a room's message log. Membership is required; the
// history of a room is not public.
func (s *MessageService) History(
	ctx context.Context,
	roomID, userID idx.ID,
	page, limit int,
) (domain.MessagePage, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if _, err := s.Store.Rooms().GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MessagePage{}, ErrRoomNotFound
		}
		return domain.MessagePage{}, err
	}

	member, err := s.Store.Rooms().HasActiveUser(ctx, roomID, userID)
	if err != nil {
		return domain.MessagePage{}, err
	}
	if !member {
		return domain.MessagePage{}, ErrNotRoomMember
	}

	return s.Store.Messages().ListRoomMessages(ctx, roomID, page, limit)
}

// DeleteMessage soft-deletes a message. The author may delete their own;
// admins may delete anyone's.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, requester idx.ID, requesterRole string) error {
	log := slogx.FromContext(ctx)

	msg, err := s.Store.Messages().GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if msg.UserID != requester && requesterRole != domain.RoleAdmin {
		return ErrNotMessageOwner
	}

	if err := s.Store.Messages().SoftDeleteMessage(ctx, messageID, requester, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		log.Error("failed to delete message",
			slog.String("message_id", messageID.String()),
			slog.Any("error", err),
		)
		return err
	}

	log.Info("message deleted",
		slog.String("message_id", messageID.String()),
		slog.String("deleted_by", requester.String()),
	)
	return nil
}
