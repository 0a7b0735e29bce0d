package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/voice"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

// ErrVoiceUnavailable is returned when the upstream voice infrastructure
// cannot be reached or refuses the request.
var ErrVoiceUnavailable = errors.New("voice infrastructure unavailable")

// VoiceService provisions per-room voice sessions and mints join tokens.
//
// Every text room has at most one voice room. The handle is derived
// deterministically from the room ID, so two concurrent provisioners ask the
// upstream for the same name and the upstream's idempotent create resolves
// the race; the store's conditional claim then decides which caller records
// the handle, and the loser adopts it.
type VoiceService struct {
	Store  store.Store
	Client voice.Client
	Events EventPublisher

	TokenTTL time.Duration
}

func (s *VoiceService) events() EventPublisher {
	if s.Events == nil {
		return NopPublisher{}
	}
	return s.Events
}

// voiceRoomName derives the stable upstream handle for a room.
func voiceRoomName(roomID idx.ID) string {
	return fmt.Sprintf("voice-%s", strings.ToLower(roomID.String()))
}

// EnsureVoiceRoom provisions the room's voice session if it does not exist
// yet and returns the handle. Idempotent and safe to call concurrently.
func (s *VoiceService) EnsureVoiceRoom(ctx context.Context, roomID idx.ID) (string, error) {
	log := slogx.FromContext(ctx)

	room, err := s.Store.Rooms().GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrRoomNotFound
		}
		return "", err
	}

	if room.VoiceRoomName != "" {
		// Re-create upstream if it was reclaimed after idling empty.
		exists, err := s.Client.RoomExists(ctx, room.VoiceRoomName)
		if err != nil {
			log.Error("failed to check voice room", slog.Any("error", err))
			return "", ErrVoiceUnavailable
		}
		if !exists {
			if err := s.Client.CreateRoom(ctx, room.VoiceRoomName, room.MaxUsers); err != nil {
				log.Error("failed to re-create voice room", slog.Any("error", err))
				return "", ErrVoiceUnavailable
			}
		}
		return room.VoiceRoomName, nil
	}

	name := voiceRoomName(roomID)
	if err := s.Client.CreateRoom(ctx, name, room.MaxUsers); err != nil {
		log.Error("failed to create voice room",
			slog.String("room_id", roomID.String()),
			slog.Any("error", err),
		)
		return "", ErrVoiceUnavailable
	}

	won, err := s.Store.Rooms().ClaimVoiceRoomName(ctx, roomID, name)
	if err != nil {
		return "", err
	}
	if !won {
		// A concurrent provisioner recorded the handle first; adopt theirs.
		room, err = s.Store.Rooms().GetRoomByID(ctx, roomID)
		if err != nil {
			return "", err
		}
		return room.VoiceRoomName, nil
	}

	log.Info("voice room provisioned",
		slog.String("room_id", roomID.String()),
		slog.String("voice_room", name),
	)
	return name, nil
}

// JoinVoice mints a join token for a room member and marks them voice-active.
// The participant identity is the user's ID, so the upstream enforces one
// concurrent voice session per user per room.
func (s *VoiceService) JoinVoice(
	ctx context.Context,
	roomID, userID idx.ID,
	username string,
) (token, roomName string, err error) {
	log := slogx.FromContext(ctx)

	member, err := s.Store.Rooms().HasActiveUser(ctx, roomID, userID)
	if err != nil {
		return "", "", err
	}
	if !member {
		return "", "", ErrNotRoomMember
	}

	roomName, err = s.EnsureVoiceRoom(ctx, roomID)
	if err != nil {
		return "", "", err
	}

	token, err = s.Client.MintAccessToken(roomName, userID.String(), username, s.TokenTTL)
	if err != nil {
		log.Error("failed to mint voice token",
			slog.String("room_id", roomID.String()),
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return "", "", ErrVoiceUnavailable
	}

	if err := s.Store.Rooms().SetVoiceParticipant(ctx, roomID, userID, userID.String(), true); err != nil {
		return "", "", err
	}

	s.events().Publish(roomID, ws.NewEvent(ws.EventVoiceJoined, roomID, ws.PresenceData{
		UserID:   userID,
		Username: username,
	}))

	log.Info("voice token minted",
		slog.String("room_id", roomID.String()),
		slog.String("user_id", userID.String()),
	)
	return token, roomName, nil
}

// LeaveVoice clears the member's voice state and kicks their upstream
// participant. Leaving voice while not in it is a no-op.
func (s *VoiceService) LeaveVoice(ctx context.Context, roomID, userID idx.ID, username string) error {
	log := slogx.FromContext(ctx)

	room, err := s.Store.Rooms().GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	err = s.Store.Rooms().SetVoiceParticipant(ctx, roomID, userID, "", false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if room.VoiceRoomName != "" {
		// Eviction is best effort; the participant's token expires anyway.
		if err := s.Client.RemoveParticipant(ctx, room.VoiceRoomName, userID.String()); err != nil {
			log.Debug("failed to remove voice participant",
				slog.String("room_id", roomID.String()),
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		}
	}

	s.events().Publish(roomID, ws.NewEvent(ws.EventVoiceLeft, roomID, ws.PresenceData{
		UserID:   userID,
		Username: username,
	}))
	return nil
}

// TeardownVoiceRoom deletes the upstream voice room, if one was provisioned.
// Called when the text room is deleted.
func (s *VoiceService) TeardownVoiceRoom(ctx context.Context, voiceRoom string) error {
	if voiceRoom == "" {
		return nil
	}

	log := slogx.FromContext(ctx)
	if err := s.Client.DeleteRoom(ctx, voiceRoom); err != nil {
		log.Warn("failed to tear down voice room",
			slog.String("voice_room", voiceRoom),
			slog.Any("error", err),
		)
		return ErrVoiceUnavailable
	}
	return nil
}
