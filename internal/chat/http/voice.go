package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type VoiceHandler struct {
	Voice *service.VoiceService

	// ServerURL is the websocket URL clients connect to with their token.
	ServerURL string
}

func (h *VoiceHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	userID, username, _, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	token, roomName, err := h.Voice.JoinVoice(ctx, roomID, userID, username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrNotRoomMember):
			httpx.WriteError(w, http.StatusForbidden, "not_a_member", "Join the room before joining voice")
		case errors.Is(err, service.ErrVoiceUnavailable):
			httpx.WriteError(w, http.StatusBadGateway, "voice_unavailable", "Voice infrastructure is unavailable")
		default:
			slogx.FromContext(ctx).Error("failed to join voice", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to join voice")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, voiceTokenResponse{
		Token:     token,
		RoomName:  roomName,
		ServerURL: h.ServerURL,
	})
}

func (h *VoiceHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	userID, username, _, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.Voice.LeaveVoice(ctx, roomID, userID, username); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
			return
		}
		slogx.FromContext(ctx).Error("failed to leave voice", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to leave voice")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
