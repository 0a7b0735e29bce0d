package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type MessagesHandler struct {
	Messages *service.MessageService
}

func (h *MessagesHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
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

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	msg, err := h.Messages.SendMessage(ctx, roomID, userID, username, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrNotRoomMember):
			httpx.WriteError(w, http.StatusForbidden, "not_a_member", "Join the room before sending messages")
		case errors.Is(err, service.ErrEmptyMessage):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Message text is required")
		case errors.Is(err, service.ErrMessageTooLong):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Message text is too long")
		default:
			slogx.FromContext(ctx).Error("failed to send message", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to send message")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *MessagesHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	userID, _, _, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.Messages.History(ctx, roomID, userID, page, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrNotRoomMember):
			httpx.WriteError(w, http.StatusForbidden, "not_a_member", "Join the room to read its history")
		default:
			slogx.FromContext(ctx).Error("failed to fetch history", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to fetch history")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMessagePageResponse(result))
}

func (h *MessagesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messageID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid message id")
		return
	}

	userID, _, role, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.Messages.DeleteMessage(ctx, messageID, userID, role); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Message not found")
		case errors.Is(err, service.ErrNotMessageOwner):
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "You can only delete your own messages")
		default:
			slogx.FromContext(ctx).Error("failed to delete message", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete message")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
