package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type RoomsHandler struct {
	Membership *service.MembershipService
	Voice      *service.VoiceService
}

func (h *RoomsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summaries, err := h.Membership.ListRooms(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list rooms", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to list rooms")
		return
	}

	resp := make([]roomResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toRoomSummaryResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *RoomsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	room, err := h.Membership.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
			return
		}
		slogx.FromContext(ctx).Error("failed to fetch room", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to fetch room")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toRoomResponse(room))
}

func (h *RoomsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	room, err := h.Membership.CreateRoom(ctx, req.Name, req.Description, req.MaxUsers, false)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRoomName):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Room name is required")
		case errors.Is(err, service.ErrRoomNameTaken):
			httpx.WriteError(w, http.StatusConflict, "name_taken", "A room with that name already exists")
		default:
			slogx.FromContext(ctx).Error("failed to create room", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to create room")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toRoomResponse(room))
}

func (h *RoomsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	var req updateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	room, err := h.Membership.UpdateRoom(ctx, roomID, req.Name, req.Description, req.MaxUsers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrInvalidRoomName):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room parameters")
		case errors.Is(err, service.ErrRoomNameTaken):
			httpx.WriteError(w, http.StatusConflict, "name_taken", "A room with that name already exists")
		case errors.Is(err, service.ErrCannotModifyDefault):
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "The default room cannot be modified")
		default:
			slogx.FromContext(ctx).Error("failed to update room", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to update room")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toRoomResponse(room))
}

func (h *RoomsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

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

	// Capture the voice handle before the room disappears.
	room, err := h.Membership.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete room")
		return
	}

	if err := h.Membership.DeleteRoom(ctx, roomID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrCannotDeleteDefault):
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "The default room cannot be deleted")
		default:
			log.Error("failed to delete room", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete room")
		}
		return
	}

	if room.VoiceRoomName != "" {
		// Best effort; the upstream reclaims idle rooms on its own anyway.
		_ = h.Voice.TeardownVoiceRoom(ctx, room.VoiceRoomName)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
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

	room, err := h.Membership.JoinRoom(ctx, roomID, userID, username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrRoomFull):
			httpx.WriteError(w, http.StatusConflict, "room_full", "Room is at capacity")
		default:
			slogx.FromContext(ctx).Error("failed to join room", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to join room")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toRoomResponse(room))
}

func (h *RoomsHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Membership.LeaveRoom(ctx, roomID, userID, username); err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
		case errors.Is(err, service.ErrNotInRoom):
			httpx.WriteError(w, http.StatusBadRequest, "not_in_room", "User not in room")
		default:
			slogx.FromContext(ctx).Error("failed to leave room", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to leave room")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomsHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid room id")
		return
	}

	members, err := h.Membership.ListActiveUsers(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Room not found")
			return
		}
		slogx.FromContext(ctx).Error("failed to list room users", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to list room users")
		return
	}

	resp := make([]activeUserResponse, 0, len(members))
	for _, au := range members {
		resp = append(resp, toActiveUserResponse(au))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
