package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// UsersHandler serves the admin user management endpoints.
type UsersHandler struct {
	Users *service.UserService
}

func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to list users")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, err := requestUserID(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	targetID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	if err := h.Users.DeleteUser(r.Context(), targetID, actorID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		case errors.Is(err, service.ErrCannotDeleteAdmin):
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "Admin accounts cannot be deleted")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete user")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
