package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type InvitesHandler struct {
	Invites *service.InviteService
}

func (h *InvitesHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, username, _, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req mintInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	ttl := time.Duration(req.ExpiresInHours) * time.Hour
	invite, err := h.Invites.MintInvite(ctx, userID, username, ttl, req.MaxUses)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to mint invite", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to create invite")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toInviteResponse(invite))
}

func (h *InvitesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invites, err := h.Invites.ListInvites(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list invites", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to list invites")
		return
	}

	resp := make([]inviteResponse, 0, len(invites))
	for _, invite := range invites {
		resp = append(resp, toInviteResponse(invite))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleValidate is the unauthenticated pre-registration check: it tells the
// signup form whether a code is worth submitting without consuming it.
func (h *InvitesHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invite, err := h.Invites.ValidateInvite(ctx, r.PathValue("code"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound), errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteError(w, http.StatusNotFound, "invalid_invite", "Invite code not found")
		case errors.Is(err, service.ErrInviteExpired):
			httpx.WriteError(w, http.StatusGone, "invalid_invite", "Invite code has expired")
		case errors.Is(err, service.ErrInviteExhausted):
			httpx.WriteError(w, http.StatusGone, "invalid_invite", "Invite code has no remaining uses")
		default:
			slogx.FromContext(ctx).Error("failed to validate invite", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to validate invite")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":          true,
		"remaining_uses": invite.RemainingUses(),
		"expires_at":     invite.ExpiresAt,
	})
}

func (h *InvitesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, _, err := requestIdentity(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.Invites.RevokeInvite(ctx, r.PathValue("code"), userID); err != nil {
		if errors.Is(err, service.ErrInviteNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Invite code not found")
			return
		}
		slogx.FromContext(ctx).Error("failed to revoke invite", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to revoke invite")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
