package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type AuthHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	user, pair, err := h.UserService.Register(ctx, req.Username, req.Password, req.InviteCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
				"Username must be 3-32 characters of letters, digits, underscores, or hyphens")
		case errors.Is(err, service.ErrInvalidPassword):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
				"Password must be at least 8 characters")
		case errors.Is(err, service.ErrUsernameAlreadyTaken):
			httpx.WriteError(w, http.StatusConflict, "username_taken", "Username already taken")
		case errors.Is(err, service.ErrInviteNotFound), errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_invite", "Invite code not found")
		case errors.Is(err, service.ErrInviteExpired):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_invite", "Invite code has expired")
		case errors.Is(err, service.ErrInviteExhausted):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_invite", "Invite code has no remaining uses")
		default:
			log.Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         toUserResponse(user),
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	user, pair, err := h.UserService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
				"Username or password is incorrect")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         toUserResponse(user),
	})
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant",
				"Refresh token is invalid or expired")
			return
		}
		log.Error("token refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Refresh failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := requestUserID(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.TokenService.Logout(ctx, userID); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := requestUserID(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	user, err := h.UserService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Account no longer exists")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Lookup failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// requestUserID pulls the authenticated user's ID out of the request context.
func requestUserID(ctx context.Context) (idx.ID, error) {
	raw := httpx.UserIDFromContext(ctx)
	if raw == "" {
		return idx.Zero, errUnauthenticated
	}
	return idx.Parse(raw)
}

// requestIdentity returns the authenticated user's ID, username, and role.
func requestIdentity(r *http.Request) (idx.ID, string, string, error) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return idx.Zero, "", "", errUnauthenticated
	}
	id, err := idx.Parse(claims.Subject)
	if err != nil {
		return idx.Zero, "", "", errUnauthenticated
	}
	return id, claims.Username, claims.Role, nil
}

var errUnauthenticated = errors.New("unauthenticated")
