package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/pkg/cryptox"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/jwtx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// TokenService issues and rotates the access/refresh token pair.
//
// Access tokens are signed JWTs and are never stored. Refresh tokens are
// opaque; only their SHA-256 fingerprint is persisted, one per user, so
// rotation invalidates the previous token by overwriting the fingerprint.
type TokenService struct {
	Store      store.Store
	Signer     *jwtx.Signer
	RefreshTTL time.Duration
}

// IssueTokens mints a fresh token pair for an authenticated user and records
// the new refresh fingerprint, displacing any prior session.
func (s *TokenService) IssueTokens(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now()

	access, err := s.Signer.Sign(user.ID.String(), user.Username, user.Role, now)
	if err != nil {
		log.Error("failed to sign access token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate refresh token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}

	refreshTTL := s.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	fingerprint := cryptox.FingerprintToken(refresh)
	if err := s.Store.Users().SetRefreshToken(ctx, user.ID, fingerprint, now.Add(refreshTTL)); err != nil {
		log.Error("failed to store refresh fingerprint",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.Signer.TTL().Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token must match the stored
// fingerprint and be unexpired, and a successful rotation replaces it. A
// replayed token therefore fails with ErrInvalidRefresh.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	if rawRefresh == "" {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	fingerprint := cryptox.FingerprintToken(rawRefresh)
	user, err := s.Store.Users().GetUserByRefreshTokenHash(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("refresh attempted with unknown token fingerprint")
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		log.Error("failed to look up refresh fingerprint", slog.Any("error", err))
		return domain.TokenPair{}, err
	}

	if user.RefreshExpiresAt == nil || time.Now().After(*user.RefreshExpiresAt) {
		log.Warn("refresh attempted with expired token",
			slog.String("user_id", user.ID.String()),
		)
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	log.Debug("refresh token rotated", slog.String("user_id", user.ID.String()))
	return pair, nil
}

// Logout clears the stored refresh fingerprint so the current refresh token
// can never be redeemed again. Outstanding access tokens ride out their TTL.
func (s *TokenService) Logout(ctx context.Context, userID idx.ID) error {
	log := slogx.FromContext(ctx)

	if err := s.Store.Users().SetRefreshToken(ctx, userID, "", time.Time{}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		log.Error("failed to clear refresh fingerprint",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return err
	}

	log.Debug("user logged out", slog.String("user_id", userID.String()))
	return nil
}
