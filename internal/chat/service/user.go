package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/pkg/cryptox"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

var (
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrUserNotFound         = errors.New("user not found")
	ErrCannotDeleteAdmin    = errors.New("admin accounts cannot be deleted")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 8
)

// UserService handles registration and login. Registration is invite-gated:
// the invite consumption and the user creation commit together or not at all.
type UserService struct {
	Store   store.Store
	Invites *InviteService
	Tokens  *TokenService
}

// Register redeems an invite code and creates the account, then issues the
// first token pair.
func (s *UserService) Register(
	ctx context.Context,
	username, password, inviteCode string,
) (domain.User, domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if len(password) < minPasswordLength {
		return domain.User{}, domain.TokenPair{}, ErrInvalidPassword
	}

	passwordHash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, domain.TokenPair{}, err
	}

	now := time.Now()
	user := domain.User{
		ID:           idx.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.Invites.ConsumeInvite(ctx, tx, inviteCode, user.ID, username); err != nil {
			return err
		}

		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUsernameAlreadyTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	pair, err := s.Tokens.IssueTokens(ctx, user)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username),
	)
	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair. Failures are
// indistinguishable between unknown username and wrong password.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.User, domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("login attempt for unknown username")
			return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		log.Info("login attempt with wrong password",
			slog.String("user_id", user.ID.String()),
		)
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.Tokens.IssueTokens(ctx, user)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	log.Info("user logged in", slog.String("user_id", user.ID.String()))
	return user, pair, nil
}

// GetUser returns one live user.
func (s *UserService) GetUser(ctx context.Context, id idx.ID) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers returns all live users, oldest first.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// DeleteUser soft-deletes an account and revokes its refresh session. Admin
// accounts are protected; that covers self-deletion by the acting admin too.
func (s *UserService) DeleteUser(ctx context.Context, id, deletedBy idx.ID) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Role == domain.RoleAdmin {
		return ErrCannotDeleteAdmin
	}

	if err := s.Store.Users().SoftDeleteUser(ctx, id, deletedBy, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		log.Error("failed to delete user",
			slog.String("user_id", id.String()),
			slog.Any("error", err),
		)
		return err
	}

	log.Info("user deleted",
		slog.String("user_id", id.String()),
		slog.String("deleted_by", deletedBy.String()),
	)
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return ErrInvalidUsername
		}
	}
	return nil
}
