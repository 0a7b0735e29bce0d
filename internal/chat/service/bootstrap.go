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
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

// BootstrapService seeds the deployment on first start: one admin account and
// the default room every user lands in. Both operations are idempotent, so
// restarts are safe.
type BootstrapService struct {
	Store store.Store

	AdminUsername string
	AdminPassword string
	DefaultRoom   string
}

// Run ensures the admin user and default room exist.
func (s *BootstrapService) Run(ctx context.Context) error {
	if err := s.ensureAdmin(ctx); err != nil {
		return err
	}
	return s.ensureDefaultRoom(ctx)
}

func (s *BootstrapService) ensureAdmin(ctx context.Context) error {
	log := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	if s.AdminUsername == "" || s.AdminPassword == "" {
		return errors.New("bootstrap: admin credentials not configured")
	}

	passHash, err := cryptox.HashPassword(s.AdminPassword)
	if err != nil {
		log.Error("failed to hash admin password", slog.Any("error", err))
		return err
	}

	now := time.Now()
	admin := domain.User{
		ID:           idx.New(),
		Username:     s.AdminUsername,
		PasswordHash: passHash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.Users().CreateUser(ctx, admin)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another instance won the race.
		return nil
	}
	if err != nil {
		log.Error("failed to create admin user", slog.Any("error", err))
		return err
	}

	log.Info("admin user bootstrapped",
		slog.String("user_id", admin.ID.String()),
		slog.String("username", admin.Username),
	)
	return nil
}

func (s *BootstrapService) ensureDefaultRoom(ctx context.Context) error {
	log := slogx.FromContext(ctx)

	_, err := s.Store.Rooms().GetDefaultRoom(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	name := s.DefaultRoom
	if name == "" {
		name = "General"
	}

	now := time.Now()
	room := domain.Room{
		ID:          idx.New(),
		Name:        name,
		Description: "The default room",
		IsDefault:   true,
		MaxUsers:    domain.DefaultMaxUsers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.Store.Rooms().CreateRoom(ctx, room)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		log.Error("failed to create default room", slog.Any("error", err))
		return err
	}

	log.Info("default room bootstrapped",
		slog.String("room_id", room.ID.String()),
		slog.String("name", room.Name),
	)
	return nil
}
