package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/store"
)

// HousekeepingService periodically expires stale records: invite codes past
// their expiry and refresh fingerprints whose window has closed.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. An interval of zero
// or less defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once immediately on startup.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one cleanup pass. Each task is independent; a failure in one
// does not stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := time.Now()

	if err := s.Store.Invites().DeleteExpiredInviteCodes(ctx, now); err != nil {
		s.Logger.Error("failed to expire invite codes", "error", err)
	} else {
		s.Logger.Debug("expired invite codes swept")
	}

	if err := s.Store.Users().ClearExpiredRefreshTokens(ctx, now); err != nil {
		s.Logger.Error("failed to clear expired refresh tokens", "error", err)
	} else {
		s.Logger.Debug("expired refresh tokens cleared")
	}
}
