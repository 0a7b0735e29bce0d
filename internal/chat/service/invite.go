package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/pkg/cryptox"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

var (
	ErrInvalidInviteRequest = errors.New("invalid invite request")
	ErrInviteNotFound       = errors.New("invite not found")
	ErrInviteExpired        = errors.New("invite has expired")
	ErrInviteExhausted      = errors.New("invite has no remaining uses")
)

// maxCodeAttempts bounds the retry loop when a freshly generated code collides
// with an existing one. With a 36^8 code space collisions are vanishingly
// rare, so hitting the bound means something is wrong with the RNG or the DB.
const maxCodeAttempts = 5

// DefaultInviteTTL applies when a mint request does not specify an expiry.
const DefaultInviteTTL = 7 * 24 * time.Hour

// InviteService manages registration invite codes.
type InviteService struct {
	Store store.Store
}

// MintInvite creates a new invite code, retrying on the off chance the
// generated code collides with a live one.
func (s *InviteService) MintInvite(
	ctx context.Context,
	createdBy idx.ID,
	createdByUsername string,
	ttl time.Duration,
	maxUses int,
) (domain.InviteCode, error) {
	log := slogx.FromContext(ctx)

	if maxUses < 1 {
		maxUses = 1
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}

	now := time.Now()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := cryptox.GenerateCode(domain.InviteCodeLength)
		if err != nil {
			log.Error("failed to generate invite code", slog.Any("error", err))
			return domain.InviteCode{}, err
		}

		invite := domain.InviteCode{
			ID:                idx.New(),
			Code:              code,
			CreatedBy:         createdBy,
			CreatedByUsername: createdByUsername,
			ExpiresAt:         now.Add(ttl),
			MaxUses:           maxUses,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		err = s.Store.Invites().CreateInviteCode(ctx, invite)
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Debug("invite code collision, regenerating",
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			log.Error("failed to create invite code", slog.Any("error", err))
			return domain.InviteCode{}, err
		}

		log.Info("invite code minted",
			slog.String("invite_id", invite.ID.String()),
			slog.String("created_by", createdBy.String()),
			slog.Int("max_uses", maxUses),
			slog.Time("expires_at", invite.ExpiresAt),
		)
		return invite, nil
	}

	return domain.InviteCode{}, errors.New("exhausted invite code generation attempts")
}

// ValidateInvite checks whether a code can currently be consumed, without
// consuming it. The result is advisory: only consumption is authoritative.
func (s *InviteService) ValidateInvite(ctx context.Context, code string) (domain.InviteCode, error) {
	invite, err := s.getInvite(ctx, code)
	if err != nil {
		return domain.InviteCode{}, err
	}
	return invite, s.classify(invite, time.Now())
}

// ConsumeInvite atomically takes one use from the code on behalf of the
// consumer. The store performs the decrement conditionally, so two racing
// consumers of a last slot resolve to exactly one winner; the loser gets the
// same error a sequential caller would.
func (s *InviteService) ConsumeInvite(
	ctx context.Context,
	tx store.Tx,
	code string,
	consumer idx.ID,
	consumerName string,
) error {
	log := slogx.FromContext(ctx)
	code = normalizeCode(code)
	now := time.Now()

	ok, err := tx.Invites().ConsumeInviteCode(ctx, code, consumer, consumerName, now)
	if err != nil {
		log.Error("failed to consume invite code", slog.Any("error", err))
		return err
	}
	if ok {
		return nil
	}

	// Zero rows affected: re-read to report why.
	invite, err := tx.Invites().GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInviteNotFound
		}
		return err
	}
	return s.classify(invite, now)
}

// ListInvites returns all live invite codes, newest first.
func (s *InviteService) ListInvites(ctx context.Context) ([]domain.InviteCode, error) {
	return s.Store.Invites().ListInviteCodes(ctx)
}

// RevokeInvite soft-deletes a code so it can no longer be consumed.
func (s *InviteService) RevokeInvite(ctx context.Context, code string, deletedBy idx.ID) error {
	log := slogx.FromContext(ctx)
	code = normalizeCode(code)

	err := s.Store.Invites().SoftDeleteInviteCode(ctx, code, deletedBy, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInviteNotFound
		}
		log.Error("failed to revoke invite code", slog.Any("error", err))
		return err
	}

	log.Info("invite code revoked",
		slog.String("code", code),
		slog.String("deleted_by", deletedBy.String()),
	)
	return nil
}

func (s *InviteService) getInvite(ctx context.Context, code string) (domain.InviteCode, error) {
	code = normalizeCode(code)
	if code == "" {
		return domain.InviteCode{}, ErrInvalidInviteRequest
	}

	invite, err := s.Store.Invites().GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.InviteCode{}, ErrInviteNotFound
		}
		return domain.InviteCode{}, err
	}
	return invite, nil
}

func (s *InviteService) classify(invite domain.InviteCode, now time.Time) error {
	switch {
	case invite.DeletedAt != nil:
		return ErrInviteNotFound
	case !now.Before(invite.ExpiresAt):
		return ErrInviteExpired
	case invite.CurrentUses >= invite.MaxUses:
		return ErrInviteExhausted
	default:
		return nil
	}
}

// normalizeCode uppercases user-supplied codes so lookups are
// case-insensitive at the boundary.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
