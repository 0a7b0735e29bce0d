package domain

import (
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// InviteCodeLength is the fixed length of generated invite codes.
const InviteCodeLength = 8

// InviteCode is a shareable registration code. Codes are unique among
// non-deleted codes and may be multi-use; CurrentUses never exceeds MaxUses.
type InviteCode struct {
	ID                idx.ID
	Code              string
	CreatedBy         idx.ID
	CreatedByUsername string
	ExpiresAt         time.Time

	MaxUses     int
	CurrentUses int
	IsUsed      bool

	// Last consumer, kept for auditing. Multi-use codes only remember the
	// most recent one, same as the original system.
	UsedBy         idx.ID
	UsedByUsername string
	UsedAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy idx.ID
}

// Available reports whether the code can still be consumed at time now.
func (c InviteCode) Available(now time.Time) bool {
	return c.DeletedAt == nil && now.Before(c.ExpiresAt) && c.CurrentUses < c.MaxUses
}

// RemainingUses reports how many consumptions are left.
func (c InviteCode) RemainingUses() int {
	if c.CurrentUses >= c.MaxUses {
		return 0
	}
	return c.MaxUses - c.CurrentUses
}
