package domain

import (
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// User roles. There are exactly two; anything finer-grained belongs in the
// auth service, not here.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           idx.ID
	Username     string
	PasswordHash string // argon2id encoded
	Role         string

	// RefreshTokenHash is the fingerprint of the single refresh token
	// currently honoured for this user; rotation overwrites it. Empty when
	// the user has never logged in or has been logged out everywhere.
	RefreshTokenHash string
	RefreshExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy idx.ID
}
