package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable.
//
// Soft deletion is a convention applied uniformly: every read filters
// deleted rows, and "delete" operations stamp deleted_at/deleted_by rather
// than removing data.
type Store interface {
	Users() Users
	Rooms() Rooms
	Messages() Messages
	Invites() Invites

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rolled back when fn errors,
	// committed otherwise. This is the recommended way to run multi-step
	// operations that must be atomic (membership check + append, invite
	// consumption + user creation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id provided by app via ULID). Returns
	// ErrAlreadyExists when the username is taken among non-deleted users.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id idx.ID) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByRefreshTokenHash finds the user currently holding this
	// refresh fingerprint. Rotation overwrites the fingerprint, so a
	// superseded token simply stops matching.
	GetUserByRefreshTokenHash(ctx context.Context, hash string) (domain.User, error)

	// SetRefreshToken overwrites the stored refresh fingerprint and its
	// expiry for the user. An empty hash logs the user out everywhere.
	SetRefreshToken(ctx context.Context, userID idx.ID, hash string, expiresAt time.Time) error

	// ClearExpiredRefreshTokens is housekeeping: drops fingerprints whose
	// expiry has passed.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	SoftDeleteUser(ctx context.Context, id, deletedBy idx.ID, at time.Time) error

	// IsEmpty reports whether any non-deleted users exist (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

type Rooms interface {
	// CreateRoom inserts a new room. Returns ErrAlreadyExists when the name
	// is taken among non-deleted rooms.
	CreateRoom(ctx context.Context, r domain.Room) error

	// GetRoomByID returns the room without its membership list.
	GetRoomByID(ctx context.Context, id idx.ID) (domain.Room, error)
	GetRoomByName(ctx context.Context, name string) (domain.Room, error)
	GetDefaultRoom(ctx context.Context) (domain.Room, error)

	// ListRooms returns non-deleted rooms with their active-user counts,
	// default room first, then newest first.
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)

	UpdateRoom(ctx context.Context, id idx.ID, name, description string, maxUsers int) error
	SoftDeleteRoom(ctx context.Context, id, deletedBy idx.ID, at time.Time) error

	// ClaimVoiceRoomName sets the voice room handle only when none is set
	// yet, reporting whether this call won the claim. Losing the claim is
	// not an error; the caller re-reads and adopts the stored handle.
	ClaimVoiceRoomName(ctx context.Context, id idx.ID, name string) (bool, error)

	// Membership. One row per (room, user); the primary key enforces the
	// at-most-one-entry invariant.
	ListActiveUsers(ctx context.Context, roomID idx.ID) ([]domain.ActiveUser, error)
	CountActiveUsers(ctx context.Context, roomID idx.ID) (int, error)
	HasActiveUser(ctx context.Context, roomID, userID idx.ID) (bool, error)
	AddActiveUser(ctx context.Context, au domain.ActiveUser) error

	// RemoveActiveUser reports whether a membership row existed.
	RemoveActiveUser(ctx context.Context, roomID, userID idx.ID) (bool, error)

	SetVoiceParticipant(ctx context.Context, roomID, userID idx.ID, participantID string, active bool) error
}

type Messages interface {
	CreateMessage(ctx context.Context, m domain.Message) error
	GetMessageByID(ctx context.Context, id idx.ID) (domain.Message, error)

	// ListRoomMessages pages through room history. Pages count from 1 and
	// run newest-first; messages within a page are returned oldest-first
	// for display.
	ListRoomMessages(ctx context.Context, roomID idx.ID, page, limit int) (domain.MessagePage, error)

	SoftDeleteMessage(ctx context.Context, id, deletedBy idx.ID, at time.Time) error

	// SoftDeleteRoomMessages marks every message in the room deleted; used
	// when the room itself is deleted.
	SoftDeleteRoomMessages(ctx context.Context, roomID, deletedBy idx.ID, at time.Time) error
}

type Invites interface {
	// CreateInviteCode inserts a new code. Returns ErrAlreadyExists when the
	// code value collides with a non-deleted code; the service retries with
	// a fresh code.
	CreateInviteCode(ctx context.Context, c domain.InviteCode) error

	GetInviteByCode(ctx context.Context, code string) (domain.InviteCode, error)
	ListInviteCodes(ctx context.Context) ([]domain.InviteCode, error)

	// ConsumeInviteCode atomically increments current_uses iff the code is
	// still available (not expired, not deleted, current_uses < max_uses),
	// recording the consumer and flipping is_used when the last slot is
	// taken. Reports whether the consumption happened; callers classify a
	// false result by re-reading the code.
	ConsumeInviteCode(ctx context.Context, code string, consumer idx.ID, consumerName string, now time.Time) (bool, error)

	SoftDeleteInviteCode(ctx context.Context, code string, deletedBy idx.ID, at time.Time) error

	// DeleteExpiredInviteCodes is housekeeping.
	DeleteExpiredInviteCodes(ctx context.Context, now time.Time) error
}
