// Package voice abstracts the external voice infrastructure (LiveKit) behind
// a small client interface so services and tests never touch the SDK directly.
package voice

import (
	"context"
	"time"
)

// DefaultTokenTTL bounds how long a minted participant token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// EmptyRoomTimeout is how long the upstream keeps an empty voice room alive
// before reclaiming it.
const EmptyRoomTimeout = 5 * time.Minute

// Client provisions voice rooms and mints participant credentials.
//
// CreateRoom is idempotent upstream: creating a name that already exists
// returns the existing room, so callers resolve ownership races in their own
// storage, not here.
type Client interface {
	CreateRoom(ctx context.Context, name string, maxParticipants int) error
	DeleteRoom(ctx context.Context, name string) error
	RoomExists(ctx context.Context, name string) (bool, error)
	RemoveParticipant(ctx context.Context, roomName, identity string) error

	// MintAccessToken returns a signed join token scoped to one room. The
	// identity is the stable participant handle; displayName is what other
	// participants see.
	MintAccessToken(roomName, identity, displayName string, ttl time.Duration) (string, error)
}
