package domain

import (
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// DefaultMaxUsers caps room membership when a room is created without an
// explicit limit.
const DefaultMaxUsers = 100

// Room is a named chat channel with bounded membership and an optional voice
// session. ActiveUsers is the authoritative membership list: explicit
// join/leave state, independent of transient connectivity.
type Room struct {
	ID          idx.ID
	Name        string
	Description string
	IsDefault   bool
	MaxUsers    int

	// VoiceRoomName is the externally provisioned voice room handle. Empty
	// until the first join triggers provisioning.
	VoiceRoomName string

	ActiveUsers []ActiveUser

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy idx.ID
}

// HasMember reports whether the user currently holds a membership entry.
func (r Room) HasMember(userID idx.ID) bool {
	for _, au := range r.ActiveUsers {
		if au.UserID == userID {
			return true
		}
	}
	return false
}

// ActiveUser is one membership entry. At most one entry exists per user
// identity in a given room.
type ActiveUser struct {
	RoomID   idx.ID
	UserID   idx.ID
	Username string
	JoinedAt time.Time

	VoiceActive        bool
	VoiceParticipantID string
}

// RoomSummary is a room listing entry: the room minus its membership list,
// plus a count.
type RoomSummary struct {
	Room            Room
	ActiveUserCount int
}
