package domain

import (
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// Message types. System messages are membership transitions ("X joined the
// room"); everything a user types is a text message.
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// MaxMessageLength is the hard cap on message text.
const MaxMessageLength = 2000

type Message struct {
	ID       idx.ID
	RoomID   idx.ID
	UserID   idx.ID
	Username string
	Text     string
	Type     string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy idx.ID
}

// MessagePage is one page of room history, oldest first within the page.
type MessagePage struct {
	Messages []Message
	Page     int
	Limit    int
	Total    int
	HasMore  bool
}
