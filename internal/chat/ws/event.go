package ws

import (
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// Event types carried over the websocket. Inbound frames only ever carry
// EventTyping or EventMessage; everything else is server-originated fan-out.
const (
	EventMessage     = "message"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventTyping      = "typing"
	EventVoiceJoined = "voice_user_joined"
	EventVoiceLeft   = "voice_user_left"
	EventRoomDeleted = "room_deleted"
	EventError       = "error"
)

// Event is one room-scoped frame. Data is event-specific and already shaped
// for the client.
type Event struct {
	Type   string `json:"type"`
	RoomID idx.ID `json:"room_id"`
	Data   any    `json:"data,omitempty"`
	At     int64  `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, roomID idx.ID, data any) Event {
	return Event{
		Type:   eventType,
		RoomID: roomID,
		Data:   data,
		At:     time.Now().UnixMilli(),
	}
}

// TypingData is the payload of a typing notification.
type TypingData struct {
	UserID   idx.ID `json:"user_id"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

// PresenceData is the payload of join/leave and voice presence events.
type PresenceData struct {
	UserID   idx.ID `json:"user_id"`
	Username string `json:"username"`
}

// MessageData is the payload of an inbound send frame. Outbound message
// events carry the persisted message instead.
type MessageData struct {
	Text string `json:"text"`
}

// ErrorData is the payload of a connection-scoped error event. It is only
// ever sent to the connection whose frame failed, never broadcast.
type ErrorData struct {
	Message string `json:"message"`
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}
