package service

import (
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// EventPublisher is the slice of the websocket hub the services need.
// Services publish after their transaction commits, so subscribers never see
// an event for state that was rolled back.
type EventPublisher interface {
	Publish(roomID idx.ID, ev ws.Event)
	CloseRoom(roomID idx.ID)

	// SubscribeUser and UnsubscribeUser attach or detach the user's live
	// connections when their membership changes.
	SubscribeUser(roomID, userID idx.ID)
	UnsubscribeUser(roomID, userID idx.ID)
}

// NopPublisher discards events. Tests that do not assert on fan-out use it.
type NopPublisher struct{}

func (NopPublisher) Publish(idx.ID, ws.Event)       {}
func (NopPublisher) CloseRoom(idx.ID)               {}
func (NopPublisher) SubscribeUser(idx.ID, idx.ID)   {}
func (NopPublisher) UnsubscribeUser(idx.ID, idx.ID) {}
