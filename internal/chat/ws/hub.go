package ws

import (
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

// Hub routes events to websocket clients grouped by room.
//
// Delivery ordering is per room: each publish enqueues to every subscriber
// under that room's lock, so two events published to the same room arrive in
// the same order on every client. No ordering holds across rooms.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[idx.ID]*roomGroup
	byUser map[idx.ID]map[*Client]struct{}
	logger *slog.Logger
}

type roomGroup struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[idx.ID]*roomGroup),
		byUser: make(map[idx.ID]map[*Client]struct{}),
		logger: logger,
	}
}

// Register indexes a connection by its user so membership changes can attach
// or detach live connections. Call before the client starts pumping.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.UserID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[c.UserID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byUser, c.UserID)
	}
}

// SubscribeUser attaches every live connection of the user to the room.
// Called when a user joins a room so open tabs start receiving its events
// without reconnecting.
func (h *Hub) SubscribeUser(roomID, userID idx.ID) {
	for _, c := range h.userClients(userID) {
		h.Subscribe(roomID, c)
	}
}

// UnsubscribeUser detaches every live connection of the user from the room.
func (h *Hub) UnsubscribeUser(roomID, userID idx.ID) {
	for _, c := range h.userClients(userID) {
		h.Unsubscribe(roomID, c)
	}
}

func (h *Hub) userClients(userID idx.ID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		clients = append(clients, c)
	}
	return clients
}

// Subscribe adds a client to a room's fan-out set.
func (h *Hub) Subscribe(roomID idx.ID, c *Client) {
	h.mu.Lock()
	g, ok := h.rooms[roomID]
	if !ok {
		g = &roomGroup{clients: make(map[*Client]struct{})}
		h.rooms[roomID] = g
	}
	h.mu.Unlock()

	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()

	c.trackRoom(roomID)
}

// Unsubscribe removes a client from a room's fan-out set. Safe to call for
// rooms the client never joined.
func (h *Hub) Unsubscribe(roomID idx.ID, c *Client) {
	h.mu.RLock()
	g, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	delete(g.clients, c)
	empty := len(g.clients) == 0
	g.mu.Unlock()

	c.untrackRoom(roomID)

	if empty {
		h.reapRoom(roomID, g)
	}
}

// Publish delivers an event to every subscriber of the room.
func (h *Hub) Publish(roomID idx.ID, ev Event) {
	h.publish(roomID, ev, idx.Zero)
}

// PublishExcept delivers an event to every subscriber of the room except
// clients belonging to the excluded user. Typing notifications use this so a
// user never sees their own indicator.
func (h *Hub) PublishExcept(roomID idx.ID, except idx.ID, ev Event) {
	h.publish(roomID, ev, except)
}

func (h *Hub) publish(roomID idx.ID, ev Event, except idx.ID) {
	h.mu.RLock()
	g, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := ev.encode()
	if err != nil {
		h.logger.Error("failed to encode event",
			slog.String("type", ev.Type),
			slog.Any("error", err),
		)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		if except != idx.Zero && c.UserID == except {
			continue
		}
		if !c.enqueue(payload) {
			// Slow consumer: the frame is dropped rather than stalling the
			// room. The client still holds its subscription and catches up
			// via history on reconnect.
			h.logger.Warn("dropping frame for slow consumer",
				slog.String("user_id", c.UserID.String()),
				slog.String("room_id", roomID.String()),
				slog.String("type", ev.Type),
			)
		}
	}
}

// CloseRoom evicts every subscriber and forgets the room. Used when a room
// is deleted; each client receives a room_deleted event first.
func (h *Hub) CloseRoom(roomID idx.ID) {
	h.Publish(roomID, NewEvent(EventRoomDeleted, roomID, nil))

	h.mu.Lock()
	g, ok := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		c.untrackRoom(roomID)
	}
	g.clients = make(map[*Client]struct{})
}

// Detach removes the client from every room it is subscribed to and drops it
// from the user index. Called when the connection closes.
func (h *Hub) Detach(c *Client) {
	h.unregister(c)
	for _, roomID := range c.roomIDs() {
		h.Unsubscribe(roomID, c)
	}
}

// Shutdown closes every registered connection. Each client's Run loop then
// unwinds and detaches itself. Used during graceful process shutdown.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byUser))
	for _, set := range h.byUser {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// SubscriberCount reports how many clients are subscribed to the room.
func (h *Hub) SubscriberCount(roomID idx.ID) int {
	h.mu.RLock()
	g, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

func (h *Hub) reapRoom(roomID idx.ID, g *roomGroup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// A subscriber may have arrived between the emptiness check and here.
	if current, ok := h.rooms[roomID]; ok && current == g {
		g.mu.Lock()
		empty := len(g.clients) == 0
		g.mu.Unlock()
		if empty {
			delete(h.rooms, roomID)
		}
	}
}
