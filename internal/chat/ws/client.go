package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aussiebroadwan/taproom/pkg/idx"
)

const (
	// sendBuffer is the per-client outbound queue. When it fills, frames are
	// dropped for that client rather than blocking the room.
	sendBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize leaves room for a maximum-length message plus the JSON
	// envelope, so oversized texts reach the error path instead of killing
	// the read loop.
	maxFrameSize = 8192
)

// WSConn is the subset of *websocket.Conn the client needs; tests substitute
// an in-memory implementation.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one websocket connection for one authenticated user. A user with
// several tabs open holds several clients.
type Client struct {
	UserID   idx.ID
	Username string

	hub    *Hub
	conn   WSConn
	send   chan []byte
	logger *slog.Logger

	mu     sync.Mutex
	rooms  map[idx.ID]struct{}
	closed bool
}

// TypingChecker authorises inbound typing frames: it reports whether the
// user currently belongs to the room.
type TypingChecker func(roomID, userID idx.ID) bool

// MessageHandler persists and fans out an inbound chat message. A returned
// error is reported back to the sending connection only.
type MessageHandler func(roomID, userID idx.ID, username, text string) error

func NewClient(hub *Hub, conn WSConn, userID idx.ID, username string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		UserID:   userID,
		Username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger,
		rooms:    make(map[idx.ID]struct{}),
	}
}

// Run pumps the connection until it closes, then detaches the client from
// every room. Blocks; callers run it in the connection's handler goroutine.
func (c *Client) Run(canType TypingChecker, onMessage MessageHandler) {
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(canType, onMessage)
	close(done)

	c.hub.Detach(c)
	c.close()
}

func (c *Client) readPump(canType TypingChecker, onMessage MessageHandler) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly",
					slog.String("user_id", c.UserID.String()),
					slog.Any("error", err),
				)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.Debug("malformed frame",
				slog.String("user_id", c.UserID.String()),
			)
			c.sendEvent(NewEvent(EventError, idx.Zero, ErrorData{Message: "malformed frame"}))
			continue
		}

		switch ev.Type {
		case EventTyping:
			if canType != nil && !canType(ev.RoomID, c.UserID) {
				continue
			}

			var data TypingData
			if ev.Data != nil {
				// Only the flag is trusted from the wire; identity comes
				// from the authenticated connection.
				if raw, err := json.Marshal(ev.Data); err == nil {
					_ = json.Unmarshal(raw, &data)
				}
			}
			data.UserID = c.UserID
			data.Username = c.Username

			c.hub.PublishExcept(ev.RoomID, c.UserID, NewEvent(EventTyping, ev.RoomID, data))

		case EventMessage:
			if onMessage == nil {
				continue
			}

			var data MessageData
			if ev.Data != nil {
				if raw, err := json.Marshal(ev.Data); err == nil {
					_ = json.Unmarshal(raw, &data)
				}
			}

			// The handler publishes on success; a failure goes back to this
			// connection only, the frame is never broadcast.
			if err := onMessage(ev.RoomID, c.UserID, c.Username, data.Text); err != nil {
				c.sendEvent(NewEvent(EventError, ev.RoomID, ErrorData{Message: err.Error()}))
			}

		default:
			// Clients cannot originate any other event type.
		}
	}
}

// sendEvent enqueues an event for this connection only.
func (c *Client) sendEvent(ev Event) {
	payload, err := ev.encode()
	if err != nil {
		return
	}
	_ = c.enqueue(payload)
}

func (c *Client) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// enqueue offers a frame to the client's send queue, reporting false when the
// queue is full or the client is closed.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}

func (c *Client) trackRoom(roomID idx.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = struct{}{}
}

func (c *Client) untrackRoom(roomID idx.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

func (c *Client) roomIDs() []idx.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]idx.ID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}
