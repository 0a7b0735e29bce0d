package ws

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/stretchr/testify/require"
)

// fakeConn satisfies WSConn without a network.
type fakeConn struct {
	inbound chan []byte
	written chan []byte
	closed  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, errConnClosed
		}
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	// Pings carry no payload; only record data frames.
	if len(data) > 0 {
		c.written <- data
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

var errConnClosed = errClosed{}

type errClosed struct{}

func (errClosed) Error() string { return "connection closed" }

func (c *fakeConn) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case data := <-c.written:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Event{}
	}
}

func (c *fakeConn) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.written:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

type fixture struct {
	hub    *Hub
	client *Client
	conn   *fakeConn
	done   chan struct{}
}

func startClient(t *testing.T, hub *Hub, username string) *fixture {
	t.Helper()

	conn := newFakeConn()
	client := NewClient(hub, conn, idx.New(), username, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(func(roomID, userID idx.ID) bool { return true }, nil)
	}()

	t.Cleanup(func() {
		_ = conn.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("client did not shut down")
		}
	})

	return &fixture{hub: hub, client: client, conn: conn, done: done}
}

func TestPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	bob := startClient(t, hub, "bob")
	hub.Subscribe(roomID, alice.client)
	hub.Subscribe(roomID, bob.client)

	hub.Publish(roomID, NewEvent(EventMessage, roomID, map[string]string{"text": "hello"}))

	for _, f := range []*fixture{alice, bob} {
		ev := f.conn.nextEvent(t)
		require.Equal(t, EventMessage, ev.Type)
		require.Equal(t, roomID, ev.RoomID)
	}
}

func TestPublishOrderingPerRoom(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	hub.Subscribe(roomID, alice.client)

	const n = 50
	for i := 0; i < n; i++ {
		hub.Publish(roomID, NewEvent(EventMessage, roomID, i))
	}

	for i := 0; i < n; i++ {
		ev := alice.conn.nextEvent(t)
		var got int
		raw, err := json.Marshal(ev.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, i, got, "events arrived out of order")
	}
}

func TestPublishScopedToRoom(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomA := idx.New()
	roomB := idx.New()

	alice := startClient(t, hub, "alice")
	bob := startClient(t, hub, "bob")
	hub.Subscribe(roomA, alice.client)
	hub.Subscribe(roomB, bob.client)

	hub.Publish(roomA, NewEvent(EventMessage, roomA, nil))

	require.Equal(t, EventMessage, alice.conn.nextEvent(t).Type)
	bob.conn.expectNoEvent(t)
}

func TestTypingExcludesSender(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	bob := startClient(t, hub, "bob")
	hub.Subscribe(roomID, alice.client)
	hub.Subscribe(roomID, bob.client)

	frame, err := json.Marshal(Event{
		Type:   EventTyping,
		RoomID: roomID,
		Data:   TypingData{Typing: true},
	})
	require.NoError(t, err)
	alice.conn.inbound <- frame

	ev := bob.conn.nextEvent(t)
	require.Equal(t, EventTyping, ev.Type)

	// Identity is stamped server-side from the connection.
	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var data TypingData
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Equal(t, alice.client.UserID, data.UserID)
	require.Equal(t, "alice", data.Username)
	require.True(t, data.Typing)

	alice.conn.expectNoEvent(t)
}

func TestTypingRequiresMembership(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	conn := newFakeConn()
	client := NewClient(hub, conn, idx.New(), "mallory", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(func(idx.ID, idx.ID) bool { return false }, nil)
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	watcher := startClient(t, hub, "watcher")
	hub.Subscribe(roomID, watcher.client)

	frame, err := json.Marshal(Event{Type: EventTyping, RoomID: roomID, Data: TypingData{Typing: true}})
	require.NoError(t, err)
	conn.inbound <- frame

	watcher.conn.expectNoEvent(t)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	hub.Subscribe(roomID, alice.client)
	hub.Unsubscribe(roomID, alice.client)

	hub.Publish(roomID, NewEvent(EventMessage, roomID, nil))
	alice.conn.expectNoEvent(t)
	require.Zero(t, hub.SubscriberCount(roomID))
}

func TestDisconnectDetachesFromAllRooms(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomA := idx.New()
	roomB := idx.New()

	conn := newFakeConn()
	client := NewClient(hub, conn, idx.New(), "alice", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(nil, nil)
	}()

	hub.Subscribe(roomA, client)
	hub.Subscribe(roomB, client)
	require.Equal(t, 1, hub.SubscriberCount(roomA))

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not exit on close")
	}

	require.Zero(t, hub.SubscriberCount(roomA))
	require.Zero(t, hub.SubscriberCount(roomB))
}

func TestSubscribeUserAttachesLiveConnections(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	hub.Register(alice.client)

	// A second tab of the same user attaches too.
	tabConn := newFakeConn()
	tabClient := NewClient(hub, tabConn, alice.client.UserID, "alice", nil)
	tabDone := make(chan struct{})
	go func() {
		defer close(tabDone)
		tabClient.Run(nil, nil)
	}()
	t.Cleanup(func() {
		_ = tabConn.Close()
		<-tabDone
	})
	hub.Register(tabClient)
	secondTab := &fixture{hub: hub, client: tabClient, conn: tabConn, done: tabDone}

	hub.SubscribeUser(roomID, alice.client.UserID)
	require.Equal(t, 2, hub.SubscriberCount(roomID))

	hub.Publish(roomID, NewEvent(EventMessage, roomID, nil))
	require.Equal(t, EventMessage, alice.conn.nextEvent(t).Type)
	require.Equal(t, EventMessage, secondTab.conn.nextEvent(t).Type)

	hub.UnsubscribeUser(roomID, alice.client.UserID)
	require.Zero(t, hub.SubscriberCount(roomID))
}

func TestCloseRoomEvictsSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	hub.Subscribe(roomID, alice.client)

	hub.CloseRoom(roomID)

	ev := alice.conn.nextEvent(t)
	require.Equal(t, EventRoomDeleted, ev.Type)
	require.Zero(t, hub.SubscriberCount(roomID))

	// Publishing to a closed room goes nowhere.
	hub.Publish(roomID, NewEvent(EventMessage, roomID, nil))
	alice.conn.expectNoEvent(t)
}

func TestInboundMessageCallsHandler(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	type sent struct {
		roomID   idx.ID
		userID   idx.ID
		username string
		text     string
	}
	handled := make(chan sent, 1)

	conn := newFakeConn()
	client := NewClient(hub, conn, idx.New(), "alice", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(nil, func(roomID, userID idx.ID, username, text string) error {
			handled <- sent{roomID, userID, username, text}
			return nil
		})
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	frame, err := json.Marshal(Event{Type: EventMessage, RoomID: roomID, Data: MessageData{Text: "hello"}})
	require.NoError(t, err)
	conn.inbound <- frame

	select {
	case got := <-handled:
		require.Equal(t, roomID, got.roomID)
		require.Equal(t, client.UserID, got.userID, "identity must come from the connection")
		require.Equal(t, "alice", got.username)
		require.Equal(t, "hello", got.text)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestInboundMessageFailureReportedToSenderOnly(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	conn := newFakeConn()
	client := NewClient(hub, conn, idx.New(), "mallory", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(nil, func(idx.ID, idx.ID, string, string) error {
			return errConnClosed
		})
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	hub.Subscribe(roomID, client)

	watcher := startClient(t, hub, "watcher")
	hub.Subscribe(roomID, watcher.client)

	frame, err := json.Marshal(Event{Type: EventMessage, RoomID: roomID, Data: MessageData{Text: "hi"}})
	require.NoError(t, err)
	conn.inbound <- frame

	ev := conn.nextEvent(t)
	require.Equal(t, EventError, ev.Type)
	require.Equal(t, roomID, ev.RoomID)

	watcher.conn.expectNoEvent(t)
}

func TestMalformedFrameGetsErrorEventWithoutDisconnect(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	alice := startClient(t, hub, "alice")
	hub.Subscribe(roomID, alice.client)

	alice.conn.inbound <- []byte("{not json")

	ev := alice.conn.nextEvent(t)
	require.Equal(t, EventError, ev.Type)

	// The connection survives and keeps receiving fan-out.
	hub.Publish(roomID, NewEvent(EventMessage, roomID, nil))
	require.Equal(t, EventMessage, alice.conn.nextEvent(t).Type)
}

func TestOversizedTextFitsInFrameLimit(t *testing.T) {
	t.Parallel()

	// A text just over the 2000-char message cap must still arrive intact so
	// the sender gets the too-long error event instead of a dropped socket.
	frame, err := json.Marshal(Event{
		Type:   EventMessage,
		RoomID: idx.New(),
		Data:   MessageData{Text: strings.Repeat("x", 4500)},
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(frame), maxFrameSize)
}

func TestShutdownClosesRegisteredClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)

	alice := startClient(t, hub, "alice")
	bob := startClient(t, hub, "bob")
	hub.Register(alice.client)
	hub.Register(bob.client)

	hub.Shutdown()

	for _, f := range []*fixture{alice, bob} {
		select {
		case <-f.done:
		case <-time.After(time.Second):
			t.Fatal("client did not shut down")
		}
	}
}

func TestSlowConsumerDropsFramesWithoutBlocking(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	roomID := idx.New()

	// A client that is never pumped: its send buffer fills and overflow is
	// dropped. The publisher must not block.
	conn := newFakeConn()
	stuck := NewClient(hub, conn, idx.New(), "stuck", nil)
	hub.Subscribe(roomID, stuck)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < sendBuffer*2; i++ {
			hub.Publish(roomID, NewEvent(EventMessage, roomID, i))
		}
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}
}
