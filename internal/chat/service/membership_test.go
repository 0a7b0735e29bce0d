package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
	closed []idx.ID
}

func (p *recordingPublisher) Publish(roomID idx.ID, ev ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) CloseRoom(roomID idx.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, roomID)
}

func (p *recordingPublisher) SubscribeUser(roomID, userID idx.ID)   {}
func (p *recordingPublisher) UnsubscribeUser(roomID, userID idx.ID) {}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, ev := range p.events {
		types[i] = ev.Type
	}
	return types
}

// recordingEnsurer stands in for the voice provisioner.
type recordingEnsurer struct {
	mu    sync.Mutex
	calls []idx.ID
	err   error
}

func (e *recordingEnsurer) EnsureVoiceRoom(ctx context.Context, roomID idx.ID) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, roomID)
	if e.err != nil {
		return "", e.err
	}
	return "voice-" + roomID.String(), nil
}

func (e *recordingEnsurer) roomIDs() []idx.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]idx.ID(nil), e.calls...)
}

func TestJoinRoom(t *testing.T) {
	t.Parallel()

	t.Run("first join adds membership and a system message", func(t *testing.T) {
		st := newTestStore(t)
		pub := &recordingPublisher{}
		svc := &MembershipService{Store: st, Events: pub}
		room := seedRoom(t, st, "general", 10)
		alice := seedUser(t, st, "alice", domain.RoleUser)
		ctx := context.Background()

		got, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.True(t, got.HasMember(alice.ID))
		require.Len(t, got.ActiveUsers, 1)

		page, err := st.Messages().ListRoomMessages(ctx, room.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		require.Equal(t, domain.MessageTypeSystem, page.Messages[0].Type)
		require.Equal(t, "alice joined the room", page.Messages[0].Text)

		require.Equal(t, []string{ws.EventMessage, ws.EventUserJoined}, pub.eventTypes())
	})

	t.Run("joining twice is a no-op", func(t *testing.T) {
		st := newTestStore(t)
		pub := &recordingPublisher{}
		svc := &MembershipService{Store: st, Events: pub}
		room := seedRoom(t, st, "general", 10)
		alice := seedUser(t, st, "alice", domain.RoleUser)
		ctx := context.Background()

		_, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		got, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.Len(t, got.ActiveUsers, 1)

		// Still exactly one system message and one presence event.
		page, err := st.Messages().ListRoomMessages(ctx, room.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		require.Equal(t, []string{ws.EventMessage, ws.EventUserJoined}, pub.eventTypes())
	})

	t.Run("unknown room", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MembershipService{Store: st}
		alice := seedUser(t, st, "alice", domain.RoleUser)

		_, err := svc.JoinRoom(context.Background(), idx.New(), alice.ID, alice.Username)
		require.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("first join provisions the voice session", func(t *testing.T) {
		st := newTestStore(t)
		ensurer := &recordingEnsurer{}
		svc := &MembershipService{Store: st, Voice: ensurer}
		room := seedRoom(t, st, "general", 10)
		alice := seedUser(t, st, "alice", domain.RoleUser)
		ctx := context.Background()

		_, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.Equal(t, []idx.ID{room.ID}, ensurer.roomIDs())

		// The idempotent re-join does not provision again.
		_, err = svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.Len(t, ensurer.roomIDs(), 1)
	})

	t.Run("voice provisioning failure does not undo the join", func(t *testing.T) {
		st := newTestStore(t)
		ensurer := &recordingEnsurer{err: ErrVoiceUnavailable}
		svc := &MembershipService{Store: st, Voice: ensurer}
		room := seedRoom(t, st, "general", 10)
		alice := seedUser(t, st, "alice", domain.RoleUser)

		got, err := svc.JoinRoom(context.Background(), room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.True(t, got.HasMember(alice.ID))
	})

	t.Run("full room refuses new joins", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MembershipService{Store: st}
		room := seedRoom(t, st, "tiny", 1)
		alice := seedUser(t, st, "alice", domain.RoleUser)
		bob := seedUser(t, st, "bob", domain.RoleUser)
		ctx := context.Background()

		_, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)

		_, err = svc.JoinRoom(ctx, room.ID, bob.ID, bob.Username)
		require.ErrorIs(t, err, ErrRoomFull)

		t.Run("existing member can still re-join idempotently", func(t *testing.T) {
			_, err := svc.JoinRoom(ctx, room.ID, alice.ID, alice.Username)
			require.NoError(t, err)
		})

		t.Run("a leave frees the slot", func(t *testing.T) {
			require.NoError(t, svc.LeaveRoom(ctx, room.ID, alice.ID, alice.Username))
			_, err := svc.JoinRoom(ctx, room.ID, bob.ID, bob.Username)
			require.NoError(t, err)
		})
	})

	t.Run("concurrent joins never exceed capacity", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MembershipService{Store: st}
		room := seedRoom(t, st, "busy", 5)
		ctx := context.Background()

		users := make([]domain.User, 20)
		for i := range users {
			users[i] = seedUser(t, st, fmt.Sprintf("user%02d", i), domain.RoleUser)
		}

		var wg sync.WaitGroup
		errs := make([]error, len(users))
		for i, u := range users {
			wg.Add(1)
			go func(i int, u domain.User) {
				defer wg.Done()
				_, errs[i] = svc.JoinRoom(ctx, room.ID, u.ID, u.Username)
			}(i, u)
		}
		wg.Wait()

		var joined, refused int
		for _, err := range errs {
			switch {
			case err == nil:
				joined++
			default:
				require.ErrorIs(t, err, ErrRoomFull)
				refused++
			}
		}
		require.Equal(t, 5, joined)
		require.Equal(t, 15, refused)

		count, err := st.Rooms().CountActiveUsers(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, 5, count)
	})
}

func TestLeaveRoom(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	pub := &recordingPublisher{}
	svc := &MembershipService{Store: st, Events: pub}
	room := seedRoom(t, st, "general", 10)
	alice := seedUser(t, st, "alice", domain.RoleUser)
	ctx := context.Background()

	joinRoom(t, svc, room, alice)

	t.Run("leave removes membership and records a system message", func(t *testing.T) {
		require.NoError(t, svc.LeaveRoom(ctx, room.ID, alice.ID, alice.Username))

		member, err := svc.IsMember(ctx, room.ID, alice.ID)
		require.NoError(t, err)
		require.False(t, member)

		page, err := st.Messages().ListRoomMessages(ctx, room.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
		require.Equal(t, "alice left the room", page.Messages[1].Text)
	})

	t.Run("leaving again fails", func(t *testing.T) {
		before := len(pub.eventTypes())
		err := svc.LeaveRoom(ctx, room.ID, alice.ID, alice.Username)
		require.ErrorIs(t, err, ErrNotInRoom)
		require.Len(t, pub.eventTypes(), before)
	})

	t.Run("leaving a room never joined fails", func(t *testing.T) {
		stranger := seedUser(t, st, "stranger", domain.RoleUser)
		err := svc.LeaveRoom(ctx, room.ID, stranger.ID, stranger.Username)
		require.ErrorIs(t, err, ErrNotInRoom)

		// The failed leave writes no system message.
		page, err := st.Messages().ListRoomMessages(ctx, room.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
	})

	t.Run("unknown room", func(t *testing.T) {
		err := svc.LeaveRoom(ctx, idx.New(), alice.ID, alice.Username)
		require.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestRoomLifecycle(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	pub := &recordingPublisher{}
	svc := &MembershipService{Store: st, Events: pub}
	admin := seedUser(t, st, "admin", domain.RoleAdmin)
	ctx := context.Background()

	t.Run("create rejects blank names", func(t *testing.T) {
		_, err := svc.CreateRoom(ctx, "   ", "", 10, false)
		require.ErrorIs(t, err, ErrInvalidRoomName)
	})

	t.Run("create rejects duplicate names", func(t *testing.T) {
		_, err := svc.CreateRoom(ctx, "lounge", "", 10, false)
		require.NoError(t, err)
		_, err = svc.CreateRoom(ctx, "lounge", "", 10, false)
		require.ErrorIs(t, err, ErrRoomNameTaken)
	})

	t.Run("update renames and resizes", func(t *testing.T) {
		room, err := svc.CreateRoom(ctx, "workroom", "before", 10, false)
		require.NoError(t, err)

		got, err := svc.UpdateRoom(ctx, room.ID, "warroom", "after", 2)
		require.NoError(t, err)
		require.Equal(t, "warroom", got.Name)
		require.Equal(t, "after", got.Description)
		require.Equal(t, 2, got.MaxUsers)
	})

	t.Run("shrinking capacity keeps existing members", func(t *testing.T) {
		room, err := svc.CreateRoom(ctx, "shrinking", "", 3, false)
		require.NoError(t, err)

		users := []domain.User{
			seedUser(t, st, "m1", domain.RoleUser),
			seedUser(t, st, "m2", domain.RoleUser),
			seedUser(t, st, "m3", domain.RoleUser),
		}
		for _, u := range users {
			joinRoom(t, svc, room, u)
		}

		_, err = svc.UpdateRoom(ctx, room.ID, "shrinking", "", 1)
		require.NoError(t, err)

		count, err := st.Rooms().CountActiveUsers(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, 3, count)

		late := seedUser(t, st, "late", domain.RoleUser)
		_, err = svc.JoinRoom(ctx, room.ID, late.ID, late.Username)
		require.ErrorIs(t, err, ErrRoomFull)
	})

	t.Run("delete soft-deletes the room and its history", func(t *testing.T) {
		room, err := svc.CreateRoom(ctx, "doomed", "", 10, false)
		require.NoError(t, err)
		member := seedUser(t, st, "doomed-member", domain.RoleUser)
		joinRoom(t, svc, room, member)

		require.NoError(t, svc.DeleteRoom(ctx, room.ID, admin.ID))

		_, err = svc.GetRoom(ctx, room.ID)
		require.ErrorIs(t, err, ErrRoomNotFound)
		require.Contains(t, pub.closed, room.ID)

		page, err := st.Messages().ListRoomMessages(ctx, room.ID, 1, 10)
		require.NoError(t, err)
		require.Empty(t, page.Messages)
	})

	t.Run("the default room cannot be deleted", func(t *testing.T) {
		bootstrap := &BootstrapService{
			Store:         st,
			AdminUsername: "unused",
			AdminPassword: "unused-password",
			DefaultRoom:   "General",
		}
		require.NoError(t, bootstrap.Run(ctx))

		def, err := st.Rooms().GetDefaultRoom(ctx)
		require.NoError(t, err)

		err = svc.DeleteRoom(ctx, def.ID, admin.ID)
		require.ErrorIs(t, err, ErrCannotDeleteDefault)
	})

	t.Run("the default room cannot be modified", func(t *testing.T) {
		def, err := st.Rooms().GetDefaultRoom(ctx)
		require.NoError(t, err)

		_, err = svc.UpdateRoom(ctx, def.ID, "renamed", "", 5)
		require.ErrorIs(t, err, ErrCannotModifyDefault)

		got, err := svc.GetRoom(ctx, def.ID)
		require.NoError(t, err)
		require.Equal(t, def.Name, got.Name)
	})

	t.Run("list orders default room first", func(t *testing.T) {
		summaries, err := svc.ListRooms(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, summaries)
		require.True(t, summaries[0].Room.IsDefault)
	})
}
