package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/stretchr/testify/require"
)

// fakeVoiceClient is an in-memory stand-in for the LiveKit client.
type fakeVoiceClient struct {
	mu       sync.Mutex
	rooms    map[string]int // name -> create count
	tokens   int
	removed  []string
	failNext error
}

func newFakeVoiceClient() *fakeVoiceClient {
	return &fakeVoiceClient{rooms: make(map[string]int)}
}

func (f *fakeVoiceClient) CreateRoom(ctx context.Context, name string, maxParticipants int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.rooms[name]++
	return nil
}

func (f *fakeVoiceClient) DeleteRoom(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, name)
	return nil
}

func (f *fakeVoiceClient) RoomExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[name]
	return ok, nil
}

func (f *fakeVoiceClient) RemoveParticipant(ctx context.Context, roomName, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roomName+"/"+identity)
	return nil
}

func (f *fakeVoiceClient) MintAccessToken(roomName, identity, displayName string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens++
	return fmt.Sprintf("jwt-%s-%s-%d", roomName, identity, f.tokens), nil
}

func (f *fakeVoiceClient) roomNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.rooms))
	for name := range f.rooms {
		names = append(names, name)
	}
	return names
}

func TestEnsureVoiceRoom(t *testing.T) {
	t.Parallel()

	t.Run("first call provisions and records the handle", func(t *testing.T) {
		st := newTestStore(t)
		client := newFakeVoiceClient()
		svc := &VoiceService{Store: st, Client: client}
		room := seedRoom(t, st, "general", 10)
		ctx := context.Background()

		name, err := svc.EnsureVoiceRoom(ctx, room.ID)
		require.NoError(t, err)
		require.NotEmpty(t, name)

		stored, err := st.Rooms().GetRoomByID(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, name, stored.VoiceRoomName)
	})

	t.Run("repeated calls return the same handle", func(t *testing.T) {
		st := newTestStore(t)
		client := newFakeVoiceClient()
		svc := &VoiceService{Store: st, Client: client}
		room := seedRoom(t, st, "general", 10)
		ctx := context.Background()

		first, err := svc.EnsureVoiceRoom(ctx, room.ID)
		require.NoError(t, err)
		second, err := svc.EnsureVoiceRoom(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Len(t, client.roomNames(), 1)
	})

	t.Run("concurrent provisioners converge on one handle", func(t *testing.T) {
		st := newTestStore(t)
		client := newFakeVoiceClient()
		svc := &VoiceService{Store: st, Client: client}
		room := seedRoom(t, st, "general", 10)
		ctx := context.Background()

		const racers = 10
		names := make([]string, racers)
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				names[i], errs[i] = svc.EnsureVoiceRoom(ctx, room.ID)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		for _, name := range names {
			require.Equal(t, names[0], name)
		}
		require.Len(t, client.roomNames(), 1)
	})

	t.Run("re-creates an upstream room that idled out", func(t *testing.T) {
		st := newTestStore(t)
		client := newFakeVoiceClient()
		svc := &VoiceService{Store: st, Client: client}
		room := seedRoom(t, st, "general", 10)
		ctx := context.Background()

		name, err := svc.EnsureVoiceRoom(ctx, room.ID)
		require.NoError(t, err)

		// Upstream reclaims the empty room.
		require.NoError(t, client.DeleteRoom(ctx, name))

		again, err := svc.EnsureVoiceRoom(ctx, room.ID)
		require.NoError(t, err)
		require.Equal(t, name, again)
		require.Contains(t, client.roomNames(), name)
	})

	t.Run("upstream failure surfaces as voice unavailable", func(t *testing.T) {
		st := newTestStore(t)
		client := newFakeVoiceClient()
		client.failNext = fmt.Errorf("connection refused")
		svc := &VoiceService{Store: st, Client: client}
		room := seedRoom(t, st, "general", 10)

		_, err := svc.EnsureVoiceRoom(context.Background(), room.ID)
		require.ErrorIs(t, err, ErrVoiceUnavailable)

		// No handle recorded for a failed provision.
		stored, err := st.Rooms().GetRoomByID(context.Background(), room.ID)
		require.NoError(t, err)
		require.Empty(t, stored.VoiceRoomName)
	})

	t.Run("unknown room", func(t *testing.T) {
		st := newTestStore(t)
		svc := &VoiceService{Store: st, Client: newFakeVoiceClient()}

		_, err := svc.EnsureVoiceRoom(context.Background(), idx.New())
		require.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestJoinVoice(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	client := newFakeVoiceClient()
	membership := &MembershipService{Store: st}
	svc := &VoiceService{Store: st, Client: client}
	room := seedRoom(t, st, "general", 10)
	alice := seedUser(t, st, "alice", domain.RoleUser)
	joinRoom(t, membership, room, alice)
	ctx := context.Background()

	t.Run("member gets a token and becomes voice-active", func(t *testing.T) {
		token, roomName, err := svc.JoinVoice(ctx, room.ID, alice.ID, alice.Username)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.NotEmpty(t, roomName)

		members, err := st.Rooms().ListActiveUsers(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.True(t, members[0].VoiceActive)
		require.Equal(t, alice.ID.String(), members[0].VoiceParticipantID)
	})

	t.Run("non-member is refused", func(t *testing.T) {
		outsider := seedUser(t, st, "outsider", domain.RoleUser)
		_, _, err := svc.JoinVoice(ctx, room.ID, outsider.ID, outsider.Username)
		require.ErrorIs(t, err, ErrNotRoomMember)
	})

	t.Run("leave clears voice state and evicts upstream", func(t *testing.T) {
		require.NoError(t, svc.LeaveVoice(ctx, room.ID, alice.ID, alice.Username))

		members, err := st.Rooms().ListActiveUsers(ctx, room.ID)
		require.NoError(t, err)
		require.False(t, members[0].VoiceActive)
		require.Empty(t, members[0].VoiceParticipantID)

		client.mu.Lock()
		removed := len(client.removed)
		client.mu.Unlock()
		require.Equal(t, 1, removed)
	})
}

func TestTeardownVoiceRoom(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	client := newFakeVoiceClient()
	svc := &VoiceService{Store: st, Client: client}
	room := seedRoom(t, st, "general", 10)
	ctx := context.Background()

	name, err := svc.EnsureVoiceRoom(ctx, room.ID)
	require.NoError(t, err)

	require.NoError(t, svc.TeardownVoiceRoom(ctx, name))
	require.Empty(t, client.roomNames())

	t.Run("tearing down a never-provisioned room is a no-op", func(t *testing.T) {
		require.NoError(t, svc.TeardownVoiceRoom(ctx, ""))
	})
}
