package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	t.Parallel()

	t.Run("seeds the admin and default room on an empty store", func(t *testing.T) {
		st := newTestStore(t)
		svc := &BootstrapService{
			Store:         st,
			AdminUsername: "admin",
			AdminPassword: "a-strong-password",
			DefaultRoom:   "General",
		}
		ctx := context.Background()

		require.NoError(t, svc.Run(ctx))

		admin, err := st.Users().GetUserByUsername(ctx, "admin")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, admin.Role)

		room, err := st.Rooms().GetDefaultRoom(ctx)
		require.NoError(t, err)
		require.Equal(t, "General", room.Name)
		require.True(t, room.IsDefault)
	})

	t.Run("running twice changes nothing", func(t *testing.T) {
		st := newTestStore(t)
		svc := &BootstrapService{
			Store:         st,
			AdminUsername: "admin",
			AdminPassword: "a-strong-password",
			DefaultRoom:   "General",
		}
		ctx := context.Background()

		require.NoError(t, svc.Run(ctx))
		require.NoError(t, svc.Run(ctx))

		users, err := st.Users().ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)

		rooms, err := st.Rooms().ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
	})

	t.Run("skips the admin when users already exist", func(t *testing.T) {
		st := newTestStore(t)
		seedUser(t, st, "existing", domain.RoleUser)

		svc := &BootstrapService{
			Store:         st,
			AdminUsername: "admin",
			AdminPassword: "a-strong-password",
		}
		require.NoError(t, svc.Run(context.Background()))

		_, err := st.Users().GetUserByUsername(context.Background(), "admin")
		require.Error(t, err)
	})

	t.Run("fails fast on an empty store without credentials", func(t *testing.T) {
		st := newTestStore(t)
		svc := &BootstrapService{Store: st}
		require.Error(t, svc.Run(context.Background()))
	})
}
