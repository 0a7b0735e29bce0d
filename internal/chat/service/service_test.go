package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/store/drivers/sqlite"
	"github.com/aussiebroadwan/taproom/pkg/cryptox"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-test-secret-test-secret!"

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestSigner(t *testing.T) *jwtx.Signer {
	t.Helper()

	signer, err := jwtx.NewSigner([]byte(testJWTSecret), "taproom-test", jwtx.DefaultAccessTokenTTL)
	require.NoError(t, err)
	return signer
}

func newTestVerifier(t *testing.T) *jwtx.Verifier {
	t.Helper()

	verifier, err := jwtx.NewVerifier([]byte(testJWTSecret), "taproom-test")
	require.NoError(t, err)
	return verifier
}

func seedUser(t *testing.T, st store.Store, username, role string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword("correct horse battery")
	require.NoError(t, err)

	now := time.Now()
	user := domain.User{
		ID:           idx.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

func seedRoom(t *testing.T, st store.Store, name string, maxUsers int) domain.Room {
	t.Helper()

	now := time.Now()
	room := domain.Room{
		ID:        idx.New(),
		Name:      name,
		MaxUsers:  maxUsers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Rooms().CreateRoom(context.Background(), room))
	return room
}

func joinRoom(t *testing.T, svc *MembershipService, room domain.Room, user domain.User) {
	t.Helper()

	_, err := svc.JoinRoom(context.Background(), room.ID, user.ID, user.Username)
	require.NoError(t, err)
}
