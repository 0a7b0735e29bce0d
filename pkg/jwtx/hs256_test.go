package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	signer, err := NewSigner(testSecret, "taproom-chat", time.Minute)
	require.NoError(t, err)
	verifier, err := NewVerifier(testSecret, "taproom-chat")
	require.NoError(t, err)

	raw, err := signer.Sign("01JD0000000000000000000000", "mia", "admin", time.Now())
	require.NoError(t, err)

	claims, err := verifier.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "01JD0000000000000000000000", claims.Subject)
	require.Equal(t, "mia", claims.Username)
	require.Equal(t, "admin", claims.Role)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, err := NewSigner(testSecret, "taproom-chat", time.Minute)
	require.NoError(t, err)
	verifier, err := NewVerifier(testSecret, "taproom-chat")
	require.NoError(t, err)

	raw, err := signer.Sign("user", "mia", "user", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecretAndIssuer(t *testing.T) {
	t.Parallel()

	signer, err := NewSigner(testSecret, "taproom-chat", time.Minute)
	require.NoError(t, err)
	raw, err := signer.Sign("user", "mia", "user", time.Now())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewVerifier([]byte("ffffffffffffffffffffffffffffffff"), "taproom-chat")
		require.NoError(t, err)
		_, err = other.Verify(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewVerifier(testSecret, "someone-else")
		require.NoError(t, err)
		_, err = other.Verify(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		verifier, err := NewVerifier(testSecret, "taproom-chat")
		require.NoError(t, err)
		_, err = verifier.Verify("nope.nope.nope")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewSigner([]byte("short"), "iss", time.Minute)
	require.ErrorIs(t, err, ErrSecretTooShort)

	_, err = NewVerifier([]byte("short"), "iss")
	require.ErrorIs(t, err, ErrSecretTooShort)
}
