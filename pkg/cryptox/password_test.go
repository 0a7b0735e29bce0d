package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyPassword("correct horse battery staple", hash))
	require.Error(t, VerifyPassword("wrong password", hash))
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same input")
	require.NoError(t, err)
	b, err := HashPassword("same input")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "each hash must use a fresh salt")
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"plainly-not-a-hash",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=banana$c2FsdA$aGFzaA",
	}
	for _, bad := range cases {
		require.Error(t, VerifyPassword("anything", bad), "hash %q", bad)
	}
}

func TestGenerateTokenAndFingerprint(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.Len(t, tok, 43)

	other, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, tok, other)

	require.Equal(t, FingerprintToken(tok), FingerprintToken(tok))
	require.NotEqual(t, FingerprintToken(tok), FingerprintToken(other))

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	code, err := GenerateCode(8)
	require.NoError(t, err)
	require.Len(t, code, 8)
	for _, r := range code {
		require.Contains(t, codeAlphabet, string(r))
	}

	_, err = GenerateCode(-1)
	require.Error(t, err)
}
