package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength guards against trivially brute-forceable HMAC secrets.
const MinSecretLength = 32

var (
	// ErrSecretTooShort is returned when constructing a signer or verifier
	// with an undersized secret.
	ErrSecretTooShort = errors.New("jwtx: hmac secret must be at least 32 bytes")

	// ErrInvalidToken covers every verification failure: bad signature,
	// wrong algorithm, malformed token, expired, wrong issuer.
	ErrInvalidToken = errors.New("jwtx: invalid token")
)

// Signer issues HS256-signed access tokens.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSigner creates an HS256 signer. ttl of zero falls back to
// DefaultAccessTokenTTL.
func NewSigner(secret []byte, issuer string, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Signer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// TTL reports the access-token lifetime this signer stamps into claims.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign mints a signed access token for the given user identity.
func (s *Signer) Sign(subject, username, role string, now time.Time) (string, error) {
	claims := NewAccessClaims(subject, username, role, s.ttl, s.issuer, now)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verifier validates HS256 access tokens. Verification is stateless: no
// store lookup is involved, which is what makes per-message auth on the
// realtime path cheap.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier sharing the signer's secret and issuer.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	return &Verifier{secret: secret, issuer: issuer}, nil
}

// Verify parses and validates a raw token string, returning its claims.
// Any failure collapses to ErrInvalidToken so callers cannot leak the
// distinction to clients.
func (v *Verifier) Verify(raw string) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
