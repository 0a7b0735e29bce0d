package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short-lived access tokens, longer refresh
// window; both can be overridden per-service via config.
const (
	DefaultAccessTokenTTL  = 2 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims used across the chat service. The
// subject is always the canonical user ID; username and role are carried for
// display and authorisation without a store round trip.
type Claims struct {
	jwt.RegisteredClaims

	// Username for the authenticated user.
	Username string `json:"username,omitempty"`

	// Role is the user's role name ("admin" or "user").
	Role string `json:"role,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for a user access token.
func NewAccessClaims(
	subject, username, role string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		Role:     role,
	}
}
