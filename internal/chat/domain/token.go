package domain

// TokenPair is what authentication endpoints return: the short-lived JWT
// access token and the opaque refresh token. The refresh token is never
// stored raw; only its fingerprint lives on the user record.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int    `json:"expires_in"`           // access token lifetime in seconds
}
