package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the bearer token proving an authenticated session, together
// with its validity window. At most one credential is current at a time.
type Credential struct {
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewCredential builds a credential from a token and the server-supplied
// lifetime. When the token is a decodable JWT its exp claim takes precedence
// over expiresIn.
func NewCredential(token string, expiresIn time.Duration, now time.Time) Credential {
	c := Credential{
		AccessToken: token,
		IssuedAt:    now,
		ExpiresAt:   now.Add(expiresIn),
	}
	if exp, ok := decodeExpiry(token); ok {
		c.ExpiresAt = exp
	}
	return c
}

// Valid reports whether the credential can still be attached to requests.
// A malformed token is simply invalid, not an error.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	exp := c.ExpiresAt
	if decoded, ok := decodeExpiry(c.AccessToken); ok {
		exp = decoded
	}
	if exp.IsZero() {
		return false
	}
	return now.Before(exp)
}

// decodeExpiry extracts the exp claim without verifying the signature; the
// client holds no signing key and only needs the expiry for local scheduling.
func decodeExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
