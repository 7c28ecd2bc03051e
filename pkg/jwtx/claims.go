package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims. The token ID (jti) is the session
// ID so a token can be revoked by deleting its session row.
type Claims struct {
	jwt.RegisteredClaims
}

// NewSessionClaims builds claims for a freshly created session.
func NewSessionClaims(userID, sessionID, issuer string, issuedAt, expiresAt time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        sessionID,
		},
	}
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// SessionID returns the jti claim.
func (c *Claims) SessionID() string { return c.ID }

// Remaining reports how long the token stays valid after now. Tokens
// without an expiry report zero.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateSubject rejects tokens that do not name both a user and a session.
func (c *Claims) ValidateSubject() error {
	if c.Subject == "" || c.ID == "" {
		return ErrInvalidClaim
	}
	return nil
}
