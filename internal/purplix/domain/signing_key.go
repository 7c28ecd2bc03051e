package domain

import "time"

// SigningKey is a session token signing key, encrypted at rest.
type SigningKey struct {
	ID                  string // ULID
	Kid                 string // e.g. "purplix-abc123"
	Algorithm           string // EdDSA
	PrivateKeyEncrypted []byte // AES-256-GCM sealed PKCS8 PEM
	CreatedAt           time.Time
	ExpiresAt           time.Time // no longer signs or verifies after this
}

// IsExpired returns true if the key has passed its expiration time.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
