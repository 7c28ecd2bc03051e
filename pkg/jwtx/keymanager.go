package jwtx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/idx"
)

// AlgorithmEdDSA is the only signing algorithm session tokens use.
const AlgorithmEdDSA = "EdDSA"

// KeyManager owns the signing keys and the verifier for session tokens.
// Signing picks a random active key; verification accepts every key the
// manager has loaded, including retired ones still inside their grace period.
type KeyManager struct {
	keys     *KeySet
	verifier *Verifier
	issuer   string

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures an ephemeral KeyManager.
type KeyManagerOptions struct {
	// Issuer is written to and required on every token.
	Issuer string

	// NumKeys is how many signing keys to generate. Defaults to 3, capped at 10.
	NumKeys int
}

// SigningKeyRecord is a persisted signing key. PrivateKeyEncrypted is the
// PEM private key sealed with a cryptox.KeyCipher.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// KeyStore is the minimal storage the persistent manager needs.
type KeyStore interface {
	// ListAllSigningKeys returns every key that has not expired.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns keys still used for signing.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new key.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a KeyManager backed by a KeyStore.
type PersistentKeyManagerOptions struct {
	Store  KeyStore
	Cipher *cryptox.KeyCipher
	Issuer string

	// NumKeys is the target number of active signing keys.
	NumKeys int

	// Lifetime is how long a generated key stays usable. Defaults to 90 days.
	Lifetime time.Duration
}

// NewEphemeralKeyManager generates keys that only live in memory. Every
// issued token becomes invalid when the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	km := newKeyManager(opts.Issuer)
	for i := 0; i < clampKeys(opts.NumKeys); i++ {
		_, signer, err := generateSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// NewPersistentKeyManager loads keys from the store, decrypting them with
// the configured cipher, and tops up the active set to NumKeys.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, errors.New("jwtx: Store is required for persistent key manager")
	}
	if opts.Cipher == nil {
		return nil, errors.New("jwtx: Cipher is required for persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 90 * 24 * time.Hour
	}
	want := clampKeys(opts.NumKeys)

	km := newKeyManager(opts.Issuer)

	all, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}
	for _, rec := range all {
		signer, err := openRecord(opts.Cipher, rec)
		if err != nil {
			return nil, err
		}
		if err := km.keys.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", rec.Kid, err)
		}
	}

	active, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load active keys: %w", err)
	}
	for _, rec := range active {
		signer, err := openRecord(opts.Cipher, rec)
		if err != nil {
			return nil, err
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	for km.NumSigners() < want {
		pemData, signer, err := generateSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate new key: %w", err)
		}
		sealed, err := opts.Cipher.Encrypt(pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
		}
		rec := SigningKeyRecord{
			ID:                  idx.New().String(),
			Kid:                 signer.KID(),
			Algorithm:           AlgorithmEdDSA,
			PrivateKeyEncrypted: sealed,
			CreatedAt:           now,
			ExpiresAt:           now.Add(opts.Lifetime),
		}
		if err := opts.Store.CreateSigningKey(ctx, rec); err != nil {
			return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

func newKeyManager(issuer string) *KeyManager {
	keys := NewKeySet()
	return &KeyManager{
		keys:     keys,
		verifier: NewVerifier(keys, issuer),
		issuer:   issuer,
	}
}

func clampKeys(n int) int {
	if n <= 0 {
		return 3
	}
	if n > 10 {
		return 10
	}
	return n
}

func openRecord(cipher *cryptox.KeyCipher, rec SigningKeyRecord) (Signer, error) {
	if rec.Algorithm != AlgorithmEdDSA {
		return nil, fmt.Errorf("jwtx: key %s uses unsupported algorithm %q", rec.Kid, rec.Algorithm)
	}
	pemData, err := cipher.Decrypt(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.Kid, err)
	}
	signer, err := NewSigner(rec.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", rec.Kid, err)
	}
	return signer, nil
}

func generateSigner() ([]byte, Signer, error) {
	kid, err := generateRandomKeyID()
	if err != nil {
		return nil, nil, err
	}
	pemData, err := cryptox.GenerateSigningKey()
	if err != nil {
		return nil, nil, err
	}
	signer, err := NewSigner(kid, pemData)
	if err != nil {
		return nil, nil, err
	}
	return pemData, signer, nil
}

// Issue signs session claims for userID/sessionID valid until expiresAt.
func (km *KeyManager) Issue(userID, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	signer := km.GetSigner()
	if signer == nil {
		return "", errors.New("jwtx: no signing keys loaded")
	}
	return signer.Sign(NewSessionClaims(userID, sessionID, km.issuer, issuedAt, expiresAt))
}

// Verify validates a session token.
func (km *KeyManager) Verify(token string) (*Claims, error) {
	return km.verifier.Verify(token)
}

// Verifier exposes the underlying verifier.
func (km *KeyManager) Verifier() *Verifier { return km.verifier }

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.keys.IsReady() && km.NumSigners() > 0
}

// GetSigner returns a randomly selected active signer.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a key for both signing and verification.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}
	if err := km.keys.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.mu.Lock()
	km.signers = append(km.signers, signer)
	km.mu.Unlock()
	return nil
}

// generateRandomKeyID creates a "purplix-{token}" key identifier.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return "purplix-" + token, nil
}
