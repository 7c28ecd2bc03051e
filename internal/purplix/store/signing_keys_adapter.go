package store

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/pkg/jwtx"
)

// KeyStoreAdapter adapts Store to jwtx.KeyStore so jwtx does not depend on
// the domain package.
//
// A key only signs while it will outlive any token it could issue: keys
// expiring within margin are still loaded for verification but are not
// returned as active.
type KeyStoreAdapter struct {
	store  Store
	margin time.Duration
	now    func() time.Time
}

// NewKeyStoreAdapter creates an adapter. margin is normally the longest
// session lifetime.
func NewKeyStoreAdapter(store Store, margin time.Duration) *KeyStoreAdapter {
	return &KeyStoreAdapter{store: store, margin: margin, now: time.Now}
}

func (a *KeyStoreAdapter) ListAllSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListAllSigningKeys(ctx, a.now().UTC())
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListAllSigningKeys(ctx, a.now().UTC().Add(a.margin))
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error {
	return a.store.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
		ID:                  key.ID,
		Kid:                 key.Kid,
		Algorithm:           key.Algorithm,
		PrivateKeyEncrypted: key.PrivateKeyEncrypted,
		CreatedAt:           key.CreatedAt,
		ExpiresAt:           key.ExpiresAt,
	})
}

func toRecords(keys []domain.SigningKey) []jwtx.SigningKeyRecord {
	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, key := range keys {
		records[i] = jwtx.SigningKeyRecord{
			ID:                  key.ID,
			Kid:                 key.Kid,
			Algorithm:           key.Algorithm,
			PrivateKeyEncrypted: key.PrivateKeyEncrypted,
			CreatedAt:           key.CreatedAt,
			ExpiresAt:           key.ExpiresAt,
		}
	}
	return records
}
