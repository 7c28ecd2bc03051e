package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

type signingKeysRepo struct {
	db dbtx
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO signing_keys
		(id, kid, algorithm, private_key_encrypted, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(key.CreatedAt), toMillis(key.ExpiresAt))
	return err
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, kid, algorithm, private_key_encrypted, created_at, expires_at
		FROM signing_keys WHERE expires_at > ? ORDER BY created_at`, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k                  domain.SigningKey
			created, expiresAt int64
		)
		if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &created, &expiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(created)
		k.ExpiresAt = fromMillis(expiresAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE expires_at <= ?`, toMillis(now)))
}
