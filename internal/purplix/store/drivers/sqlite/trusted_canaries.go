package sqlite

import (
	"context"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

type trustedCanariesRepo struct {
	db dbtx
}

func (r *trustedCanariesRepo) TrustCanary(ctx context.Context, t domain.TrustedCanary) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO trusted_canaries
		(user_id, domain, public_key_hash, signature, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Domain, t.PublicKeyHash, t.Signature, toMillis(t.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *trustedCanariesRepo) GetTrusted(ctx context.Context, userID, domainName string) (domain.TrustedCanary, error) {
	return scanTrusted(r.db.QueryRowContext(ctx, `SELECT user_id, domain, public_key_hash, signature, created_at
		FROM trusted_canaries WHERE user_id = ? AND domain = ?`, userID, domainName))
}

func (r *trustedCanariesRepo) ListTrusted(ctx context.Context, userID string) ([]domain.TrustedCanary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, domain, public_key_hash, signature, created_at
		FROM trusted_canaries WHERE user_id = ? ORDER BY domain`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrustedCanary
	for rows.Next() {
		t, err := scanTrusted(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrusted(row scanner) (domain.TrustedCanary, error) {
	var (
		t         domain.TrustedCanary
		createdAt int64
	)
	if err := row.Scan(&t.UserID, &t.Domain, &t.PublicKeyHash, &t.Signature, &createdAt); err != nil {
		return domain.TrustedCanary{}, mapNotFound(err)
	}
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}
