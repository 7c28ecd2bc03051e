package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

type proofsRepo struct {
	db dbtx
}

func (r *proofsRepo) CreateProof(ctx context.Context, p domain.Proof) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO proofs (id, user_id, to_sign, expires_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.UserID, p.ToSign, toMillis(p.ExpiresAt))
	return err
}

// ConsumeProof is a single DELETE ... RETURNING so two racing logins can
// never both observe the row.
func (r *proofsRepo) ConsumeProof(ctx context.Context, id, userID string, now time.Time) (domain.Proof, error) {
	var (
		p         domain.Proof
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM proofs WHERE id = ? AND user_id = ? AND expires_at > ?
		RETURNING id, user_id, to_sign, expires_at`,
		id, userID, toMillis(now),
	).Scan(&p.ID, &p.UserID, &p.ToSign, &expiresAt)
	if err != nil {
		return domain.Proof{}, mapNotFound(err)
	}
	p.ExpiresAt = fromMillis(expiresAt)
	return p, nil
}

func (r *proofsRepo) DeleteExpiredProofs(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM proofs WHERE expires_at <= ?`, toMillis(now)))
}
