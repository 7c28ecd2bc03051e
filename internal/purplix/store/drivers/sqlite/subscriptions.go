package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/store"
)

type subscriptionsRepo struct {
	db dbtx
}

func (r *subscriptionsRepo) Subscribe(ctx context.Context, userID, canaryID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO canary_subscriptions (user_id, canary_id, created_at) VALUES (?, ?, ?)`,
		userID, canaryID, toMillis(time.Now()))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *subscriptionsRepo) Unsubscribe(ctx context.Context, userID, canaryID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM canary_subscriptions WHERE user_id = ? AND canary_id = ?`, userID, canaryID))
}

func (r *subscriptionsRepo) IsSubscribed(ctx context.Context, userID, canaryID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM canary_subscriptions WHERE user_id = ? AND canary_id = ?`,
		userID, canaryID).Scan(&n)
	return n > 0, err
}

func (r *subscriptionsRepo) ListSubscribers(ctx context.Context, canaryID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM canary_subscriptions WHERE canary_id = ? ORDER BY created_at`, canaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
