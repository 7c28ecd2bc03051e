package sqlite

import (
	"context"
	"time"
)

type deletedCanariesRepo struct {
	db dbtx
}

func (r *deletedCanariesRepo) InsertDeleted(ctx context.Context, domainHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deleted_canaries (domain_hash, deleted_at) VALUES (?, ?)
		ON CONFLICT (domain_hash) DO NOTHING`,
		domainHash, toMillis(at))
	return err
}

func (r *deletedCanariesRepo) IsDeleted(ctx context.Context, domainHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM deleted_canaries WHERE domain_hash = ?`, domainHash).Scan(&n)
	return n > 0, err
}
