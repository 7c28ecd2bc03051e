package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

type emailVerificationsRepo struct {
	db dbtx
}

func (r *emailVerificationsRepo) CreateEmailVerification(ctx context.Context, v domain.EmailVerification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_verifications (email, secret, expires_at) VALUES (?, ?, ?)`,
		v.Email, v.Secret, toMillis(v.ExpiresAt))
	return err
}

func (r *emailVerificationsRepo) GetEmailVerification(ctx context.Context, email string, now time.Time) (domain.EmailVerification, error) {
	var (
		v         domain.EmailVerification
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT email, secret, expires_at FROM email_verifications
		WHERE email = ? AND expires_at > ? ORDER BY expires_at DESC LIMIT 1`,
		email, toMillis(now)).Scan(&v.Email, &v.Secret, &expiresAt)
	if err != nil {
		return domain.EmailVerification{}, mapNotFound(err)
	}
	v.ExpiresAt = fromMillis(expiresAt)
	return v, nil
}

func (r *emailVerificationsRepo) ConsumeEmailVerification(ctx context.Context, email, secret string, now time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE email = ? AND secret = ? AND expires_at > ?`,
		email, secret, toMillis(now)))
}

func (r *emailVerificationsRepo) DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE expires_at <= ?`, toMillis(now)))
}
