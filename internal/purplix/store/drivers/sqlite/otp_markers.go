package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

type otpMarkersRepo struct {
	db dbtx
}

func (r *otpMarkersRepo) MarkerExists(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM otp_markers WHERE user_id = ? AND code = ? AND expires_at > ?`,
		userID, code, toMillis(now)).Scan(&n)
	return n > 0, err
}

// InsertMarker only overwrites a row whose expiry has passed; a live row
// leaves the statement with zero affected rows.
func (r *otpMarkersRepo) InsertMarker(ctx context.Context, m domain.OTPMarker, now time.Time) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, `INSERT INTO otp_markers (user_id, code, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, code) DO UPDATE SET expires_at = excluded.expires_at
		WHERE otp_markers.expires_at <= ?`,
		m.UserID, m.Code, toMillis(m.ExpiresAt), toMillis(now)))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *otpMarkersRepo) DeleteExpiredMarkers(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM otp_markers WHERE expires_at <= ?`, toMillis(now)))
}
