package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

type surveyBlockersRepo struct {
	db dbtx
}

func (r *surveyBlockersRepo) BlockerExists(ctx context.Context, surveyID, ipHMAC string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM survey_blockers WHERE survey_id = ? AND ip_hmac = ? AND expires_at > ?`,
		surveyID, ipHMAC, toMillis(now)).Scan(&n)
	return n > 0, err
}

// InsertBlocker is the same expired-row upsert as OTP markers: a live
// blocker wins and the insert reports ErrAlreadyExists.
func (r *surveyBlockersRepo) InsertBlocker(ctx context.Context, b domain.SurveyBlocker, now time.Time) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, `INSERT INTO survey_blockers (survey_id, ip_hmac, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (survey_id, ip_hmac) DO UPDATE SET expires_at = excluded.expires_at
		WHERE survey_blockers.expires_at <= ?`,
		b.SurveyID, b.IPHMAC, toMillis(b.ExpiresAt), toMillis(now)))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *surveyBlockersRepo) DeleteExpiredBlockers(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM survey_blockers WHERE expires_at <= ?`, toMillis(now)))
}
