package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions
		(id, user_id, created_at, expires_at, record_kept_till,
		 location_region, location_country, location_ip, device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, toMillis(s.CreatedAt), toMillis(s.ExpiresAt), toMillis(s.RecordKeptTill),
		mapStringNull(s.Location.Region), mapStringNull(s.Location.Country),
		mapStringNull(s.Location.IP), mapStringNull(s.Device),
	)
	return err
}

func (r *sessionsRepo) SessionLive(ctx context.Context, id string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE id = ? AND expires_at > ?`,
		id, toMillis(now)).Scan(&n)
	return n > 0, err
}

func (r *sessionsRepo) ListSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, created_at, expires_at, record_kept_till,
		location_region, location_country, location_ip, device
		FROM sessions WHERE user_id = ? AND expires_at > ?
		ORDER BY created_at DESC, id DESC`, userID, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var (
			s                           domain.Session
			created, expires, kept      int64
			region, country, ip, device sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.UserID, &created, &expires, &kept,
			&region, &country, &ip, &device); err != nil {
			return nil, err
		}
		s.CreatedAt = fromMillis(created)
		s.ExpiresAt = fromMillis(expires)
		s.RecordKeptTill = fromMillis(kept)
		s.Location = domain.SessionLocation{
			Region:  mapNullString(region),
			Country: mapNullString(country),
			IP:      mapNullString(ip),
		}
		s.Device = mapNullString(device)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id, userID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? RETURNING id`, userID)
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

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE record_kept_till <= ?`, toMillis(now)))
}
