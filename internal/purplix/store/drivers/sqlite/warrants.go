package sqlite

import (
	"context"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

type warrantsRepo struct {
	db dbtx
}

const warrantColumns = `id, canary_id, user_id, next_canary, issued_at, active, published,
	signature, btc_latest_block, statement, concern, alerted`

func (r *warrantsRepo) CreateWarrant(ctx context.Context, w domain.Warrant) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO warrants (`+warrantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.CanaryID, w.UserID, toMillis(w.NextCanary), toMillis(w.IssuedAt),
		w.Active, w.Published, w.Signature, w.BTCLatestBlock, w.Statement,
		string(w.Concern), w.Alerted)
	return err
}

func (r *warrantsRepo) GetUnpublishedWarrant(ctx context.Context, id, userID string) (domain.Warrant, error) {
	return scanWarrant(r.db.QueryRowContext(ctx, `SELECT `+warrantColumns+` FROM warrants
		WHERE id = ? AND user_id = ? AND published = 0`, id, userID))
}

// PublishWarrant must run inside a transaction so the sibling update and
// the publication land together.
func (r *warrantsRepo) PublishWarrant(ctx context.Context, id string, p domain.WarrantPublication) error {
	err := expectOne(r.db.ExecContext(ctx, `UPDATE warrants SET
		published = 1, active = 1, signature = ?, btc_latest_block = ?, statement = ?, concern = ?
		WHERE id = ? AND published = 0`,
		p.Signature, p.BTCLatestBlock, p.Statement, string(p.Concern), id))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE warrants SET active = 0
		WHERE canary_id = (SELECT canary_id FROM warrants WHERE id = ?) AND id != ?`, id, id)
	return err
}

func (r *warrantsRepo) GetPublishedWarrant(ctx context.Context, canaryID string, page int) (domain.Warrant, error) {
	return scanWarrant(r.db.QueryRowContext(ctx, `SELECT `+warrantColumns+` FROM warrants
		WHERE canary_id = ? AND published = 1
		ORDER BY issued_at DESC, id DESC LIMIT 1 OFFSET ?`, canaryID, page))
}

func (r *warrantsRepo) DeleteCanaryWarrants(ctx context.Context, canaryID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM warrants WHERE canary_id = ?`, canaryID)
	return err
}

func (r *warrantsRepo) ListDueWarrants(ctx context.Context, deadline time.Time) ([]domain.Warrant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+warrantColumns+` FROM warrants
		WHERE active = 1 AND published = 1 AND alerted = 0 AND next_canary <= ?
		ORDER BY next_canary`, toMillis(deadline))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Warrant
	for rows.Next() {
		w, err := scanWarrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *warrantsRepo) MarkAlerted(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `UPDATE warrants SET alerted = 1 WHERE id = ?`, id))
}

func (r *warrantsRepo) DeleteStaleWarrants(ctx context.Context, cutoff time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM warrants WHERE published = 0 AND issued_at <= ?`, toMillis(cutoff)))
}

func scanWarrant(row scanner) (domain.Warrant, error) {
	var (
		w            domain.Warrant
		next, issued int64
		concern      string
	)
	err := row.Scan(&w.ID, &w.CanaryID, &w.UserID, &next, &issued, &w.Active, &w.Published,
		&w.Signature, &w.BTCLatestBlock, &w.Statement, &concern, &w.Alerted)
	if err != nil {
		return domain.Warrant{}, mapNotFound(err)
	}
	w.NextCanary = fromMillis(next)
	w.IssuedAt = fromMillis(issued)
	w.Concern = domain.Concern(concern)
	return w, nil
}
