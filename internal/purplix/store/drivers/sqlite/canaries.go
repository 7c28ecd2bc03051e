package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

type canariesRepo struct {
	db dbtx
}

const canaryColumns = `id, domain, user_id, about, signature, algorithms, public_key,
	private_key_iv, private_key_cipher, verify_code, verified, logo, created_at`

func (r *canariesRepo) CreateCanary(ctx context.Context, c domain.Canary) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO canaries (`+canaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Domain, c.UserID, c.About, c.Signature, c.Algorithms, c.PublicKey,
		c.PrivateKey.IV, c.PrivateKey.CipherText, c.VerifyCode, c.Verified,
		mapStringNull(c.Logo), toMillis(c.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *canariesRepo) DomainTaken(ctx context.Context, domainName, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM canaries
		WHERE domain = ? AND (verified = 1 OR user_id = ?)`,
		domainName, userID).Scan(&n)
	return n > 0, err
}

func (r *canariesRepo) GetCanaryByID(ctx context.Context, id string) (domain.Canary, error) {
	return scanCanary(r.db.QueryRowContext(ctx,
		`SELECT `+canaryColumns+` FROM canaries WHERE id = ?`, id))
}

func (r *canariesRepo) GetUserCanary(ctx context.Context, domainName, userID string) (domain.Canary, error) {
	return scanCanary(r.db.QueryRowContext(ctx,
		`SELECT `+canaryColumns+` FROM canaries WHERE domain = ? AND user_id = ?`,
		domainName, userID))
}

func (r *canariesRepo) GetVerifiedCanary(ctx context.Context, domainName string) (domain.Canary, error) {
	return scanCanary(r.db.QueryRowContext(ctx,
		`SELECT `+canaryColumns+` FROM canaries WHERE domain = ? AND verified = 1`,
		domainName))
}

func (r *canariesRepo) GetCanaryByCode(ctx context.Context, domainName, userID, code string) (domain.Canary, error) {
	return scanCanary(r.db.QueryRowContext(ctx,
		`SELECT `+canaryColumns+` FROM canaries WHERE domain = ? AND user_id = ? AND verify_code = ?`,
		domainName, userID, code))
}

func (r *canariesRepo) ListUserCanaries(ctx context.Context, userID string) ([]domain.Canary, error) {
	return r.list(ctx, `SELECT `+canaryColumns+` FROM canaries WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (r *canariesRepo) ListUnverifiedSince(ctx context.Context, since time.Time) ([]domain.Canary, error) {
	return r.list(ctx, `SELECT `+canaryColumns+` FROM canaries
		WHERE verified = 0 AND created_at > ? ORDER BY created_at`, toMillis(since))
}

func (r *canariesRepo) list(ctx context.Context, query string, args ...any) ([]domain.Canary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Canary
	for rows.Next() {
		c, err := scanCanary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *canariesRepo) MarkVerified(ctx context.Context, id string) error {
	err := expectOne(r.db.ExecContext(ctx, `UPDATE canaries SET verified = 1 WHERE id = ?`, id))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *canariesRepo) DeleteUnverified(ctx context.Context, domainName string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM canaries WHERE domain = ? AND verified = 0`, domainName))
}

func (r *canariesRepo) DeleteCanary(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM canaries WHERE id = ?`, id))
}

func (r *canariesRepo) SetLogo(ctx context.Context, id, logo string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE canaries SET logo = ? WHERE id = ?`, mapStringNull(logo), id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCanary(row scanner) (domain.Canary, error) {
	var (
		c         domain.Canary
		logo      sql.NullString
		createdAt int64
	)
	err := row.Scan(&c.ID, &c.Domain, &c.UserID, &c.About, &c.Signature, &c.Algorithms,
		&c.PublicKey, &c.PrivateKey.IV, &c.PrivateKey.CipherText, &c.VerifyCode,
		&c.Verified, &logo, &createdAt)
	if err != nil {
		return domain.Canary{}, mapNotFound(err)
	}
	c.Logo = mapNullString(logo)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}
