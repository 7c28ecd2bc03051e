package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/purplix/backend/internal/purplix/domain"
)

type surveysRepo struct {
	db dbtx
}

const surveyColumns = `id, user_id, title_iv, title_cipher, description, questions, signature,
	public_key, requires_login, requires_captcha, proxy_block, allow_multiple_submissions,
	closed, closing_at, ip_key_hash, responses, created_at`

func (r *surveysRepo) CreateSurvey(ctx context.Context, s domain.Survey) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	var description sql.NullString
	if s.Description != nil {
		b, err := json.Marshal(s.Description)
		if err != nil {
			return fmt.Errorf("encode description: %w", err)
		}
		description = sql.NullString{String: string(b), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO surveys (`+surveyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Title.IV, s.Title.CipherText, description, string(questions),
		s.Signature, s.PublicKey, s.RequiresLogin, s.RequiresCaptcha, s.ProxyBlock,
		s.AllowMultipleSubmissions, s.Closed, toNullMillis(s.ClosingAt),
		mapStringNull(s.IPKeyHash), s.Responses, toMillis(s.CreatedAt))
	return err
}

func (r *surveysRepo) GetSurvey(ctx context.Context, id string) (domain.Survey, error) {
	var (
		s           domain.Survey
		description sql.NullString
		questions   string
		closingAt   sql.NullInt64
		ipKeyHash   sql.NullString
		createdAt   int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = ?`, id).Scan(
		&s.ID, &s.UserID, &s.Title.IV, &s.Title.CipherText, &description, &questions,
		&s.Signature, &s.PublicKey, &s.RequiresLogin, &s.RequiresCaptcha, &s.ProxyBlock,
		&s.AllowMultipleSubmissions, &s.Closed, &closingAt, &ipKeyHash, &s.Responses, &createdAt)
	if err != nil {
		return domain.Survey{}, mapNotFound(err)
	}

	// Validate on read: a row that no longer decodes is an error, not a survey.
	if err := json.Unmarshal([]byte(questions), &s.Questions); err != nil {
		return domain.Survey{}, fmt.Errorf("decode questions for %s: %w", s.ID, err)
	}
	if description.Valid {
		s.Description = &domain.Sealed{}
		if err := json.Unmarshal([]byte(description.String), s.Description); err != nil {
			return domain.Survey{}, fmt.Errorf("decode description for %s: %w", s.ID, err)
		}
	}
	s.ClosingAt = fromNullMillis(closingAt)
	s.IPKeyHash = mapNullString(ipKeyHash)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *surveysRepo) IncrementResponses(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE surveys SET responses = responses + 1 WHERE id = ? RETURNING responses`, id).Scan(&n)
	return n, mapNotFound(err)
}

func (r *surveysRepo) CloseSurvey(ctx context.Context, id, userID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE surveys SET closed = 1 WHERE id = ? AND user_id = ?`, id, userID))
}
