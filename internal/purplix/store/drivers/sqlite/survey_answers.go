package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/purplix/backend/internal/purplix/domain"
)

type surveyAnswersRepo struct {
	db dbtx
}

func (r *surveyAnswersRepo) CreateAnswer(ctx context.Context, a domain.SurveyAnswer) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO survey_answers (id, survey_id, user_id, answers, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.SurveyID, mapStringNull(a.UserID), string(answers), toMillis(a.CreatedAt))
	return err
}

func (r *surveyAnswersRepo) HasUserAnswered(ctx context.Context, surveyID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM survey_answers WHERE survey_id = ? AND user_id = ?`,
		surveyID, userID).Scan(&n)
	return n > 0, err
}

func (r *surveyAnswersRepo) GetAnswerPage(ctx context.Context, surveyID string, page int) (domain.SurveyAnswer, error) {
	var (
		a         domain.SurveyAnswer
		userID    sql.NullString
		answers   string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, survey_id, user_id, answers, created_at
		FROM survey_answers WHERE survey_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1 OFFSET ?`, surveyID, page).
		Scan(&a.ID, &a.SurveyID, &userID, &answers, &createdAt)
	if err != nil {
		return domain.SurveyAnswer{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return domain.SurveyAnswer{}, fmt.Errorf("decode answers for %s: %w", a.ID, err)
	}
	a.UserID = mapNullString(userID)
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}
