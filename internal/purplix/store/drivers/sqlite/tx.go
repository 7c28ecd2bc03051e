package sqlite

import (
	"context"
	"database/sql"

	"github.com/purplix/backend/internal/purplix/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller will commit/rollback and the outer DB stays open

// Ping is a no-op for transactions. The connection is already established.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users           { return &usersRepo{db: t.tx} }
func (t *txStore) Proofs() store.Proofs         { return &proofsRepo{db: t.tx} }
func (t *txStore) Sessions() store.Sessions     { return &sessionsRepo{db: t.tx} }
func (t *txStore) OTPMarkers() store.OTPMarkers { return &otpMarkersRepo{db: t.tx} }
func (t *txStore) EmailVerifications() store.EmailVerifications {
	return &emailVerificationsRepo{db: t.tx}
}
func (t *txStore) Canaries() store.Canaries               { return &canariesRepo{db: t.tx} }
func (t *txStore) DeletedCanaries() store.DeletedCanaries { return &deletedCanariesRepo{db: t.tx} }
func (t *txStore) Warrants() store.Warrants               { return &warrantsRepo{db: t.tx} }
func (t *txStore) Subscriptions() store.Subscriptions     { return &subscriptionsRepo{db: t.tx} }
func (t *txStore) TrustedCanaries() store.TrustedCanaries { return &trustedCanariesRepo{db: t.tx} }
func (t *txStore) Surveys() store.Surveys                 { return &surveysRepo{db: t.tx} }
func (t *txStore) SurveyAnswers() store.SurveyAnswers     { return &surveyAnswersRepo{db: t.tx} }
func (t *txStore) SurveyBlockers() store.SurveyBlockers   { return &surveyBlockersRepo{db: t.tx} }
func (t *txStore) SigningKeys() store.SigningKeys         { return &signingKeysRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations are applied before any tx
