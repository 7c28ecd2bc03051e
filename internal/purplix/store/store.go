package store

import (
	"context"
	"errors"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so transactions stay explicit: a Tx cannot open
// another Tx.
type Store interface {
	Users() Users
	Proofs() Proofs
	Sessions() Sessions
	OTPMarkers() OTPMarkers
	EmailVerifications() EmailVerifications
	Canaries() Canaries
	DeletedCanaries() DeletedCanaries
	Warrants() Warrants
	Subscriptions() Subscriptions
	TrustedCanaries() TrustedCanaries
	Surveys() Surveys
	SurveyAnswers() SurveyAnswers
	SurveyBlockers() SurveyBlockers
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already lowercased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	SetEmailVerified(ctx context.Context, userID string) error

	// SetOTP replaces the secret and completed flag together.
	SetOTP(ctx context.Context, userID, secret string, completed bool) error

	// CompleteOTP flips completed to true. Returns ErrAlreadyExists when it
	// was already true, so concurrent setups cannot both succeed.
	CompleteOTP(ctx context.Context, userID string) error

	UpdateCredentials(ctx context.Context, userID string, c domain.Credentials) error
	SetIPLookupConsent(ctx context.Context, userID string, consent bool) error
	UpdateNotifications(ctx context.Context, userID string, n domain.Notifications) error
}

type Proofs interface {
	CreateProof(ctx context.Context, p domain.Proof) error

	// ConsumeProof atomically deletes the live proof matching (id, userID)
	// and returns it. At most one caller ever observes a given proof.
	ConsumeProof(ctx context.Context, id, userID string, now time.Time) (domain.Proof, error)

	DeleteExpiredProofs(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// SessionLive reports whether a session with id exists and has not expired.
	SessionLive(ctx context.Context, id string, now time.Time) (bool, error)

	// ListSessions returns the user's live sessions, newest first.
	ListSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// DeleteSession removes one session owned by userID.
	DeleteSession(ctx context.Context, id, userID string) error

	// DeleteUserSessions removes every session for userID and returns their ids.
	DeleteUserSessions(ctx context.Context, userID string) ([]string, error)

	// DeleteExpiredSessions purges rows past record_kept_till.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type OTPMarkers interface {
	// MarkerExists reports whether a live marker for (userID, code) exists.
	MarkerExists(ctx context.Context, userID, code string, now time.Time) (bool, error)

	// InsertMarker stores a marker, replacing an expired one. Returns
	// ErrAlreadyExists when a live marker is already present.
	InsertMarker(ctx context.Context, m domain.OTPMarker, now time.Time) error

	DeleteExpiredMarkers(ctx context.Context, now time.Time) (int64, error)
}

type EmailVerifications interface {
	CreateEmailVerification(ctx context.Context, v domain.EmailVerification) error

	// GetEmailVerification returns the live verification for email.
	GetEmailVerification(ctx context.Context, email string, now time.Time) (domain.EmailVerification, error)

	// ConsumeEmailVerification deletes the live (email, secret) row.
	ConsumeEmailVerification(ctx context.Context, email, secret string, now time.Time) error

	DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) (int64, error)
}

type Canaries interface {
	CreateCanary(ctx context.Context, c domain.Canary) error

	// DomainTaken reports whether domain has a verified canary or is
	// already registered by userID.
	DomainTaken(ctx context.Context, domainName, userID string) (bool, error)

	GetCanaryByID(ctx context.Context, id string) (domain.Canary, error)
	GetUserCanary(ctx context.Context, domainName, userID string) (domain.Canary, error)
	GetVerifiedCanary(ctx context.Context, domainName string) (domain.Canary, error)
	ListUserCanaries(ctx context.Context, userID string) ([]domain.Canary, error)

	// GetCanaryByCode finds userID's canary for domain with the given code.
	GetCanaryByCode(ctx context.Context, domainName, userID, code string) (domain.Canary, error)

	// MarkVerified sets verified. Returns ErrAlreadyExists when another
	// canary for the same domain is already verified.
	MarkVerified(ctx context.Context, id string) error

	// DeleteUnverified removes every unverified canary for domain.
	DeleteUnverified(ctx context.Context, domainName string) (int64, error)

	DeleteCanary(ctx context.Context, id string) error
	SetLogo(ctx context.Context, id, logo string) error

	// ListUnverifiedSince returns unverified canaries created after since.
	ListUnverifiedSince(ctx context.Context, since time.Time) ([]domain.Canary, error)
}

type DeletedCanaries interface {
	// InsertDeleted blacklists a domain hash. Re-inserting is a no-op.
	InsertDeleted(ctx context.Context, domainHash string, at time.Time) error
	IsDeleted(ctx context.Context, domainHash string) (bool, error)
}

type Warrants interface {
	CreateWarrant(ctx context.Context, w domain.Warrant) error
	GetUnpublishedWarrant(ctx context.Context, id, userID string) (domain.Warrant, error)

	// PublishWarrant stores the publication and makes w the only active
	// warrant of its canary.
	PublishWarrant(ctx context.Context, id string, p domain.WarrantPublication) error

	// GetPublishedWarrant returns the page-th newest published warrant.
	GetPublishedWarrant(ctx context.Context, canaryID string, page int) (domain.Warrant, error)

	DeleteCanaryWarrants(ctx context.Context, canaryID string) error

	// ListDueWarrants returns active, un-alerted warrants due before deadline.
	ListDueWarrants(ctx context.Context, deadline time.Time) ([]domain.Warrant, error)
	MarkAlerted(ctx context.Context, id string) error

	// DeleteStaleWarrants purges unpublished warrants issued before cutoff.
	DeleteStaleWarrants(ctx context.Context, cutoff time.Time) (int64, error)
}

type Subscriptions interface {
	// Subscribe returns ErrAlreadyExists when the pair exists.
	Subscribe(ctx context.Context, userID, canaryID string) error
	Unsubscribe(ctx context.Context, userID, canaryID string) error
	IsSubscribed(ctx context.Context, userID, canaryID string) (bool, error)
	ListSubscribers(ctx context.Context, canaryID string) ([]string, error)
}

type TrustedCanaries interface {
	// TrustCanary returns ErrAlreadyExists when the user already trusts domain.
	TrustCanary(ctx context.Context, t domain.TrustedCanary) error
	GetTrusted(ctx context.Context, userID, domainName string) (domain.TrustedCanary, error)
	ListTrusted(ctx context.Context, userID string) ([]domain.TrustedCanary, error)
}

type Surveys interface {
	CreateSurvey(ctx context.Context, s domain.Survey) error
	GetSurvey(ctx context.Context, id string) (domain.Survey, error)

	// IncrementResponses bumps the counter and returns the new value.
	IncrementResponses(ctx context.Context, id string) (int, error)

	CloseSurvey(ctx context.Context, id, userID string) error
}

type SurveyAnswers interface {
	CreateAnswer(ctx context.Context, a domain.SurveyAnswer) error
	HasUserAnswered(ctx context.Context, surveyID, userID string) (bool, error)

	// GetAnswerPage returns the page-th newest answer.
	GetAnswerPage(ctx context.Context, surveyID string, page int) (domain.SurveyAnswer, error)
}

type SurveyBlockers interface {
	// BlockerExists reports whether a live blocker covers ipHMAC.
	BlockerExists(ctx context.Context, surveyID, ipHMAC string, now time.Time) (bool, error)

	// InsertBlocker stores a blocker, replacing an expired one. Returns
	// ErrAlreadyExists when a live blocker is already present.
	InsertBlocker(ctx context.Context, b domain.SurveyBlocker, now time.Time) error
	DeleteExpiredBlockers(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListAllSigningKeys returns keys that have not expired.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
