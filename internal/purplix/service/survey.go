package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/events"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/idx"
	"github.com/purplix/backend/pkg/slogx"
)

const (
	SubmittedCookieName   = "survey_submitted"
	SubmittedCookieMaxAge = 400 * 24 * time.Hour

	// DefaultBlockerWindow bounds IP blockers of surveys that never close.
	DefaultBlockerWindow = 7 * 24 * time.Hour

	minIPKeySize = 16
)

// SubmittedCookiePath scopes the anti-duplicate cookie to one survey.
func SubmittedCookiePath(surveyID string) string {
	return "/v1/survey/" + surveyID + "/submit"
}

// SurveyService creates surveys and gates anonymous and authenticated
// submissions against abuse.
type SurveyService struct {
	Store    store.Store
	Sessions *SessionService
	Captcha  CaptchaVerifier
	Geo      GeoLocator // proxy reputation, best effort
	Notifier Notifier   // optional
	Events   *events.Hub[domain.SubmissionEvent]

	BlockerWindow time.Duration
	Now           func() time.Time

	wg sync.WaitGroup
}

type CreateSurveyParams struct {
	Title                    domain.Sealed
	Description              *domain.Sealed
	Questions                []domain.Question
	Signature                string
	PublicKey                string
	RequiresLogin            bool
	RequiresCaptcha          bool
	ProxyBlock               bool
	AllowMultipleSubmissions bool
	ClosingAt                *time.Time
	IPKey                    string // base64 raw key; enables per-IP dedupe
}

type SubmitParams struct {
	SurveyID     string
	Answers      domain.Answers
	IPKey        string
	Captcha      string
	SessionToken string
	HasSubmitted bool // anti-duplicate cookie present
	ClientIP     string
}

type SubmitResult struct {
	Answer    domain.SurveyAnswer
	Responses int
	// SetCookie asks the caller to mark this browser as having submitted.
	SetCookie bool
}

func (s *SurveyService) Create(ctx context.Context, userID string, p CreateSurveyParams) (domain.Survey, error) {
	now := clock(s.Now)
	if err := validateQuestions(p.Questions); err != nil {
		return domain.Survey{}, err
	}
	if p.PublicKey == "" || p.Title.CipherText == "" {
		return domain.Survey{}, ErrSurveyInvalid
	}
	if p.ClosingAt != nil && !p.ClosingAt.After(now) {
		return domain.Survey{}, ErrSurveyInvalid
	}

	sv := domain.Survey{
		ID:                       idx.NewAt(now).String(),
		UserID:                   userID,
		Title:                    p.Title,
		Description:              p.Description,
		Questions:                p.Questions,
		Signature:                p.Signature,
		PublicKey:                p.PublicKey,
		RequiresLogin:            p.RequiresLogin,
		RequiresCaptcha:          p.RequiresCaptcha,
		ProxyBlock:               p.ProxyBlock,
		AllowMultipleSubmissions: p.AllowMultipleSubmissions,
		ClosingAt:                p.ClosingAt,
		CreatedAt:                now,
	}
	if sv.ClosingAt != nil {
		closing := sv.ClosingAt.UTC()
		sv.ClosingAt = &closing
	}

	if p.IPKey != "" {
		raw, err := base64.StdEncoding.DecodeString(p.IPKey)
		if err != nil || len(raw) < minIPKeySize {
			return domain.Survey{}, ErrSurveyInvalid
		}
		hash, err := cryptox.HashSecret(p.IPKey)
		if err != nil {
			return domain.Survey{}, fmt.Errorf("hash ip key: %w", err)
		}
		sv.IPKeyHash = hash
	}

	if err := s.Store.Surveys().CreateSurvey(ctx, sv); err != nil {
		return domain.Survey{}, fmt.Errorf("create survey: %w", err)
	}
	slogx.FromContext(ctx).Info("survey created", slog.String("survey_id", sv.ID))
	return sv, nil
}

func validateQuestions(qs []domain.Question) error {
	if len(qs) == 0 || len(qs) > domain.MaxSurveyQuestions {
		return ErrSurveyInvalid
	}
	seen := make(map[int]struct{}, len(qs))
	for _, q := range qs {
		if !q.Type.Valid() {
			return ErrSurveyInvalid
		}
		if _, dup := seen[q.ID]; dup {
			return ErrSurveyInvalid
		}
		seen[q.ID] = struct{}{}

		if len(q.Choices) > domain.MaxQuestionChoices {
			return ErrSurveyInvalid
		}
		switch q.Type {
		case domain.QuestionMultipleChoice, domain.QuestionSingleChoice, domain.QuestionCheckboxes:
			if len(q.Choices) == 0 {
				return ErrSurveyInvalid
			}
		}
		choices := make(map[int]struct{}, len(q.Choices))
		for _, c := range q.Choices {
			if _, dup := choices[c.ID]; dup {
				return ErrSurveyInvalid
			}
			choices[c.ID] = struct{}{}
		}
	}
	return nil
}

// Get returns an open survey. Closed surveys look exactly like missing ones.
func (s *SurveyService) Get(ctx context.Context, id string) (domain.Survey, error) {
	sv, err := s.load(ctx, id)
	if err != nil {
		return domain.Survey{}, err
	}
	if sv.IsClosed(clock(s.Now)) {
		return domain.Survey{}, ErrSurveyNotFound
	}
	return sv, nil
}

// Submit records a response. The checks run in a fixed order; see the
// individual steps below.
func (s *SurveyService) Submit(ctx context.Context, p SubmitParams) (SubmitResult, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	sv, err := s.load(ctx, p.SurveyID)
	if err != nil {
		return SubmitResult{}, err
	}

	if !complete(sv.Questions, p.Answers) {
		return SubmitResult{}, ErrSurveyRequired
	}

	if sv.IsClosed(now) {
		return SubmitResult{}, ErrSurveyNotFound
	}

	if sv.RequiresCaptcha && !s.captcha().Verify(ctx, p.Captcha) {
		return SubmitResult{}, ErrInvalidCaptcha
	}

	// Identity: a bad token only matters when login is required.
	var userID string
	if p.SessionToken != "" {
		principal, err := s.Sessions.Authenticate(ctx, p.SessionToken)
		switch {
		case err == nil:
			userID = principal.UserID
		case !errors.Is(err, ErrNotAuthenticated):
			return SubmitResult{}, err
		}
	}
	if sv.RequiresLogin && userID == "" {
		return SubmitResult{}, ErrInvalidAuth
	}

	single := !sv.AllowMultipleSubmissions
	var blocker *domain.SurveyBlocker
	if single {
		if p.HasSubmitted {
			return SubmitResult{}, ErrSurveyAlreadySubmitted
		}
		if userID != "" {
			answered, err := s.Store.SurveyAnswers().HasUserAnswered(ctx, sv.ID, userID)
			if err != nil {
				return SubmitResult{}, fmt.Errorf("prior submission: %w", err)
			}
			if answered {
				return SubmitResult{}, ErrSurveyAlreadySubmitted
			}
		}
		if sv.IPKeyHash != "" && p.ClientIP != "" {
			b, err := s.ipBlocker(ctx, sv, p.IPKey, p.ClientIP, now)
			if err != nil {
				return SubmitResult{}, err
			}
			blocker = &b
		}
	}

	if sv.ProxyBlock && s.Geo != nil && p.ClientIP != "" {
		loc, err := s.Geo.Lookup(ctx, p.ClientIP)
		if err != nil {
			l.Warn("proxy check failed", slog.String("survey_id", sv.ID), slog.Any("err", err))
		} else if loc.Proxy {
			return SubmitResult{}, ErrSurveyProxyBlock
		}
	}

	answer := domain.SurveyAnswer{
		ID:        idx.NewAt(now).String(),
		SurveyID:  sv.ID,
		UserID:    userID,
		Answers:   p.Answers,
		CreatedAt: now,
	}
	// The duplicate checks above fail fast; the ones in the transaction are
	// what make a second submission impossible.
	var responses int
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if single && userID != "" {
			answered, err := tx.SurveyAnswers().HasUserAnswered(ctx, sv.ID, userID)
			if err != nil {
				return err
			}
			if answered {
				return ErrSurveyAlreadySubmitted
			}
		}
		if blocker != nil {
			err := tx.SurveyBlockers().InsertBlocker(ctx, *blocker, now)
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrSurveyAlreadySubmitted
			}
			if err != nil {
				return err
			}
		}
		if err := tx.SurveyAnswers().CreateAnswer(ctx, answer); err != nil {
			return err
		}
		responses, err = tx.Surveys().IncrementResponses(ctx, sv.ID)
		return err
	})
	if errors.Is(err, ErrSurveyAlreadySubmitted) {
		return SubmitResult{}, err
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("store submission: %w", err)
	}

	s.announce(ctx, sv, answer, responses)

	return SubmitResult{
		Answer:    answer,
		Responses: responses,
		SetCookie: !sv.AllowMultipleSubmissions,
	}, nil
}

// complete reports whether every required question is answered and every
// answer belongs to a question of the survey.
func complete(questions []domain.Question, answers domain.Answers) bool {
	known := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
		if _, ok := answers[q.ID]; q.Required && !ok {
			return false
		}
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return false
		}
	}
	return true
}

// ipBlocker derives the blocker for the caller's address and rejects an
// address that already submitted. The key comes from the respondent and
// only its hash is stored, so the server cannot recompute HMACs on its own.
// The blocker is written together with the answer.
func (s *SurveyService) ipBlocker(ctx context.Context, sv domain.Survey, ipKey, ip string, now time.Time) (domain.SurveyBlocker, error) {
	if ipKey == "" || cryptox.VerifySecret(ipKey, sv.IPKeyHash) != nil {
		return domain.SurveyBlocker{}, ErrInvalidAuth
	}
	raw, err := base64.StdEncoding.DecodeString(ipKey)
	if err != nil {
		return domain.SurveyBlocker{}, ErrInvalidAuth
	}

	expires := now.Add(s.blockerWindow())
	if sv.ClosingAt != nil {
		expires = *sv.ClosingAt
	}
	b := domain.SurveyBlocker{
		SurveyID:  sv.ID,
		IPHMAC:    cryptox.IPHMAC(raw, ip),
		ExpiresAt: expires,
	}

	blocked, err := s.Store.SurveyBlockers().BlockerExists(ctx, sv.ID, b.IPHMAC, now)
	if err != nil {
		return domain.SurveyBlocker{}, fmt.Errorf("check blocker: %w", err)
	}
	if blocked {
		return domain.SurveyBlocker{}, ErrSurveyAlreadySubmitted
	}
	return b, nil
}

// announce pushes the submission to live listeners and, off the request
// path, notifies the owner.
func (s *SurveyService) announce(ctx context.Context, sv domain.Survey, a domain.SurveyAnswer, responses int) {
	ev := domain.SubmissionEvent{
		SurveyID:  sv.ID,
		AnswerID:  a.ID,
		Responses: responses,
		CreatedAt: a.CreatedAt,
	}
	if b, err := json.Marshal(a.Answers); err == nil {
		ev.Answers = b
	}
	if s.Events != nil {
		s.Events.Publish(sv.ID, ev)
	}

	if s.Notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		owner, err := s.Store.Users().GetUserByID(ctx, sv.UserID)
		if err != nil {
			slogx.FromContext(ctx).Warn("load survey owner", slog.Any("err", err))
			return
		}
		s.Notifier.Notify(ctx, owner, domain.NotifySurveySubmissions, notify.Message{
			Subject: "New survey submission",
			Body:    fmt.Sprintf("Your survey has received a new submission (%d in total).", responses),
			Tags:    "memo",
			Payload: map[string]any{
				"event":     "survey.submission",
				"survey_id": sv.ID,
				"responses": responses,
			},
		})
	}()
}

// Wait blocks until pending owner notifications have been handed off.
func (s *SurveyService) Wait() { s.wg.Wait() }

// Close stops a survey from accepting submissions.
func (s *SurveyService) Close(ctx context.Context, userID, id string) error {
	err := s.Store.Surveys().CloseSurvey(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSurveyNotFound
	}
	return err
}

// Results returns the page-th newest answer to the caller's survey. Owners
// can read results after the survey closed.
func (s *SurveyService) Results(ctx context.Context, userID, id string, page int) (domain.SurveyAnswer, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return domain.SurveyAnswer{}, err
	}
	if page < 0 {
		return domain.SurveyAnswer{}, ErrSurveyResultNotFound
	}
	a, err := s.Store.SurveyAnswers().GetAnswerPage(ctx, id, page)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SurveyAnswer{}, ErrSurveyResultNotFound
	}
	return a, err
}

// Listen subscribes the owner to live submission events.
func (s *SurveyService) Listen(ctx context.Context, userID, id string) (<-chan domain.SubmissionEvent, func(), error) {
	if s.Events == nil {
		return nil, nil, errors.New("event hub not configured")
	}
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Events.Subscribe(id)
	return ch, cancel, nil
}

func (s *SurveyService) owned(ctx context.Context, userID, id string) (domain.Survey, error) {
	sv, err := s.load(ctx, id)
	if err != nil {
		return domain.Survey{}, err
	}
	if sv.UserID != userID {
		return domain.Survey{}, ErrSurveyNotFound
	}
	return sv, nil
}

func (s *SurveyService) load(ctx context.Context, id string) (domain.Survey, error) {
	if !idx.Valid(id) {
		return domain.Survey{}, ErrSurveyNotFound
	}
	sv, err := s.Store.Surveys().GetSurvey(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Survey{}, ErrSurveyNotFound
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("get survey: %w", err)
	}
	return sv, nil
}

func (s *SurveyService) captcha() CaptchaVerifier {
	if s.Captcha == nil {
		return allowAllCaptcha{}
	}
	return s.Captcha
}

func (s *SurveyService) blockerWindow() time.Duration {
	if s.BlockerWindow <= 0 {
		return DefaultBlockerWindow
	}
	return s.BlockerWindow
}
