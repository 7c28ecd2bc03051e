package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/idx"
	"github.com/purplix/backend/pkg/slogx"
)

const (
	ProofTTL             = 4 * time.Minute
	EmailVerificationTTL = 24 * time.Hour
	DefaultSessionDays   = 7
)

// AccountService implements registration and the challenge-response login.
type AccountService struct {
	Store    store.Store
	OTP      *OTPService
	Sessions *SessionService
	Captcha  CaptchaVerifier
	Geo      GeoLocator   // optional, used only with the user's consent
	Notifier Notifier     // optional
	Webhooks URLValidator // vets webhook targets on save

	SessionDays          int
	RegistrationDisabled bool
	FrontendURL          string
	Now                  func() time.Time
}

type RegisterParams struct {
	Email       string
	Credentials domain.Credentials
	Captcha     string
}

type RegisterResult struct {
	User   domain.User
	OTPURI string
}

type LoginParams struct {
	Email       string
	ChallengeID string
	Signature   string // base64 signed message over the challenge text
	OTP         string
	Captcha     string
	OneDay      bool
	ClientIP    string
	UserAgent   string
}

type LoginResult struct {
	Token   string
	Session domain.Session
	User    domain.User // redacted
}

// Register creates an account with a fresh, not yet confirmed, OTP secret
// and mails an address verification link.
func (s *AccountService) Register(ctx context.Context, p RegisterParams) (RegisterResult, error) {
	if s.RegistrationDisabled {
		return RegisterResult{}, ErrRegistrationOff
	}
	if !s.captcha().Verify(ctx, p.Captcha) {
		return RegisterResult{}, ErrInvalidCaptcha
	}

	email, err := normalizeEmail(p.Email)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := validateCredentials(p.Credentials); err != nil {
		return RegisterResult{}, err
	}

	_, err = s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return RegisterResult{}, ErrEmailTaken
	case !errors.Is(err, store.ErrNotFound):
		return RegisterResult{}, fmt.Errorf("lookup email: %w", err)
	}

	key, err := s.OTP.NewKey(email)
	if err != nil {
		return RegisterResult{}, err
	}

	now := clock(s.Now)
	u := domain.User{
		ID:            idx.NewAt(now).String(),
		Email:         email,
		Credentials:   p.Credentials,
		OTPSecret:     key.Secret(),
		Notifications: domain.DefaultNotifications(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}

	secret, err := s.newEmailVerification(ctx, email, now)
	if err != nil {
		return RegisterResult{}, err
	}
	s.sendVerification(ctx, email, secret)

	slogx.FromContext(ctx).Info("account registered", slog.String("user_id", u.ID))
	return RegisterResult{User: u.Redacted(), OTPURI: key.URL()}, nil
}

// RequestChallenge issues a single-use text for the user to sign.
func (s *AccountService) RequestChallenge(ctx context.Context, email string) (domain.Proof, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return domain.Proof{}, err
	}

	toSign, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Proof{}, err
	}
	now := clock(s.Now)
	p := domain.Proof{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		ToSign:    toSign,
		ExpiresAt: now.Add(ProofTTL),
	}
	if err := s.Store.Proofs().CreateProof(ctx, p); err != nil {
		return domain.Proof{}, fmt.Errorf("create proof: %w", err)
	}
	return p, nil
}

// Login runs the challenge-response login. The order of checks matters:
// the challenge is consumed before anything can fail, so a rejected
// attempt can never be retried against the same challenge.
func (s *AccountService) Login(ctx context.Context, p LoginParams) (LoginResult, error) {
	u, err := s.userByEmail(ctx, p.Email)
	if err != nil {
		return LoginResult{}, err
	}
	now := clock(s.Now)

	proof, err := s.Store.Proofs().ConsumeProof(ctx, p.ChallengeID, u.ID, now)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, ErrInvalidAuth
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("consume proof: %w", err)
	}

	if !s.captcha().Verify(ctx, p.Captcha) {
		return LoginResult{}, ErrInvalidCaptcha
	}

	if u.OTPCompleted {
		if err := s.OTP.Validate(ctx, u, p.OTP); err != nil {
			return LoginResult{}, err
		}
	}

	if err := cryptox.VerifySignedMessage(u.Credentials.SignPublicKey, p.Signature, []byte(proof.ToSign)); err != nil {
		return LoginResult{}, ErrInvalidAuth
	}

	days := s.sessionDays()
	lifetime := time.Duration(days) * 24 * time.Hour
	if p.OneDay {
		lifetime = 24 * time.Hour
	}
	sess := domain.Session{
		ID:             idx.NewAt(now).String(),
		UserID:         u.ID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(lifetime),
		RecordKeptTill: now.Add(3 * time.Duration(days) * 24 * time.Hour),
	}
	sess.Location, sess.Device = s.sessionMetadata(ctx, u, p.ClientIP, p.UserAgent)

	sess, token, err := s.Sessions.Start(ctx, sess)
	if err != nil {
		return LoginResult{}, err
	}

	slogx.FromContext(ctx).Info("login succeeded",
		slog.String("user_id", u.ID), slog.String("session_id", sess.ID))
	return LoginResult{Token: token, Session: sess, User: u.Redacted()}, nil
}

// sessionMetadata seals what we know about the client to the user's box
// key. Nothing here may fail the login.
func (s *AccountService) sessionMetadata(ctx context.Context, u domain.User, ip, userAgent string) (domain.SessionLocation, string) {
	l := slogx.FromContext(ctx)
	seal := func(v string) string {
		out, err := cryptox.SealTo(u.Credentials.BoxPublicKey, []byte(v))
		if err != nil {
			return ""
		}
		return out
	}

	var loc domain.SessionLocation
	if u.IPLookupConsent && s.Geo != nil && ip != "" {
		found, err := s.Geo.Lookup(ctx, ip)
		if err != nil {
			l.Warn("session location lookup failed", slog.Any("err", err))
		} else {
			loc = domain.SessionLocation{
				Region:  seal(orUnknown(found.Region)),
				Country: seal(orUnknown(found.Country)),
				IP:      seal(ip),
			}
		}
	}

	var device string
	if userAgent != "" {
		device = seal(userAgent)
	}
	return loc, device
}

// VerifyEmail consumes an address verification secret.
func (s *AccountService) VerifyEmail(ctx context.Context, email, secret string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	err := s.Store.EmailVerifications().ConsumeEmailVerification(ctx, email, secret, clock(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidAuth
	}
	if err != nil {
		return fmt.Errorf("consume email verification: %w", err)
	}

	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.Store.Users().SetEmailVerified(ctx, u.ID)
}

// ResendVerification mails the pending verification link again, minting a
// new secret when the old one expired.
func (s *AccountService) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return nil
	}

	now := clock(s.Now)
	pending, err := s.Store.EmailVerifications().GetEmailVerification(ctx, u.Email, now)
	secret := pending.Secret
	if errors.Is(err, store.ErrNotFound) {
		secret, err = s.newEmailVerification(ctx, u.Email, now)
	}
	if err != nil {
		return err
	}
	s.sendVerification(ctx, u.Email, secret)
	return nil
}

// PublicKDF returns the parameters a client needs to derive its key before
// requesting a challenge.
func (s *AccountService) PublicKDF(ctx context.Context, email string) (domain.KDF, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return domain.KDF{}, err
	}
	return u.Credentials.KDF, nil
}

func (s *AccountService) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return u.Redacted(), nil
}

// ResetCredentials replaces the account's key material after an OTP check
// and signs the user out everywhere.
func (s *AccountService) ResetCredentials(ctx context.Context, userID, code string, c domain.Credentials) error {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.OTP.Validate(ctx, u, code); err != nil {
		return err
	}
	if err := validateCredentials(c); err != nil {
		return err
	}
	if err := s.Store.Users().UpdateCredentials(ctx, userID, c); err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	return s.Sessions.RevokeAll(ctx, userID)
}

func (s *AccountService) SetIPLookupConsent(ctx context.Context, userID string, consent bool) error {
	err := s.Store.Users().SetIPLookupConsent(ctx, userID, consent)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// ============================================================================
// Notification preferences
// ============================================================================

func (s *AccountService) EnableEmail(ctx context.Context, userID string, kind domain.NotificationKind) error {
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		if !slices.Contains(n.Email, kind) {
			n.Email = append(n.Email, kind)
		}
		return nil
	})
}

func (s *AccountService) DisableEmail(ctx context.Context, userID string, kind domain.NotificationKind) error {
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		n.Email = slices.DeleteFunc(n.Email, func(k domain.NotificationKind) bool { return k == kind })
		return nil
	})
}

// SetPush routes kind to an ntfy topic, replacing any previous topic.
func (s *AccountService) SetPush(ctx context.Context, userID string, kind domain.NotificationKind, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" || len(topic) > 64 || strings.ContainsAny(topic, "/?# ") {
		return ErrInvalidRequest
	}
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		if n.Push == nil {
			n.Push = map[domain.NotificationKind]string{}
		}
		n.Push[kind] = topic
		return nil
	})
}

func (s *AccountService) RemovePush(ctx context.Context, userID string, kind domain.NotificationKind) error {
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		delete(n.Push, kind)
		return nil
	})
}

// AddWebhook registers target for kind. Targets must pass the SSRF guard
// and each kind holds at most MaxWebhooksPerKind.
func (s *AccountService) AddWebhook(ctx context.Context, userID string, kind domain.NotificationKind, target string) error {
	if s.Webhooks != nil {
		if err := s.Webhooks.ValidateURL(ctx, target); err != nil {
			slogx.FromContext(ctx).Debug("webhook refused", slog.Any("err", err))
			return ErrUnsafeWebhook
		}
	}
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		if n.Webhooks == nil {
			n.Webhooks = map[domain.NotificationKind][]string{}
		}
		hooks := n.Webhooks[kind]
		if slices.Contains(hooks, target) {
			return nil
		}
		if len(hooks) >= domain.MaxWebhooksPerKind {
			return ErrTooManyWebhooks
		}
		n.Webhooks[kind] = append(hooks, target)
		return nil
	})
}

func (s *AccountService) RemoveWebhook(ctx context.Context, userID string, kind domain.NotificationKind, target string) error {
	return s.editNotifications(ctx, userID, kind, func(n *domain.Notifications) error {
		hooks := slices.DeleteFunc(n.Webhooks[kind], func(h string) bool { return h == target })
		if len(hooks) == 0 {
			delete(n.Webhooks, kind)
		} else {
			n.Webhooks[kind] = hooks
		}
		return nil
	})
}

func (s *AccountService) editNotifications(ctx context.Context, userID string, kind domain.NotificationKind, edit func(*domain.Notifications) error) error {
	if !kind.Valid() {
		return ErrInvalidRequest
	}
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		n := u.Notifications
		if err := edit(&n); err != nil {
			return err
		}
		return tx.Users().UpdateNotifications(ctx, userID, n)
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (s *AccountService) userByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func (s *AccountService) userByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func (s *AccountService) newEmailVerification(ctx context.Context, email string, now time.Time) (string, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	err = s.Store.EmailVerifications().CreateEmailVerification(ctx, domain.EmailVerification{
		Email:     email,
		Secret:    secret,
		ExpiresAt: now.Add(EmailVerificationTTL),
	})
	if err != nil {
		return "", fmt.Errorf("create email verification: %w", err)
	}
	return secret, nil
}

func (s *AccountService) sendVerification(ctx context.Context, email, secret string) {
	if s.Notifier == nil {
		return
	}
	link := fmt.Sprintf("%s/verify-email/%s/%s",
		strings.TrimRight(s.FrontendURL, "/"), url.PathEscape(email), url.PathEscape(secret))
	s.Notifier.Email(ctx, email, "Verify your email",
		"Please confirm this address belongs to you by opening:\n\n"+link)
}

func (s *AccountService) captcha() CaptchaVerifier {
	if s.Captcha == nil {
		return allowAllCaptcha{}
	}
	return s.Captcha
}

func (s *AccountService) sessionDays() int {
	if s.SessionDays <= 0 {
		return DefaultSessionDays
	}
	return s.SessionDays
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return "", ErrInvalidRequest
	}
	return email, nil
}

func validateCredentials(c domain.Credentials) error {
	for _, key := range []string{c.SignPublicKey, c.BoxPublicKey} {
		raw, err := base64.StdEncoding.DecodeString(key)
		if err != nil || len(raw) != 32 {
			return ErrInvalidRequest
		}
	}
	if c.KDF.Salt == "" || c.KDF.TimeCost <= 0 || c.KDF.MemoryCost <= 0 {
		return ErrInvalidRequest
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
