package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/internal/purplix/objectstore"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/idx"
	"github.com/purplix/backend/pkg/slogx"
)

const (
	DefaultVerifyPrefix = "purplix.io__verify="
	DefaultLogoMaxSize  = 5 << 20

	maxTXTRecords = 100
)

// CanaryService owns canaries, their domain verification and warrants.
type CanaryService struct {
	Store    store.Store
	OTP      *OTPService
	DNS      TXTResolver
	Objects  ObjectStore // optional, logo uploads fail without it
	Notifier Notifier    // optional

	VerifyPrefix string
	LogoMaxSize  int64
	Now          func() time.Time
}

type CreateCanaryParams struct {
	Domain     string
	About      string
	Signature  string
	Algorithms string
	PublicKey  string
	PrivateKey domain.Sealed
}

// Create registers an unverified canary for the caller. The domain must be
// free: not verified by anyone, not already claimed by the caller and never
// deleted after verification.
func (s *CanaryService) Create(ctx context.Context, userID string, p CreateCanaryParams) (domain.Canary, error) {
	name, err := domain.NormalizeDomain(p.Domain)
	if err != nil {
		return domain.Canary{}, ErrDomainValidation
	}

	taken, err := s.Store.Canaries().DomainTaken(ctx, name, userID)
	if err != nil {
		return domain.Canary{}, fmt.Errorf("domain taken: %w", err)
	}
	if !taken {
		taken, err = s.Store.DeletedCanaries().IsDeleted(ctx, cryptox.DomainHash(name))
		if err != nil {
			return domain.Canary{}, fmt.Errorf("domain blacklist: %w", err)
		}
	}
	if taken {
		return domain.Canary{}, ErrCanaryTaken
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Canary{}, err
	}

	now := clock(s.Now)
	c := domain.Canary{
		ID:         idx.NewAt(now).String(),
		Domain:     name,
		UserID:     userID,
		About:      p.About,
		Signature:  p.Signature,
		Algorithms: p.Algorithms,
		PublicKey:  p.PublicKey,
		PrivateKey: p.PrivateKey,
		VerifyCode: code,
		CreatedAt:  now,
	}
	if err := s.Store.Canaries().CreateCanary(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Canary{}, ErrCanaryTaken
		}
		return domain.Canary{}, fmt.Errorf("create canary: %w", err)
	}
	return c, nil
}

// AttemptVerify checks the domain's TXT records for the caller's
// verification code. The first verified claim wins and every other
// unverified claim on the domain is removed. DNS problems fail closed.
func (s *CanaryService) AttemptVerify(ctx context.Context, userID, rawDomain string) error {
	l := slogx.FromContext(ctx)

	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return ErrDomainValidation
	}

	resp, err := s.DNS.QueryTXT(ctx, name)
	if err != nil {
		l.Warn("txt lookup failed", slog.String("domain", name), slog.Any("err", err))
		return ErrDomainValidation
	}
	if resp.Status != 0 || resp.CD {
		return ErrDomainValidation
	}

	code := s.findCode(resp.TXT)
	if code == "" {
		return ErrDomainValidation
	}

	c, err := s.Store.Canaries().GetCanaryByCode(ctx, name, userID, code)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDomainValidation
	}
	if err != nil {
		return fmt.Errorf("canary by code: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Canaries().MarkVerified(ctx, c.ID); err != nil {
			return err
		}
		_, err := tx.Canaries().DeleteUnverified(ctx, name)
		return err
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Someone else verified the domain first.
		return ErrDomainValidation
	}
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	if !c.Verified {
		l.Info("canary verified", slog.String("canary_id", c.ID), slog.String("domain", name))
	}
	return nil
}

func (s *CanaryService) findCode(records []string) string {
	prefix := s.VerifyPrefix
	if prefix == "" {
		prefix = DefaultVerifyPrefix
	}
	for i, rec := range records {
		if i >= maxTXTRecords {
			break
		}
		rec = strings.Trim(rec, `"`)
		rest, ok := strings.CutPrefix(rec, prefix)
		if !ok {
			continue
		}
		if code := strings.TrimSpace(rest); code != "" {
			return code
		}
	}
	return ""
}

// Delete removes the caller's canary after an OTP check. A verified domain
// is blacklisted for good and the canary's warrants go with it.
func (s *CanaryService) Delete(ctx context.Context, userID, rawDomain, code string) error {
	u, err := s.OTP.getUser(ctx, userID)
	if err != nil {
		return err
	}
	c, err := s.Own(ctx, userID, rawDomain)
	if err != nil {
		return err
	}
	if err := s.OTP.Validate(ctx, u, code); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Canaries().DeleteCanary(ctx, c.ID); err != nil {
			return err
		}
		if c.Verified {
			if err := tx.DeletedCanaries().InsertDeleted(ctx, cryptox.DomainHash(c.Domain), clock(s.Now)); err != nil {
				return err
			}
		}
		return tx.Warrants().DeleteCanaryWarrants(ctx, c.ID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrCanaryNotFound
	}
	if err != nil {
		return fmt.Errorf("delete canary: %w", err)
	}

	slogx.FromContext(ctx).Info("canary deleted",
		slog.String("canary_id", c.ID), slog.Bool("blacklisted", c.Verified))
	return nil
}

// Get returns the verified canary for a domain.
func (s *CanaryService) Get(ctx context.Context, rawDomain string) (domain.Canary, error) {
	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return domain.Canary{}, ErrCanaryNotFound
	}
	c, err := s.Store.Canaries().GetVerifiedCanary(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Canary{}, ErrCanaryNotFound
	}
	return c, err
}

// Own returns the caller's canary for a domain, verified or not.
func (s *CanaryService) Own(ctx context.Context, userID, rawDomain string) (domain.Canary, error) {
	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return domain.Canary{}, ErrCanaryNotFound
	}
	c, err := s.Store.Canaries().GetUserCanary(ctx, name, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Canary{}, ErrCanaryNotFound
	}
	return c, err
}

func (s *CanaryService) List(ctx context.Context, userID string) ([]domain.Canary, error) {
	return s.Store.Canaries().ListUserCanaries(ctx, userID)
}

// LogoURL is the public address of a canary's logo, or "" when unset.
func (s *CanaryService) LogoURL(c domain.Canary) string {
	if c.Logo == "" || s.Objects == nil {
		return ""
	}
	return s.Objects.URL(c.Logo)
}

// UploadLogo stores a png, jpeg or webp image as the canary's logo and
// returns its public URL.
func (s *CanaryService) UploadLogo(ctx context.Context, userID, rawDomain string, body io.Reader) (string, error) {
	if s.Objects == nil {
		return "", errors.New("object storage not configured")
	}
	c, err := s.Own(ctx, userID, rawDomain)
	if err != nil {
		return "", err
	}

	limit := s.LogoMaxSize
	if limit <= 0 {
		limit = DefaultLogoMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read logo: %w", err)
	}
	if int64(len(data)) > limit {
		return "", ErrUploadTooBig
	}
	contentType, ext, ok := objectstore.SniffImage(data)
	if !ok {
		return "", ErrUnsupportedFile
	}

	key := "canary/logos/" + c.ID + ext
	if err := s.Objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("put logo: %w", err)
	}
	if err := s.Store.Canaries().SetLogo(ctx, c.ID, key); err != nil {
		return "", fmt.Errorf("set logo: %w", err)
	}
	return s.Objects.URL(key), nil
}

// ============================================================================
// Warrants
// ============================================================================

// CreateWarrant drafts an unpublished warrant due after next.
func (s *CanaryService) CreateWarrant(ctx context.Context, userID, rawDomain string, next domain.NextCanary, code string) (domain.Warrant, error) {
	due, err := next.Duration()
	if err != nil {
		return domain.Warrant{}, ErrInvalidRequest
	}

	c, err := s.Own(ctx, userID, rawDomain)
	if err != nil {
		return domain.Warrant{}, err
	}
	if !c.Verified {
		return domain.Warrant{}, ErrDomainValidation
	}

	u, err := s.OTP.getUser(ctx, userID)
	if err != nil {
		return domain.Warrant{}, err
	}
	if err := s.OTP.Validate(ctx, u, code); err != nil {
		return domain.Warrant{}, err
	}

	now := clock(s.Now)
	w := domain.Warrant{
		ID:         idx.NewAt(now).String(),
		CanaryID:   c.ID,
		UserID:     userID,
		NextCanary: now.Add(due),
		IssuedAt:   now,
	}
	if err := s.Store.Warrants().CreateWarrant(ctx, w); err != nil {
		return domain.Warrant{}, fmt.Errorf("create warrant: %w", err)
	}
	return w, nil
}

// PublishWarrant attaches the signed statement to a drafted warrant, makes
// it the canary's only active warrant and tells subscribers.
func (s *CanaryService) PublishWarrant(ctx context.Context, userID, warrantID string, p domain.WarrantPublication) error {
	if !p.Concern.Valid() || p.Signature == "" {
		return ErrInvalidRequest
	}

	w, err := s.Store.Warrants().GetUnpublishedWarrant(ctx, warrantID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrWarrantNotFound
	}
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Warrants().PublishWarrant(ctx, w.ID, p)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrWarrantNotFound
	}
	if err != nil {
		return fmt.Errorf("publish warrant: %w", err)
	}

	s.notifySubscribers(ctx, w.CanaryID, p)
	return nil
}

func (s *CanaryService) notifySubscribers(ctx context.Context, canaryID string, p domain.WarrantPublication) {
	if s.Notifier == nil {
		return
	}
	l := slogx.FromContext(ctx)

	c, err := s.Store.Canaries().GetCanaryByID(ctx, canaryID)
	if err != nil {
		l.Warn("load canary for subscribers", slog.Any("err", err))
		return
	}
	subscribers, err := s.Store.Subscriptions().ListSubscribers(ctx, canaryID)
	if err != nil {
		l.Warn("list subscribers", slog.Any("err", err))
		return
	}

	msg := notify.Message{
		Subject:  fmt.Sprintf("%s published a new canary", c.Domain),
		Body:     fmt.Sprintf("%s published a new warrant with concern level %q.\n\n%s", c.Domain, p.Concern, p.Statement),
		Tags:     "bird",
		Priority: priorityFor(p.Concern),
		Payload: map[string]any{
			"event":   "canary.published",
			"domain":  c.Domain,
			"concern": p.Concern,
		},
	}
	for _, id := range subscribers {
		u, err := s.Store.Users().GetUserByID(ctx, id)
		if err != nil {
			continue
		}
		s.Notifier.Notify(ctx, u, domain.NotifyCanarySubscriptions, msg)
	}
}

func priorityFor(c domain.Concern) string {
	switch c {
	case domain.ConcernSevere:
		return "urgent"
	case domain.ConcernModerate:
		return "high"
	}
	return "default"
}

// PublishedWarrant returns the page-th newest published warrant of a
// verified canary.
func (s *CanaryService) PublishedWarrant(ctx context.Context, rawDomain string, page int) (domain.Warrant, error) {
	if page < 0 {
		return domain.Warrant{}, ErrWarrantNotFound
	}
	c, err := s.Get(ctx, rawDomain)
	if err != nil {
		return domain.Warrant{}, err
	}
	w, err := s.Store.Warrants().GetPublishedWarrant(ctx, c.ID, page)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Warrant{}, ErrWarrantNotFound
	}
	return w, err
}

// ============================================================================
// Subscriptions and trust
// ============================================================================

func (s *CanaryService) Subscribe(ctx context.Context, userID, rawDomain string) error {
	c, err := s.Get(ctx, rawDomain)
	if err != nil {
		return err
	}
	err = s.Store.Subscriptions().Subscribe(ctx, userID, c.ID)
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrAlreadySubscribed
	}
	return err
}

func (s *CanaryService) Unsubscribe(ctx context.Context, userID, rawDomain string) error {
	c, err := s.Get(ctx, rawDomain)
	if err != nil {
		return err
	}
	err = s.Store.Subscriptions().Unsubscribe(ctx, userID, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *CanaryService) IsSubscribed(ctx context.Context, userID, rawDomain string) (bool, error) {
	c, err := s.Get(ctx, rawDomain)
	if errors.Is(err, ErrCanaryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Store.Subscriptions().IsSubscribed(ctx, userID, c.ID)
}

// Trust pins the caller's signed hash of a verified canary's public key.
func (s *CanaryService) Trust(ctx context.Context, userID, rawDomain, publicKeyHash, signature string) error {
	if publicKeyHash == "" || signature == "" {
		return ErrInvalidRequest
	}
	c, err := s.Get(ctx, rawDomain)
	if err != nil {
		return err
	}
	err = s.Store.TrustedCanaries().TrustCanary(ctx, domain.TrustedCanary{
		UserID:        userID,
		Domain:        c.Domain,
		PublicKeyHash: publicKeyHash,
		Signature:     signature,
		CreatedAt:     clock(s.Now),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrAlreadyTrusted
	}
	return err
}

func (s *CanaryService) ListTrusted(ctx context.Context, userID string) ([]domain.TrustedCanary, error) {
	return s.Store.TrustedCanaries().ListTrusted(ctx, userID)
}

func (s *CanaryService) GetTrusted(ctx context.Context, userID, rawDomain string) (domain.TrustedCanary, error) {
	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return domain.TrustedCanary{}, ErrCanaryNotFound
	}
	t, err := s.Store.TrustedCanaries().GetTrusted(ctx, userID, name)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TrustedCanary{}, ErrCanaryNotFound
	}
	return t, err
}

// ============================================================================
// Scheduler queries
// ============================================================================

// PendingVerifications lists unverified canaries created after since.
func (s *CanaryService) PendingVerifications(ctx context.Context, since time.Time) ([]domain.Canary, error) {
	return s.Store.Canaries().ListUnverifiedSince(ctx, since)
}

// DueWarrants lists active warrants that fall due within window and whose
// owner has not been alerted yet.
func (s *CanaryService) DueWarrants(ctx context.Context, window time.Duration) ([]domain.Warrant, error) {
	return s.Store.Warrants().ListDueWarrants(ctx, clock(s.Now).Add(window))
}

func (s *CanaryService) MarkWarrantAlerted(ctx context.Context, warrantID string) error {
	return s.Store.Warrants().MarkAlerted(ctx, warrantID)
}
