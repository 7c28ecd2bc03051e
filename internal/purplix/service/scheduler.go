package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/internal/purplix/store"
)

const (
	DefaultAlertInterval  = time.Minute
	DefaultVerifyInterval = time.Hour

	warrantAlertWindow = 24 * time.Hour
	reverifyLookback   = 24 * time.Hour
)

// Scheduler drives the periodic canary jobs: reminding owners whose
// warrants are about to lapse and retrying verification of fresh canaries.
type Scheduler struct {
	Canaries *CanaryService
	Store    store.Store
	Notifier Notifier
	Logger   *slog.Logger

	AlertInterval  time.Duration
	VerifyInterval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewScheduler(canaries *CanaryService, n Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Canaries:       canaries,
		Store:          canaries.Store,
		Notifier:       n,
		Logger:         logger,
		AlertInterval:  DefaultAlertInterval,
		VerifyInterval: DefaultVerifyInterval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.run()
	s.Logger.Info("scheduler started",
		"alert_interval", s.AlertInterval, "verify_interval", s.VerifyInterval)
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	alerts := time.NewTicker(s.AlertInterval)
	defer alerts.Stop()
	verify := time.NewTicker(s.VerifyInterval)
	defer verify.Stop()

	for {
		select {
		case <-alerts.C:
			if _, err := s.AlertDueWarrants(context.Background()); err != nil {
				s.Logger.Error("warrant alerts failed", "error", err)
			}
		case <-verify.C:
			if _, err := s.ReverifyPending(context.Background()); err != nil {
				s.Logger.Error("canary reverification failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// AlertDueWarrants notifies owners of active warrants due within a day and
// marks each one so the owner is told only once. Returns the number sent.
func (s *Scheduler) AlertDueWarrants(ctx context.Context) (int, error) {
	due, err := s.Canaries.DueWarrants(ctx, warrantAlertWindow)
	if err != nil {
		return 0, fmt.Errorf("due warrants: %w", err)
	}

	sent := 0
	for _, w := range due {
		owner, err := s.Store.Users().GetUserByID(ctx, w.UserID)
		if err != nil {
			s.Logger.Warn("warrant owner lookup failed", "warrant_id", w.ID, "error", err)
			continue
		}
		c, err := s.Store.Canaries().GetCanaryByID(ctx, w.CanaryID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.Logger.Warn("warrant canary lookup failed", "warrant_id", w.ID, "error", err)
			continue
		}

		if s.Notifier != nil {
			s.Notifier.Notify(ctx, owner, domain.NotifyCanaryRenewals, renewalMessage(c, w))
		}
		if err := s.Canaries.MarkWarrantAlerted(ctx, w.ID); err != nil {
			return sent, fmt.Errorf("mark alerted: %w", err)
		}
		sent++
	}
	return sent, nil
}

func renewalMessage(c domain.Canary, w domain.Warrant) notify.Message {
	return notify.Message{
		Subject:  fmt.Sprintf("Your canary for %s is due", c.Domain),
		Body:     fmt.Sprintf("The warrant for %s expires at %s. Publish a new one before then.", c.Domain, w.NextCanary.Format(time.RFC1123)),
		Tags:     "warning",
		Priority: "high",
		Payload: map[string]any{
			"event":       "canary.renewal_due",
			"domain":      c.Domain,
			"warrant_id":  w.ID,
			"next_canary": w.NextCanary,
		},
	}
}

// ReverifyPending retries verification for canaries created in the last
// day and emails owners whose domain just verified. Returns how many
// canaries were verified.
func (s *Scheduler) ReverifyPending(ctx context.Context) (int, error) {
	since := clock(s.Canaries.Now).Add(-reverifyLookback)
	pending, err := s.Canaries.PendingVerifications(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("pending verifications: %w", err)
	}

	verified := 0
	for _, c := range pending {
		err := s.Canaries.AttemptVerify(ctx, c.UserID, c.Domain)
		if errors.Is(err, ErrDomainValidation) {
			continue
		}
		if err != nil {
			s.Logger.Warn("canary reverification failed", "canary_id", c.ID, "error", err)
			continue
		}
		verified++

		if s.Notifier == nil {
			continue
		}
		owner, err := s.Store.Users().GetUserByID(ctx, c.UserID)
		if err != nil {
			continue
		}
		s.Notifier.Email(ctx, owner.Email, fmt.Sprintf("%s is verified", c.Domain),
			fmt.Sprintf("We found your verification record and %s is now a verified canary.", c.Domain))
	}
	return verified, nil
}
