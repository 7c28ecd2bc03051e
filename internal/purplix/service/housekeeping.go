package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/purplix/backend/internal/purplix/store"
)

const (
	DefaultHousekeepingInterval = 5 * time.Minute

	// Drafted warrants that were never published expire after this.
	unpublishedWarrantTTL = 3 * time.Hour
)

// HousekeepingService periodically purges expired rows: proofs, OTP
// markers, sessions past their retention, email verifications, stale
// warrant drafts, survey blockers and signing keys.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval falls back to DefaultHousekeepingInterval.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress purge has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Purge(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Purge(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Purge runs every cleanup once and returns the rows removed per table.
// Each step is independent; a failure is logged and the rest still run.
func (s *HousekeepingService) Purge(ctx context.Context) map[string]int64 {
	now := clock(s.Now)
	steps := []struct {
		name string
		fn   func() (int64, error)
	}{
		{"proofs", func() (int64, error) { return s.Store.Proofs().DeleteExpiredProofs(ctx, now) }},
		{"otp_markers", func() (int64, error) { return s.Store.OTPMarkers().DeleteExpiredMarkers(ctx, now) }},
		{"sessions", func() (int64, error) { return s.Store.Sessions().DeleteExpiredSessions(ctx, now) }},
		{"email_verifications", func() (int64, error) {
			return s.Store.EmailVerifications().DeleteExpiredEmailVerifications(ctx, now)
		}},
		{"warrants", func() (int64, error) {
			return s.Store.Warrants().DeleteStaleWarrants(ctx, now.Add(-unpublishedWarrantTTL))
		}},
		{"survey_blockers", func() (int64, error) { return s.Store.SurveyBlockers().DeleteExpiredBlockers(ctx, now) }},
		{"signing_keys", func() (int64, error) { return s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now) }},
	}

	report := make(map[string]int64, len(steps))
	for _, step := range steps {
		n, err := step.fn()
		if err != nil {
			s.Logger.Error("housekeeping step failed", "table", step.name, "error", err)
			continue
		}
		report[step.name] = n
	}

	s.Logger.Debug("housekeeping completed", "deleted", report)
	return report
}
