package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/purplix/backend/internal/purplix/cache"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/idx"
	"github.com/purplix/backend/pkg/slogx"
)

const (
	DefaultSessionCacheTTL = 6 * time.Minute

	verdictLive    = "true"
	verdictRevoked = "false"
)

// Principal is the identity behind a verified session token.
type Principal struct {
	UserID    string
	SessionID string
}

// SessionService owns session records and decides whether a token is still
// trusted. The token alone cannot be revoked, so every request is checked
// against the session table, with verdicts memoized in Cache.
type SessionService struct {
	Store    store.Store
	Cache    cache.Cache
	Tokens   TokenIssuer
	CacheTTL time.Duration // how long a live verdict is trusted without the store
	Now      func() time.Time
}

// Start records a session for userID and issues its token.
func (s *SessionService) Start(ctx context.Context, sess domain.Session) (domain.Session, string, error) {
	if sess.ID == "" {
		sess.ID = idx.NewAt(sess.CreatedAt).String()
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.Session{}, "", fmt.Errorf("create session: %w", err)
	}
	token, err := s.Tokens.Issue(sess.UserID, sess.ID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("issue token: %w", err)
	}
	return sess, token, nil
}

// Authenticate verifies token and checks its session is still live.
func (s *SessionService) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	p := Principal{UserID: claims.UserID(), SessionID: claims.SessionID()}

	verdict, hit, err := s.Cache.Get(ctx, p.SessionID)
	if err != nil {
		return Principal{}, fmt.Errorf("session cache: %w", err)
	}
	if hit {
		if verdict == verdictLive {
			return p, nil
		}
		return Principal{}, ErrNotAuthenticated
	}

	now := clock(s.Now)
	live, err := s.Store.Sessions().SessionLive(ctx, p.SessionID, now)
	if err != nil {
		return Principal{}, fmt.Errorf("session lookup: %w", err)
	}

	if live {
		if err := s.Cache.Set(ctx, p.SessionID, verdictLive, s.cacheTTL()); err != nil {
			return Principal{}, fmt.Errorf("session cache: %w", err)
		}
		return p, nil
	}

	// Keep rejecting this token without the store until it would have
	// expired anyway.
	ttl := max(claims.Remaining(now), time.Second)
	if err := s.Cache.Set(ctx, p.SessionID, verdictRevoked, ttl); err != nil {
		return Principal{}, fmt.Errorf("session cache: %w", err)
	}
	return Principal{}, ErrNotAuthenticated
}

// Logout ends the caller's own session. Ending an already gone session is
// not an error.
func (s *SessionService) Logout(ctx context.Context, userID, sessionID string) error {
	err := s.Store.Sessions().DeleteSession(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return s.evict(ctx, sessionID)
}

// Invalidate ends one of the user's sessions by id.
func (s *SessionService) Invalidate(ctx context.Context, userID, sessionID string) error {
	err := s.Store.Sessions().DeleteSession(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return s.evict(ctx, sessionID)
}

// RevokeAll ends every session of the user.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	ids, err := s.Store.Sessions().DeleteUserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	for _, id := range ids {
		if err := s.evict(ctx, id); err != nil {
			return err
		}
	}
	slogx.FromContext(ctx).Info("revoked all sessions",
		slog.String("user_id", userID), slog.Int("count", len(ids)))
	return nil
}

// List returns the user's live sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListSessions(ctx, userID, clock(s.Now))
}

func (s *SessionService) evict(ctx context.Context, sessionID string) error {
	if err := s.Cache.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session cache: %w", err)
	}
	return nil
}

func (s *SessionService) cacheTTL() time.Duration {
	if s.CacheTTL <= 0 {
		return DefaultSessionCacheTTL
	}
	return s.CacheTTL
}
