package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/slogx"
)

// SessionCookie carries the signed session token.
const SessionCookie = "session"

// AuthenticateFunc resolves a raw session token to its owner and session id.
// A rejected token is reported as an *apierr.Error; any other error is an
// outage and answers 500.
type AuthenticateFunc func(ctx context.Context, token string) (userID, sessionID string, err error)

// SessionToken returns the token from the session cookie, falling back to a
// bearer Authorization header for non-browser clients.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// RequireSession rejects requests without a live session.
func RequireSession(auth AuthenticateFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := SessionToken(r)
			if token == "" {
				apierr.ErrNotAuthenticated.WriteError(w)
				return
			}

			userID, sessionID, err := auth(ctx, token)
			if err != nil {
				var apiErr *apierr.Error
				if errors.As(err, &apiErr) {
					slogx.FromContext(ctx).Debug("session rejected", "err", err)
					apiErr.WriteError(w)
					return
				}
				slogx.FromContext(ctx).Error("session check failed", "err", err)
				apierr.ErrInternal.WriteError(w)
				return
			}

			ctx = WithPrincipal(ctx, userID, sessionID)
			ctx = slogx.With(ctx, "user_id", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie writes the session cookie. It is always HttpOnly and
// SameSite=Strict; secure is turned off only for localhost development.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
