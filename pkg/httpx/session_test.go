package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestRequireSession(t *testing.T) {
	t.Parallel()

	auth := func(_ context.Context, token string) (string, string, error) {
		switch token {
		case "good":
			return "user-1", "session-1", nil
		case "outage":
			return "", "", errors.New("session lookup: database is locked")
		}
		return "", "", apierr.ErrNotAuthenticated
	}

	h := httpx.RequireSession(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := httpx.UserID(r.Context())
		require.True(t, ok)
		sessionID, _ := httpx.SessionID(r.Context())
		w.Header().Set("X-User", userID+"/"+sessionID)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("cookie accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: "good"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "user-1/session-1", rec.Header().Get("X-User"))
	})

	t.Run("bearer accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: "bad"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), `"error_code":1002`)
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: "outage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, rec.Body.String(), `"error_code":1000`)
	})
}

func TestSetSessionCookie(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.SetSessionCookie(rec, "tok", time.Now().Add(time.Hour), true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, httpx.SessionCookie, c.Name)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
}
