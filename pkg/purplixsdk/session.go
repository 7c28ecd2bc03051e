package purplixsdk

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Session is an authenticated account session. It is safe for concurrent
// use; the token is fixed for its lifetime.
type Session struct {
	client    *Client
	token     string
	sessionID string
	expiresAt time.Time

	// User is the account as returned at login. Refresh it with Me.
	User User
}

// Token returns the bearer token.
func (s *Session) Token() string { return s.token }

// ID returns the session id, empty for sessions built with NewSession.
func (s *Session) ID() string { return s.sessionID }

// ExpiresAt is when the token stops authenticating.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	return s.client.doRequest(ctx, method, path, s.token, body, headers)
}

func (s *Session) doAuthJSON(ctx context.Context, method, path string, in any) (*http.Response, error) {
	return s.client.doJSON(ctx, method, path, s.token, in)
}

// noContent runs a request whose success answer is 204.
func (s *Session) noContent(ctx context.Context, method, path string, in any) error {
	resp, err := s.doAuthJSON(ctx, method, path, in)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
