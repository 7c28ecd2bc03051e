package purplixsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Me returns the signed-in account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/account/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	s.User = out
	return &out, nil
}

// SetupOTP confirms the account's OTP secret with a first code.
func (s *Session) SetupOTP(ctx context.Context, code string) error {
	return s.noContent(ctx, http.MethodPost, "/v1/account/otp/setup", OTPRequest{OTP: code})
}

// ResetOTP rotates the OTP secret. Every session, this one included, is
// revoked.
func (s *Session) ResetOTP(ctx context.Context, code string) (*OTPResetResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/otp/reset", OTPRequest{OTP: code})
	if err != nil {
		return nil, err
	}

	var out OTPResetResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetCredentials replaces the account key material.
func (s *Session) ResetCredentials(ctx context.Context, req ResetCredentialsRequest) error {
	return s.noContent(ctx, http.MethodPost, "/v1/account/password/reset", req)
}

// Logout ends this session.
func (s *Session) Logout(ctx context.Context) error {
	return s.noContent(ctx, http.MethodDelete, "/v1/account/logout", nil)
}

// EnableEmail turns on email notifications for kind.
func (s *Session) EnableEmail(ctx context.Context, kind string) error {
	return s.noContent(ctx, http.MethodPost, "/v1/account/notifications/email/"+url.PathEscape(kind), nil)
}

func (s *Session) DisableEmail(ctx context.Context, kind string) error {
	return s.noContent(ctx, http.MethodDelete, "/v1/account/notifications/email/"+url.PathEscape(kind), nil)
}

// SetPush sends kind notifications to an ntfy topic.
func (s *Session) SetPush(ctx context.Context, kind, topic string) error {
	return s.noContent(ctx, http.MethodPost, "/v1/account/notifications/push/"+url.PathEscape(kind), PushRequest{Topic: topic})
}

func (s *Session) RemovePush(ctx context.Context, kind string) error {
	return s.noContent(ctx, http.MethodDelete, "/v1/account/notifications/push/"+url.PathEscape(kind), nil)
}

// AddWebhook registers an https webhook for kind.
func (s *Session) AddWebhook(ctx context.Context, kind, target string) error {
	return s.noContent(ctx, http.MethodPost, "/v1/account/notifications/webhook/"+url.PathEscape(kind), WebhookRequest{URL: target})
}

func (s *Session) RemoveWebhook(ctx context.Context, kind, target string) error {
	return s.noContent(ctx, http.MethodDelete, "/v1/account/notifications/webhook/"+url.PathEscape(kind), WebhookRequest{URL: target})
}

// SetIPLookup grants or withdraws consent to geolocate login addresses.
func (s *Session) SetIPLookup(ctx context.Context, consent bool) error {
	method := http.MethodDelete
	if consent {
		method = http.MethodPost
	}
	return s.noContent(ctx, method, "/v1/account/privacy/ip-lookup", nil)
}

// Sessions lists the account's live sessions, newest first.
func (s *Session) Sessions(ctx context.Context) ([]SessionResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/session", nil, nil)
	if err != nil {
		return nil, err
	}

	var out []SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// InvalidateSession ends one of the account's sessions.
func (s *Session) InvalidateSession(ctx context.Context, id string) error {
	return s.noContent(ctx, http.MethodDelete, "/v1/session/"+url.PathEscape(id), nil)
}
