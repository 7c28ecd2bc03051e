package purplixsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

func canaryPath(domain string) string {
	return "/v1/canary/" + url.PathEscape(domain)
}

// PublicCanary returns a verified canary.
func (c *Client) PublicCanary(ctx context.Context, domain string) (*Canary, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, canaryPath(domain)+"/public", "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out Canary
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublishedWarrant returns the page-th published warrant of a canary, newest
// first.
func (c *Client) PublishedWarrant(ctx context.Context, domain string, page int) (*Warrant, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, canaryPath(domain)+"/warrant/"+strconv.Itoa(page), "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out Warrant
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCanary registers an unverified canary. The returned VerifyCode must
// be published in a TXT record before VerifyCanary succeeds.
func (s *Session) CreateCanary(ctx context.Context, req CreateCanaryRequest) (*Canary, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/canary", req)
	if err != nil {
		return nil, err
	}

	var out Canary
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCanaries returns the caller's canaries.
func (s *Session) ListCanaries(ctx context.Context) ([]Canary, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/canary", nil, nil)
	if err != nil {
		return nil, err
	}

	var out []Canary
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) VerifyCanary(ctx context.Context, domain string) error {
	return s.noContent(ctx, http.MethodPost, canaryPath(domain)+"/verify", nil)
}

func (s *Session) DeleteCanary(ctx context.Context, domain, otp string) error {
	return s.noContent(ctx, http.MethodDelete, canaryPath(domain), OTPRequest{OTP: otp})
}

// UploadLogo sends an image as multipart form field "file".
func (s *Session) UploadLogo(ctx context.Context, domain, filename string, image io.Reader) (*LogoResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, canaryPath(domain)+"/logo", &body, map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var out LogoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWarrant opens an unpublished warrant; publish it with PublishWarrant.
func (s *Session) CreateWarrant(ctx context.Context, domain string, req CreateWarrantRequest) (*Warrant, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, canaryPath(domain)+"/warrant", req)
	if err != nil {
		return nil, err
	}

	var out Warrant
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) PublishWarrant(ctx context.Context, domain, warrantID string, req PublishWarrantRequest) error {
	return s.noContent(ctx, http.MethodPost, canaryPath(domain)+"/warrant/"+url.PathEscape(warrantID)+"/publish", req)
}

func (s *Session) Subscribe(ctx context.Context, domain string) error {
	return s.noContent(ctx, http.MethodPost, canaryPath(domain)+"/subscribe", nil)
}

func (s *Session) Unsubscribe(ctx context.Context, domain string) error {
	return s.noContent(ctx, http.MethodDelete, canaryPath(domain)+"/subscribe", nil)
}

func (s *Session) IsSubscribed(ctx context.Context, domain string) (bool, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, canaryPath(domain)+"/subscribed", nil, nil)
	if err != nil {
		return false, err
	}

	var out SubscribedResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Subscribed, nil
}

// Trust pins a signature over a canary's public key.
func (s *Session) Trust(ctx context.Context, domain string, req TrustRequest) error {
	return s.noContent(ctx, http.MethodPost, canaryPath(domain)+"/trust", req)
}

func (s *Session) ListTrusted(ctx context.Context) ([]TrustedCanary, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/canary/trusted", nil, nil)
	if err != nil {
		return nil, err
	}

	var out []TrustedCanary
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) GetTrusted(ctx context.Context, domain string) (*TrustedCanary, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/canary/trusted/"+url.PathEscape(domain), nil, nil)
	if err != nil {
		return nil, err
	}

	var out TrustedCanary
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
