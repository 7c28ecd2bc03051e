// Package captcha verifies mCaptcha-compatible proof-of-work tokens.
//
// Verification fails open: when the verifier is unreachable or answers with
// anything but 200 the token is accepted, so a captcha outage never locks
// users out. Only an explicit valid=false rejects.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/purplix/backend/pkg/slogx"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	URL     string // base URL of the mCaptcha server; empty disables checks
	SiteKey string
	Secret  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Enabled reports whether a verifier is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.URL != ""
}

type verifyRequest struct {
	Token  string `json:"token"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Verify reports whether token should be accepted.
func (c *Client) Verify(ctx context.Context, token string) bool {
	if !c.Enabled() {
		return true
	}
	if token == "" {
		return false
	}

	valid, err := c.verify(ctx, token)
	if err != nil {
		slogx.FromContext(ctx).Warn("captcha verifier unavailable, allowing", "err", err)
		return true
	}
	return valid
}

func (c *Client) verify(ctx context.Context, token string) (bool, error) {
	body, err := json.Marshal(verifyRequest{Token: token, Key: c.cfg.SiteKey, Secret: c.cfg.Secret})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/v1/pow/siteverify", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify returned %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode siteverify: %w", err)
	}
	return out.Valid, nil
}
