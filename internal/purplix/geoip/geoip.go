// Package geoip looks addresses up against a proxycheck.io compatible API.
// Every caller treats a lookup as best effort.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrDisabled = errors.New("geoip: lookups are not configured")

const defaultTimeout = 5 * time.Second

type Config struct {
	URL     string // e.g. https://proxycheck.io/v2; empty disables lookups
	APIKey  string
	Timeout time.Duration
}

// Location is what we keep from a lookup.
type Location struct {
	Region  string
	Country string
	Proxy   bool
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

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.URL != ""
}

type ipResult struct {
	Region  string `json:"region"`
	Country string `json:"country"`
	Proxy   string `json:"proxy"`
}

// Lookup resolves ip to a location and proxy verdict.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	if !c.Enabled() {
		return Location{}, ErrDisabled
	}
	if ip == "" {
		return Location{}, errors.New("geoip: empty address")
	}

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("asn", "1")
	q.Set("vpn", "1")
	endpoint := c.cfg.URL + "/" + url.PathEscape(ip) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geoip: lookup returned %d", resp.StatusCode)
	}

	// {"status": "ok", "<ip>": {...}}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Location{}, fmt.Errorf("geoip: decode: %w", err)
	}
	var status string
	if err := json.Unmarshal(raw["status"], &status); err != nil || status != "ok" {
		return Location{}, fmt.Errorf("geoip: status %q", status)
	}
	entry, ok := raw[ip]
	if !ok {
		return Location{}, errors.New("geoip: address missing from response")
	}

	var res ipResult
	if err := json.Unmarshal(entry, &res); err != nil {
		return Location{}, fmt.Errorf("geoip: decode entry: %w", err)
	}
	return Location{
		Region:  res.Region,
		Country: res.Country,
		Proxy:   strings.EqualFold(res.Proxy, "yes"),
	}, nil
}
