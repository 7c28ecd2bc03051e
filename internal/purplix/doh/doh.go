// Package doh queries TXT records over DNS-over-HTTPS using the JSON API
// served by Cloudflare and Google.
package doh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultURL     = "https://cloudflare-dns.com/dns-query"
	defaultTimeout = 10 * time.Second

	typeTXT = 16
)

// Response is the subset of the JSON answer we act on.
type Response struct {
	Status int  // RCODE, 0 is NOERROR
	CD     bool // checking disabled: DNSSEC was not enforced
	TXT    []string
}

type Client struct {
	url  string
	http *http.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{url: endpoint, http: &http.Client{Timeout: timeout}}
}

type answer struct {
	Type int    `json:"type"`
	Data string `json:"data"`
}

type wireResponse struct {
	Status int      `json:"Status"`
	CD     bool     `json:"CD"`
	Answer []answer `json:"Answer"`
}

// QueryTXT returns the TXT records of name with surrounding quotes removed.
// Transport failures and non-200 responses are errors; DNS level failures
// are reported through Response.Status for the caller to judge.
func (c *Client) QueryTXT(ctx context.Context, name string) (Response, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("type", "TXT")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("doh: query %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("doh: query %s: status %d", name, resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Response{}, fmt.Errorf("doh: decode: %w", err)
	}

	out := Response{Status: wire.Status, CD: wire.CD}
	for _, a := range wire.Answer {
		if a.Type != 0 && a.Type != typeTXT {
			continue
		}
		out.TXT = append(out.TXT, unquote(a.Data))
	}
	return out, nil
}

// unquote joins the character-strings of a TXT record: `"a" "b"` is "ab".
func unquote(data string) string {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, `"`) {
		return data
	}
	var b strings.Builder
	for _, part := range strings.Split(data, `" "`) {
		b.WriteString(strings.Trim(part, `"`))
	}
	return b.String()
}
