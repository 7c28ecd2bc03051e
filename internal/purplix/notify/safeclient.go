package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrUnsafeURL is returned for webhook targets that could reach internal
// infrastructure.
var ErrUnsafeURL = errors.New("notify: unsafe webhook url")

const webhookTimeout = 30 * time.Second

var localhostAliases = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
}

// Resolver is the subset of net.Resolver used for pre-flight checks.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// SafeClient posts to user supplied URLs. Targets must be https and resolve
// only to public addresses; the address is checked again at dial time so a
// DNS answer that changes between check and connect is still refused.
// Redirects are never followed.
//
// When an egress proxy is configured every request goes through it and the
// address checks are left to the proxy.
type SafeClient struct {
	http     *http.Client
	resolver Resolver
	proxied  bool
}

// NewSafeClient builds a client. proxyURL may be empty.
func NewSafeClient(proxyURL string) (*SafeClient, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
	}

	c := &SafeClient{resolver: net.DefaultResolver}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("notify: invalid egress proxy %q", proxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
		c.proxied = true
	} else {
		transport.Proxy = nil
		dialer.Control = refusePrivateDial
	}
	transport.DialContext = dialer.DialContext

	c.http = &http.Client{
		Transport: transport,
		Timeout:   webhookTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

// WithResolver swaps the resolver used by ValidateURL.
func (c *SafeClient) WithResolver(r Resolver) *SafeClient {
	c.resolver = r
	return c
}

// ValidateURL runs the pre-flight checks without sending anything. It is
// also used when a user registers a webhook.
func (c *SafeClient) ValidateURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: malformed", ErrUnsafeURL)
	}

	if c.proxied {
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
		}
		return nil
	}

	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if _, ok := localhostAliases[host]; ok || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !PublicIP(ip) {
			return fmt.Errorf("%w: %s", ErrUnsafeURL, ip)
		}
		return nil
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrUnsafeURL, host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s has no addresses", ErrUnsafeURL, host)
	}
	for _, a := range addrs {
		if !PublicIP(a.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrUnsafeURL, host, a.IP)
		}
	}
	return nil
}

// PostJSON validates target and posts payload to it.
func (c *SafeClient) PostJSON(ctx context.Context, target string, payload any) error {
	if err := c.ValidateURL(ctx, target); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// PublicIP reports whether ip is globally routable enough to be a webhook
// target.
func PublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

func refusePrivateDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if !PublicIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: dial %s", ErrUnsafeURL, host)
	}
	return nil
}
