package domain

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidDomain = errors.New("domain: invalid domain")

var (
	labelPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)
	tldPattern   = regexp.MustCompile(`^[a-z]{2,}$`)
	wwwPattern   = regexp.MustCompile(`^www\d*$`)
)

// NormalizeDomain lowercases and trims a domain, strips any URL scheme or
// path, and validates it as a public hostname. www labels are rejected so a
// canary always covers the bare domain.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(d, "://") {
		u, err := url.Parse(d)
		if err != nil {
			return "", ErrInvalidDomain
		}
		d = u.Hostname()
	}
	d = strings.TrimSuffix(d, ".")
	if d == "" || len(d) > 253 {
		return "", ErrInvalidDomain
	}

	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", ErrInvalidDomain
	}
	tld := labels[len(labels)-1]
	if !tldPattern.MatchString(tld) {
		return "", ErrInvalidDomain
	}
	for _, l := range labels[:len(labels)-1] {
		if !labelPattern.MatchString(l) || wwwPattern.MatchString(l) {
			return "", ErrInvalidDomain
		}
	}
	return d, nil
}
