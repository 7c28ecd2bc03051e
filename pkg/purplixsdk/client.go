package purplixsdk

import (
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client is a client for the purplix API. It provides the public operations
// and creates authenticated Sessions.
//
// The underlying HTTP client keeps a cookie jar so the survey anti-duplicate
// cookie behaves as it would in a browser. Use separate Clients to act as
// separate respondents.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a 10 second timeout and an empty cookie jar.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// NewSession wraps an existing session token, for example one kept from an
// earlier login.
func (c *Client) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}
