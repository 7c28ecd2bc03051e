package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Push is one ntfy notification.
type Push struct {
	Title    string
	Message  string
	Tags     string
	Priority string // min, low, default, high, max
}

// Ntfy publishes to topics on an ntfy server.
type Ntfy struct {
	url  string
	http *http.Client
}

func NewNtfy(baseURL string) *Ntfy {
	return &Ntfy{
		url:  strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Ntfy) Push(ctx context.Context, topic string, p Push) error {
	if topic == "" {
		return fmt.Errorf("notify: empty ntfy topic")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url+"/"+url.PathEscape(topic), strings.NewReader(p.Message))
	if err != nil {
		return err
	}
	if p.Priority == "" {
		p.Priority = "default"
	}
	req.Header.Set("Title", p.Title)
	req.Header.Set("Priority", p.Priority)
	if p.Tags != "" {
		req.Header.Set("Tags", p.Tags)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: ntfy returned %d", resp.StatusCode)
	}
	return nil
}
