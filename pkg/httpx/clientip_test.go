package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/purplix/backend/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		trust  bool
		want   string
	}{
		{name: "remote addr", remote: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "ignores headers when untrusted", remote: "192.168.1.1:1", xff: "203.0.113.1", want: "192.168.1.1"},
		{name: "first forwarded hop", remote: "192.168.1.1:1", xff: "203.0.113.1, 10.0.0.1", trust: true, want: "203.0.113.1"},
		{name: "real ip fallback", remote: "192.168.1.1:1", xri: "203.0.113.2", trust: true, want: "203.0.113.2"},
		{name: "garbage header falls through", remote: "192.168.1.1:1", xff: "not-an-ip", trust: true, want: "192.168.1.1"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			require.Equal(t, tt.want, httpx.ClientIP(req, tt.trust))
		})
	}
}
