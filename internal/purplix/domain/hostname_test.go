package domain_test

import (
	"testing"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "example.com"},
		{in: "  Example.COM ", want: "example.com"},
		{in: "https://example.com/path?q=1", want: "example.com"},
		{in: "sub.example.co.uk", want: "sub.example.co.uk"},
		{in: "example.com.", want: "example.com"},
		{in: "www.example.com", wantErr: true},
		{in: "www2.example.com", wantErr: true},
		{in: "localhost", wantErr: true},
		{in: "", wantErr: true},
		{in: "-bad.com", wantErr: true},
		{in: "exa mple.com", wantErr: true},
		{in: "example.c0m", wantErr: true},
		{in: "127.0.0.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.NormalizeDomain(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidDomain)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSurveyIsClosed(t *testing.T) {
	now := mustTime(t, "2025-01-02T00:00:00Z")
	past := now.Add(-1)
	future := now.Add(1)

	require.True(t, domain.Survey{Closed: true}.IsClosed(now))
	require.True(t, domain.Survey{ClosingAt: &past}.IsClosed(now))
	require.True(t, domain.Survey{ClosingAt: &now}.IsClosed(now))
	require.False(t, domain.Survey{ClosingAt: &future}.IsClosed(now))
	require.False(t, domain.Survey{}.IsClosed(now))
}

func TestNextCanaryDuration(t *testing.T) {
	d, err := domain.NextFortnight.Duration()
	require.NoError(t, err)
	require.Equal(t, 14*24, int(d.Hours()))

	_, err = domain.NextCanary("decade").Duration()
	require.Error(t, err)
}

func TestUserRedacted(t *testing.T) {
	u := domain.User{OTPSecret: "SECRET", OTPCompleted: true}
	require.Empty(t, u.Redacted().OTPSecret)
	require.Equal(t, "SECRET", u.OTPSecret)

	u.OTPCompleted = false
	require.Equal(t, "SECRET", u.Redacted().OTPSecret)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
