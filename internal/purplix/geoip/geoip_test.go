package geoip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/purplix/backend/internal/purplix/geoip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/v2/203.0.113.7":
			_, _ = w.Write([]byte(`{"status":"ok","203.0.113.7":{"region":"Victoria","country":"Australia","proxy":"yes","type":"VPN"}}`))
		case "/v2/198.51.100.1":
			_, _ = w.Write([]byte(`{"status":"ok","198.51.100.1":{"country":"Germany","proxy":"no"}}`))
		case "/v2/192.0.2.1":
			_, _ = w.Write([]byte(`{"status":"denied","message":"quota"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	c := geoip.New(geoip.Config{URL: srv.URL + "/v2", APIKey: "k"})
	ctx := context.Background()

	loc, err := c.Lookup(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, geoip.Location{Region: "Victoria", Country: "Australia", Proxy: true}, loc)

	loc, err = c.Lookup(ctx, "198.51.100.1")
	require.NoError(t, err)
	require.False(t, loc.Proxy)
	require.Equal(t, "Germany", loc.Country)

	_, err = c.Lookup(ctx, "192.0.2.1")
	require.Error(t, err)

	_, err = c.Lookup(ctx, "10.9.9.9")
	require.Error(t, err)
}

func TestLookupDisabled(t *testing.T) {
	_, err := geoip.New(geoip.Config{}).Lookup(context.Background(), "203.0.113.7")
	require.ErrorIs(t, err, geoip.ErrDisabled)
}
