package http

import (
	"context"
	"net/http"
	"time"

	"github.com/purplix/backend/internal/purplix/cache"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/purplixsdk"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports 503 until the store answers, the revocation cache
// answers (when it is remote) and signing keys are loaded.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	c cache.Cache,
	signer Signer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &purplixsdk.HealthChecks{
			Database: "ok",
			Cache:    "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if p, ok := c.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				checks.Cache = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		if signer == nil || !signer.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := purplixsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
