package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"sentinel", service.ErrCanaryNotFound, http.StatusNotFound, apierr.CodeCanaryNotFound},
		{"wrapped sentinel", fmt.Errorf("verify: %w", service.ErrNotAuthenticated), http.StatusUnauthorized, apierr.CodeNotAuthenticated},
		{"unsafe webhook", service.ErrUnsafeWebhook, http.StatusBadRequest, apierr.CodeLocalDomain},
		{"already submitted", service.ErrSurveyAlreadySubmitted, http.StatusConflict, apierr.CodeSurveyAlreadySubmitted},
		{"api error passes through", apierr.ErrTooManyFiles, http.StatusBadRequest, apierr.CodeTooManyFiles},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, apierr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			var body apierr.Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.code, body.Code)
			require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		})
	}
}

func TestErrorTableCoversEveryServiceError(t *testing.T) {
	for _, e := range errorTable {
		require.NotNil(t, e.api, e.err.Error())
		require.NotEqual(t, apierr.CodeInternal, e.api.Code, e.err.Error())
	}
}
