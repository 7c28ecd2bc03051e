package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/purplix/backend/pkg/apierr"
)

// MaxJSONBody bounds request bodies decoded by DecodeJSON.
const MaxJSONBody = 1 << 20

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// DecodeJSON strictly decodes the request body into v. Unknown fields and
// trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.ErrInvalidRequest.WithDetail("request body is empty")
		}
		return apierr.ErrInvalidRequest.WithDetail("request body is not valid JSON: " + err.Error())
	}
	if dec.More() {
		return apierr.ErrInvalidRequest.WithDetail("request body has trailing data")
	}
	return nil
}
