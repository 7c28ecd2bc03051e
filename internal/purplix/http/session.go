package http

import (
	"net/http"

	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/purplixsdk"
)

// SessionHandler lists and ends the caller's sessions.
type SessionHandler struct {
	Sessions      *service.SessionService
	SecureCookies bool
}

// HandleList handles GET /v1/session.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.Sessions.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]purplixsdk.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionOut(s, sessionID))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleInvalidate handles DELETE /v1/session/{id}.
func (h *SessionHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := principal(w, r)
	if !ok {
		return
	}

	target := r.PathValue("id")
	if err := h.Sessions.Invalidate(r.Context(), userID, target); err != nil {
		writeError(w, r, err)
		return
	}
	if target == sessionID {
		httpx.ClearSessionCookie(w, h.SecureCookies)
	}
	w.WriteHeader(http.StatusNoContent)
}
