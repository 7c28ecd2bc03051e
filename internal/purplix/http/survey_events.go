package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/purplix/backend/pkg/slogx"
)

const (
	submissionEvent = "survey.submission"
	sseHeartbeat    = 15 * time.Second
)

// HandleEvents handles GET /v1/survey/{id}/events, a server-sent event
// stream of new submissions for the survey owner.
func (h *SurveyHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _, ok := principal(w, r)
	if !ok {
		return
	}

	events, cancel, err := h.Surveys.Listen(ctx, userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Warn("event stream not flushable", "err", err)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}

		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error("encode submission event", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", submissionEvent, data); err != nil {
				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}
