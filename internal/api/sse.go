package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gwlsn/authgate/internal/auth"
)

// SessionStream handles GET /api/session/stream (SSE endpoint)
//
// The request's State is re-evaluated every streamInterval and an event is
// sent whenever the decision changes, so pages can hide gated content as
// soon as a session expires or is revoked.
func (h *Handler) SessionStream(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	state := auth.StateFromContext(r.Context())
	last, err := h.describe(state)
	if err != nil {
		http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		return
	}
	if !send(w, flusher, "init", last) || !last.Authenticated {
		return
	}

	interval := h.streamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			current, err := h.describe(state)
			if err != nil {
				send(w, flusher, "error", map[string]string{"error": "authentication unavailable"})
				return
			}
			if current.Authenticated == last.Authenticated {
				continue
			}
			last = current
			if !send(w, flusher, "change", current) {
				return
			}
			// A hidden state cannot become visible again without new tokens.
			if !current.Authenticated {
				return
			}
		}
	}
}

func send(w http.ResponseWriter, flusher http.Flusher, event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
