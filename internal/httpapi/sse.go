package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/xid"
)

// handlePipelineStream fans pipeline events out to the client as SSE. Each
// event is the envelope the bus published, so the client sees run ids and
// can discard events from superseded runs.
func (s *Server) handlePipelineStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID := xid.New().String()
	ch := s.bus.Subscribe(subID, 64)
	defer s.bus.Unsubscribe(subID)

	// opening snapshot so late joiners see the current run state
	snapshot, err := json.Marshal(s.tracker.Snapshot())
	if err == nil {
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case env, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
