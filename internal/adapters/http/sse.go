package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// writeSSE relays pipeline stream events to the client as server-sent
// events, one SSE message per StreamEvent, flushing after each. The
// loop ends when the pipeline closes the channel; a client disconnect
// cancels r.Context(), which the dispatcher observes.
func writeSSE(w http.ResponseWriter, r *http.Request, events <-chan domain.StreamEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			// Drain nothing: the dispatcher sees the same cancellation
			// and closes the channel.
			return
		}
	}
}
