package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEventStream pushes hub notifications over SSE. A client may scope
// the stream to one event with ?room=event:<id>; an empty room receives
// every broadcast.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request, _ int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ctx := r.Context()
	ch := s.hub.Subscribe(r.URL.Query().Get("room"))
	defer s.hub.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", msg.ID, msg.Type, data)
			flusher.Flush()
		}
	}
}
