package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/intelligencedev/agentruntime/internal/service"
)

// handleStreamMessage drives one SendMessage turn over Server-Sent Events.
// Each event's data field is a JSON-encoded service.StreamEnvelope; an
// envelope with done:true terminates the stream.
func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		UserID  string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, badRequest(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	write := func(env service.StreamEnvelope) {
		b, err := json.Marshal(env)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}

	err := s.service.StreamMessage(r.Context(), r.PathValue("sid"), body.Content, body.UserID, write)
	if err != nil {
		write(service.StreamEnvelope{Content: err.Error(), Done: true})
	}
}
