package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// handleEvents streams pipeline progress for one project over SSE until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.log.WithError(err).Error("failed to get project")
		s.errorResponse(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		s.errorResponse(w, http.StatusNotFound, "project not found")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, cancel := s.broker.Subscribe(projectID)
	defer cancel()

	// Tell the client where the project currently stands.
	sse.WriteEvent("checkpoint", map[string]string{ //nolint:errcheck
		"project_id": projectID.String(),
		"checkpoint": string(project.Checkpoint),
	})

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			sse.flusher.Flush()
		case event := <-events:
			if err := sse.WriteEvent("progress", event); err != nil {
				return
			}
		}
	}
}
