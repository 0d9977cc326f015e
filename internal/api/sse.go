package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/QatreenFatima/ai-book/internal/rag"
)

// sseWriter serializes stream events as data-only SSE frames and flushes
// after each one so fragments reach the client as they arrive.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for streaming. X-Accel-Buffering
// disables proxy buffering that would otherwise batch the whole stream.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// emit writes one stream event in the chat wire format:
//
//	data: {"content": "..."}
//	data: {"sources": [...]}
//	data: {"error": "..."}
//	data: [DONE]
func (s *sseWriter) emit(event rag.Event) error {
	switch event.Type {
	case rag.EventContent:
		return s.writeJSON(map[string]string{"content": event.Content})
	case rag.EventSources:
		return s.writeJSON(map[string][]rag.SourceRef{"sources": event.Sources})
	case rag.EventError:
		return s.writeJSON(map[string]string{"error": event.Message})
	case rag.EventDone:
		return s.writeRaw("[DONE]")
	default:
		return fmt.Errorf("unknown stream event type %q", event.Type)
	}
}

func (s *sseWriter) writeJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding stream payload: %w", err)
	}
	return s.writeRaw(string(data))
}

func (s *sseWriter) writeRaw(payload string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing stream frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
