package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/QatreenFatima/ai-book/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newStreamServer emits the given fragments as completion chunks. When
// interrupt is true it sends a malformed chunk after the fragments instead
// of finishing the stream.
func newStreamServer(t *testing.T, fragments []string, interrupt bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, fragment := range fragments {
			chunk := fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q}}]}`, fragment)
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}

		if interrupt {
			fmt.Fprint(w, "data: {not json\n\n")
			flusher.Flush()
			return
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func newTestStreamer(t *testing.T, fragments []string, interrupt bool) *Streamer {
	t.Helper()

	srv := newStreamServer(t, fragments, interrupt)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewStreamer(openai.NewClientWithConfig(cfg), "qwen/qwen3-max", log.NewNop())
}

func collectEvents(events *[]Event) EmitFunc {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func TestStreamer_Stream(t *testing.T) {
	t.Parallel()

	s := newTestStreamer(t, []string{"Servos ", "are ", "closed loop."}, false)

	sources := []SourceRef{
		{Source: "ch2/actuators.mdx", SectionTitle: "Servos", Score: 0.91234},
	}

	var events []Event
	answer, err := s.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, sources, collectEvents(&events))
	require.NoError(t, err)
	assert.Equal(t, "Servos are closed loop.", answer)

	require.Len(t, events, 5)
	assert.Equal(t, Event{Type: EventContent, Content: "Servos "}, events[0])
	assert.Equal(t, Event{Type: EventContent, Content: "are "}, events[1])
	assert.Equal(t, Event{Type: EventContent, Content: "closed loop."}, events[2])

	require.Equal(t, EventSources, events[3].Type)
	require.Len(t, events[3].Sources, 1)
	assert.Equal(t, 0.912, events[3].Sources[0].Score)
	assert.Equal(t, "ch2/actuators.mdx", events[3].Sources[0].Source)

	assert.Equal(t, EventDone, events[4].Type)
}

func TestStreamer_NoSourcesSkipsSourcesEvent(t *testing.T) {
	t.Parallel()

	s := newTestStreamer(t, []string{"hello"}, false)

	var events []Event
	_, err := s.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil, collectEvents(&events))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventContent, events[0].Type)
	assert.Equal(t, EventDone, events[1].Type)
}

func TestStreamer_InterruptedStream(t *testing.T) {
	t.Parallel()

	s := newTestStreamer(t, []string{"partial "}, true)

	var events []Event
	answer, err := s.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil, collectEvents(&events))
	require.Error(t, err)
	assert.Equal(t, "partial ", answer)

	require.Len(t, events, 3)
	assert.Equal(t, EventContent, events[0].Type)
	assert.Equal(t, Event{Type: EventError, Message: InterruptedMessage}, events[1])
	assert.Equal(t, EventDone, events[2].Type)
}

func TestStreamer_RequestFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	s := NewStreamer(openai.NewClientWithConfig(cfg), "qwen/qwen3-max", log.NewNop())

	var events []Event
	_, err := s.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil, collectEvents(&events))
	require.Error(t, err)
	assert.Empty(t, events)
}

func TestStreamer_EmitErrorStopsStream(t *testing.T) {
	t.Parallel()

	s := newTestStreamer(t, []string{"a", "b", "c"}, false)

	count := 0
	emit := func(Event) error {
		count++
		if count == 2 {
			return errors.New("client gone")
		}
		return nil
	}

	_, err := s.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil, emit)
	require.Error(t, err)
	assert.Equal(t, 2, count)
}
