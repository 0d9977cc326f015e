package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QatreenFatima/ai-book/internal/log"
	"github.com/QatreenFatima/ai-book/internal/rag"
	"github.com/QatreenFatima/ai-book/internal/session"
	"github.com/QatreenFatima/ai-book/internal/testutil"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

type chatFixture struct {
	store     *fakeStore
	retriever *fakeRetriever
	streamer  *fakeStreamer
	server    *Server
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	f := &chatFixture{
		store: newFakeStore(),
		retriever: &fakeRetriever{results: []vectordb.SearchResult{
			{
				Score: 0.91234,
				Payload: vectordb.Payload{
					Text:         "Servos are closed loop actuators.",
					Source:       "ch2/actuators.mdx",
					SectionTitle: "Servos",
					PageTitle:    "Actuators",
				},
			},
		}},
		streamer: &fakeStreamer{fragments: []string{"Servos ", "are actuators."}},
	}

	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Store:     f.store,
		Retriever: f.retriever,
		Streamer:  f.streamer,
	})
	require.NoError(t, err)
	f.server = srv
	return f
}

func (f *chatFixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_EmptyMessage(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		rec := f.post(t, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Message cannot be empty")
	}
}

func TestChat_MessageTooLong(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	long := strings.Repeat("x", MaxMessageChars+1)
	rec := f.post(t, fmt.Sprintf(`{"message":%q}`, long))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Message exceeds 2000 character limit")
}

func TestChat_MessageAtLimitAccepted(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", MaxMessageChars)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat_UnknownSession(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, fmt.Sprintf(`{"message":"hi","session_id":%q}`, uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session not found")
}

func TestChat_MalformedSessionID(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, `{"message":"hi","session_id":"not-a-uuid"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat_RetrievalUnavailable(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	f.retriever.err = fmt.Errorf("%w: qdrant down", rag.ErrRetrievalUnavailable)

	rec := f.post(t, `{"message":"what is a servo"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Retrieval service unavailable")
}

func TestChat_StreamsAnswerWithSources(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, `{"message":"what is a servo"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	sessionID, err := uuid.Parse(rec.Header().Get("X-Session-Id"))
	require.NoError(t, err)

	payloads := testutil.ParseSSEData(t, rec.Body.String())
	require.Len(t, payloads, 4)

	assert.JSONEq(t, `{"content":"Servos "}`, payloads[0])
	assert.JSONEq(t, `{"content":"are actuators."}`, payloads[1])
	assert.JSONEq(t, `{"sources":[{"source":"ch2/actuators.mdx","section_title":"Servos","score":0.912}]}`, payloads[2])
	assert.Equal(t, "[DONE]", payloads[3])

	// Both turns persisted, assistant with rounded citations.
	messages := f.store.sessionMessages(sessionID)
	require.Len(t, messages, 2)
	assert.Equal(t, session.RoleUser, messages[0].Role)
	assert.Equal(t, "what is a servo", messages[0].Content)
	assert.Nil(t, messages[0].Sources)
	assert.Equal(t, session.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Servos are actuators.", messages[1].Content)
	assert.JSONEq(t, `[{"source":"ch2/actuators.mdx","section_title":"Servos","score":0.912}]`, string(messages[1].Sources))
}

func TestChat_ExcerptModeSkipsRetrieval(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, `{"message":"explain this","selected_text":"for i := range joints {}"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, f.retriever.calls)

	payloads := testutil.ParseSSEData(t, rec.Body.String())
	require.Len(t, payloads, 3)
	assert.Equal(t, "[DONE]", payloads[2])
	for _, p := range payloads[:2] {
		assert.NotContains(t, p, "sources")
	}

	require.NotEmpty(t, f.streamer.messages)
	assert.Contains(t, f.streamer.messages[1].Content, "Text excerpt:\n\nfor i := range joints {}")
	assert.Empty(t, f.streamer.sources)
}

func TestChat_HistoryExcludesCurrentQuestion(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	id := f.store.seedSession(
		session.Message{ID: 1, Role: session.RoleUser, Content: "first question"},
		session.Message{ID: 2, Role: session.RoleAssistant, Content: "first answer"},
	)

	rec := f.post(t, fmt.Sprintf(`{"message":"second question","session_id":%q}`, id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), rec.Header().Get("X-Session-Id"))

	// Prompt: system, context, ack, two history turns, question.
	require.Len(t, f.streamer.messages, 6)
	assert.Equal(t, "first question", f.streamer.messages[3].Content)
	assert.Equal(t, "first answer", f.streamer.messages[4].Content)
	assert.Equal(t, "second question", f.streamer.messages[5].Content)
}

func TestChat_InterruptedStreamPersistsPartialAnswer(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	f.streamer.fragments = []string{"partial "}
	f.streamer.interrupt = true

	rec := f.post(t, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payloads := testutil.ParseSSEData(t, rec.Body.String())
	require.Len(t, payloads, 3)
	assert.JSONEq(t, `{"content":"partial "}`, payloads[0])
	assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, rag.InterruptedMessage), payloads[1])
	assert.Equal(t, "[DONE]", payloads[2])

	sessionID, err := uuid.Parse(rec.Header().Get("X-Session-Id"))
	require.NoError(t, err)
	messages := f.store.sessionMessages(sessionID)
	require.Len(t, messages, 2)
	assert.Equal(t, "partial ", messages[1].Content)
}

func TestChat_InvalidBody(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.post(t, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_body", resp.Error)
}
