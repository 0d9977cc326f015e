package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/QatreenFatima/ai-book/internal/ingest"
	"github.com/QatreenFatima/ai-book/internal/rag"
	"github.com/QatreenFatima/ai-book/internal/session"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// fakeStore is an in-memory SessionStore.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	messages map[uuid.UUID][]session.Message
	nextID   int64
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*session.Session),
		messages: make(map[uuid.UUID][]session.Message),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, metadata json.RawMessage) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	sess := &session.Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  metadata,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	sess, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, sessionID uuid.UUID, role, content string, sources json.RawMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	f.nextID++
	f.messages[sessionID] = append(f.messages[sessionID], session.Message{
		ID:        f.nextID,
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeStore) ListMessages(_ context.Context, sessionID uuid.UUID) ([]session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]session.Message(nil), f.messages[sessionID]...), nil
}

// seedSession creates a session with canned history.
func (f *fakeStore) seedSession(history ...session.Message) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.sessions[id] = &session.Session{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.messages[id] = history
	return id
}

func (f *fakeStore) sessionMessages(id uuid.UUID) []session.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Message(nil), f.messages[id]...)
}

// fakeRetriever returns canned chunks.
type fakeRetriever struct {
	mu      sync.Mutex
	results []vectordb.SearchResult
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(context.Context, string) ([]vectordb.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeStreamer replays scripted fragments through emit the way the real
// streamer would, recording the prompt it was given.
type fakeStreamer struct {
	mu        sync.Mutex
	fragments []string
	interrupt bool

	messages []rag.Message
	sources  []rag.SourceRef
}

func (f *fakeStreamer) Stream(_ context.Context, messages []rag.Message, sources []rag.SourceRef, emit rag.EmitFunc) (string, error) {
	f.mu.Lock()
	f.messages = messages
	f.sources = sources
	f.mu.Unlock()

	var answer string
	for _, fragment := range f.fragments {
		answer += fragment
		if err := emit(rag.Event{Type: rag.EventContent, Content: fragment}); err != nil {
			return answer, err
		}
	}

	if f.interrupt {
		_ = emit(rag.Event{Type: rag.EventError, Message: rag.InterruptedMessage})
		_ = emit(rag.Event{Type: rag.EventDone})
		return answer, errors.New("upstream dropped connection")
	}

	if len(sources) > 0 {
		if err := emit(rag.Event{Type: rag.EventSources, Sources: rag.RoundScores(sources)}); err != nil {
			return answer, err
		}
	}
	if err := emit(rag.Event{Type: rag.EventDone}); err != nil {
		return answer, err
	}
	return answer, nil
}

// fakeIngestor returns a canned summary or error.
type fakeIngestor struct {
	summary *ingest.Summary
	err     error
	calls   int
	reset   bool
}

func (f *fakeIngestor) Run(_ context.Context, reset bool) (*ingest.Summary, error) {
	f.calls++
	f.reset = reset
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}
