package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/QatreenFatima/ai-book/internal/log"
	"github.com/QatreenFatima/ai-book/internal/rag"
	"github.com/QatreenFatima/ai-book/internal/session"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// MaxMessageChars bounds the user question length.
const MaxMessageChars = 2000

// SessionStore is the persistence surface the handlers need.
// Satisfied by session.Store.
type SessionStore interface {
	CreateSession(ctx context.Context, metadata json.RawMessage) (*session.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string, sources json.RawMessage) (int64, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]session.Message, error)
}

// Retriever fetches relevant book chunks for a question.
// Satisfied by rag.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]vectordb.SearchResult, error)
}

// Streamer produces the model's answer as a stream of typed events.
// Satisfied by rag.Streamer.
type Streamer interface {
	Stream(ctx context.Context, messages []rag.Message, sources []rag.SourceRef, emit rag.EmitFunc) (string, error)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id,omitempty"`
	SelectedText string `json:"selected_text,omitempty"`
}

type chatHandler struct {
	store     SessionStore
	retriever Retriever
	streamer  Streamer
	logger    log.Logger
}

// send handles POST /api/chat. It validates the question, resolves or
// creates the session, saves the user turn, builds the prompt (retrieval
// mode or excerpt mode) and streams the answer. The session ID is returned
// in the X-Session-Id header before the stream starts.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "Message cannot be empty")
		return
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageChars {
		writeError(w, http.StatusBadRequest, "message_too_long", "Message exceeds 2000 character limit")
		return
	}

	ctx := r.Context()

	sess, ok := h.resolveSession(ctx, w, req.SessionID)
	if !ok {
		return
	}

	if _, err := h.store.AppendMessage(ctx, sess.ID, session.RoleUser, req.Message, nil); err != nil {
		h.logger.Error("saving user message", "error", err, "session", sess.ID)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to save message")
		return
	}

	history, err := h.loadHistory(ctx, sess.ID)
	if err != nil {
		h.logger.Error("loading history", "error", err, "session", sess.ID)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load history")
		return
	}

	var messages []rag.Message
	var sources []rag.SourceRef
	if strings.TrimSpace(req.SelectedText) != "" {
		messages = rag.BuildExcerptPrompt(req.Message, req.SelectedText, history)
	} else {
		chunks, err := h.retriever.Retrieve(ctx, req.Message)
		if err != nil {
			h.logger.Error("retrieval failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "retrieval_unavailable", "Retrieval service unavailable")
			return
		}
		messages = rag.BuildContextPrompt(req.Message, chunks, history)
		sources = sourceRefs(chunks)
	}

	w.Header().Set("X-Session-Id", sess.ID.String())

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	answer, streamErr := h.streamer.Stream(ctx, messages, sources, sse.emit)
	if streamErr != nil {
		h.logger.Warn("chat stream ended with error", "error", streamErr, "session", sess.ID)
	}

	// Persist whatever the client saw, including a partial answer from an
	// interrupted stream.
	if answer != "" {
		h.saveAssistantTurn(sess.ID, answer, sources)
	}
}

// resolveSession loads the requested session or creates a fresh one when the
// request carries no session ID. Both an unknown and a malformed ID map to
// 404 so clients recover the same way: drop the ID and start over.
func (h *chatHandler) resolveSession(ctx context.Context, w http.ResponseWriter, rawID string) (*session.Session, bool) {
	if rawID == "" {
		sess, err := h.store.CreateSession(ctx, nil)
		if err != nil {
			h.logger.Error("creating session", "error", err)
			writeError(w, http.StatusInternalServerError, "storage_error", "failed to create session")
			return nil, false
		}
		return sess, true
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return nil, false
	}

	sess, err := h.store.GetSession(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("fetching session", "error", err, "session", id)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load session")
		return nil, false
	}
	return sess, true
}

// loadHistory returns the conversation so far as prompt messages, excluding
// the just-saved user turn which enters the prompt separately as the
// question.
func (h *chatHandler) loadHistory(ctx context.Context, sessionID uuid.UUID) ([]rag.Message, error) {
	stored, err := h.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		stored = stored[:len(stored)-1]
	}

	history := make([]rag.Message, len(stored))
	for i, m := range stored {
		history[i] = rag.Message{Role: m.Role, Content: m.Content}
	}
	return history, nil
}

// saveAssistantTurn stores the streamed answer with its citations. Uses a
// background context: the client may already have disconnected, but the
// answer it received should survive.
func (h *chatHandler) saveAssistantTurn(sessionID uuid.UUID, answer string, sources []rag.SourceRef) {
	var sourcesJSON json.RawMessage
	if len(sources) > 0 {
		data, err := json.Marshal(sources)
		if err != nil {
			h.logger.Error("encoding source refs", "error", err)
		} else {
			sourcesJSON = data
		}
	}

	if _, err := h.store.AppendMessage(context.Background(), sessionID, session.RoleAssistant, answer, sourcesJSON); err != nil {
		h.logger.Error("saving assistant message", "error", err, "session", sessionID)
	}
}

// sourceRefs converts search results to citations with scores rounded the
// same way the stream rounds them, so the stored copy matches what was sent.
func sourceRefs(chunks []vectordb.SearchResult) []rag.SourceRef {
	refs := make([]rag.SourceRef, len(chunks))
	for i, chunk := range chunks {
		refs[i] = rag.SourceRef{
			Source:       chunk.Payload.Source,
			SectionTitle: chunk.Payload.SectionTitle,
			Score:        chunk.Score,
		}
	}
	return rag.RoundScores(refs)
}
