package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/QatreenFatima/ai-book/internal/log"
	"github.com/QatreenFatima/ai-book/internal/session"
)

type sessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// messagesResponse is the GET /api/sessions/{id}/messages body.
type messagesResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
}

// listMessages handles GET /api/sessions/{id}/messages, returning the full
// stored history oldest first.
func (h *sessionHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return
	}

	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
			return
		}
		h.logger.Error("fetching session", "error", err, "session", id)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load session")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		h.logger.Error("listing messages", "error", err, "session", id)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load messages")
		return
	}
	if messages == nil {
		messages = []session.Message{}
	}

	writeJSON(w, http.StatusOK, messagesResponse{
		SessionID: id.String(),
		Messages:  messages,
	})
}
