// Package session persists chat sessions and their message history in
// PostgreSQL.
//
// A session is an anonymous conversation identified by a UUID the server
// hands out. Messages carry an optional sources JSON blob so assistant
// answers keep their citations across reloads.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message roles accepted by the store. Mirrors the CHECK constraint on the
// messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one conversation.
type Session struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Message is one stored chat turn. Sources holds the citation list exactly
// as it was streamed to the client, or nil for user messages.
type Message struct {
	ID        int64           `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   json.RawMessage `json:"sources,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
