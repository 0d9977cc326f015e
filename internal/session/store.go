package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/QatreenFatima/ai-book/internal/log"
)

// DB is the subset of pgxpool.Pool the store needs. Defined here, on the
// consumer side, so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages session and message persistence.
// Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store on top of a pgx pool or compatible DB.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CreateSession inserts a new session with a freshly generated UUID.
func (s *Store) CreateSession(ctx context.Context, metadata json.RawMessage) (*Session, error) {
	sess := Session{ID: uuid.New(), Metadata: metadata}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (id, metadata) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		sess.ID, metadata,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID)
	return &sess, nil
}

// GetSession fetches a session by ID. Returns ErrNotFound if it does not
// exist.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := Session{ID: id}

	err := s.db.QueryRow(ctx,
		`SELECT created_at, updated_at, metadata FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt, &sess.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", id, err)
	}

	return &sess, nil
}

// AppendMessage stores one chat turn and bumps the session's updated_at.
// Sources may be nil; when present it is stored verbatim as JSONB.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string, sources json.RawMessage) (int64, error) {
	if role != RoleUser && role != RoleAssistant {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, sources)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		sessionID, role, content, sources,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("appending message to session %s: %w", sessionID, err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE sessions SET updated_at = NOW() WHERE id = $1`,
		sessionID,
	); err != nil {
		return 0, fmt.Errorf("touching session %s: %w", sessionID, err)
	}

	return id, nil
}

// ListMessages returns all messages of a session, oldest first. The id
// tiebreak keeps turns inserted in the same transaction batch ordered.
func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, role, content, sources, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Sources, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	return messages, nil
}
