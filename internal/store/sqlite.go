// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/card/correction/reminder persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			conversation_id       TEXT PRIMARY KEY,
			agent_session_id      TEXT NOT NULL DEFAULT '',
			working_context       TEXT NOT NULL DEFAULT '',
			last_active_at        DATETIME NOT NULL,
			context_usage_percent REAL NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_last_active
			ON sessions(last_active_at DESC);

		CREATE TABLE IF NOT EXISTS cards (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			column_name TEXT NOT NULL DEFAULT 'backlog',
			position   INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cards_column
			ON cards(column_name, position);

		CREATE TABLE IF NOT EXISTS corrections (
			id         TEXT PRIMARY KEY,
			pattern    TEXT NOT NULL,
			guidance   TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reminders (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			text            TEXT NOT NULL,
			due_at          DATETIME NOT NULL,
			sent_at         DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_reminders_due
			ON reminders(due_at) WHERE sent_at IS NULL;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSession returns the session for a conversation, or ErrNotFound
func (s *SQLiteStore) GetSession(ctx context.Context, conversationID string) (*ConversationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, agent_session_id, working_context, last_active_at, context_usage_percent
		FROM sessions WHERE conversation_id = ?`, conversationID)

	var sess ConversationSession
	err := row.Scan(&sess.ConversationID, &sess.AgentSessionID, &sess.WorkingContext,
		&sess.LastActiveAt, &sess.ContextUsagePercent)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &sess, nil
}

// SaveSession upserts a session by conversation ID
func (s *SQLiteStore) SaveSession(ctx context.Context, session *ConversationSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (conversation_id, agent_session_id, working_context, last_active_at, context_usage_percent)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			agent_session_id = excluded.agent_session_id,
			working_context = excluded.working_context,
			last_active_at = excluded.last_active_at,
			context_usage_percent = excluded.context_usage_percent`,
		session.ConversationID, session.AgentSessionID, session.WorkingContext,
		session.LastActiveAt, session.ContextUsagePercent)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// UpdateUsage partially updates the context usage percentage and activity time
func (s *SQLiteStore) UpdateUsage(ctx context.Context, conversationID string, percent float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET context_usage_percent = ?, last_active_at = ?
		WHERE conversation_id = ?`, percent, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("updating usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating usage: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns all sessions ordered by recent activity
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*ConversationSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, agent_session_id, working_context, last_active_at, context_usage_percent
		FROM sessions ORDER BY last_active_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*ConversationSession
	for rows.Next() {
		var sess ConversationSession
		if err := rows.Scan(&sess.ConversationID, &sess.AgentSessionID, &sess.WorkingContext,
			&sess.LastActiveAt, &sess.ContextUsagePercent); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}
