// ABOUTME: Tests for SQLiteStore session persistence
// ABOUTME: Covers upsert, idempotent delete, partial usage updates, and listing

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveAndGetSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := &ConversationSession{
		ConversationID:      "!room:example.org",
		AgentSessionID:      "sess-abc",
		WorkingContext:      "/srv/workspace",
		LastActiveAt:        time.Now().UTC().Truncate(time.Second),
		ContextUsagePercent: 42.5,
	}
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.GetSession(ctx, "!room:example.org")
	require.NoError(t, err)
	assert.Equal(t, "sess-abc", got.AgentSessionID)
	assert.Equal(t, "/srv/workspace", got.WorkingContext)
	assert.InDelta(t, 42.5, got.ContextUsagePercent, 0.001)
}

func TestSQLiteStore_SaveSession_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := &ConversationSession{
		ConversationID: "!room:example.org",
		AgentSessionID: "first",
		LastActiveAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveSession(ctx, sess))

	sess.AgentSessionID = "second"
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.GetSession(ctx, "!room:example.org")
	require.NoError(t, err)
	assert.Equal(t, "second", got.AgentSessionID)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "upsert must not create a second row")
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "!missing:example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Deleting a session that never existed must not error
	require.NoError(t, s.DeleteSession(ctx, "!missing:example.org"))

	sess := &ConversationSession{
		ConversationID: "!room:example.org",
		LastActiveAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveSession(ctx, sess))
	require.NoError(t, s.DeleteSession(ctx, "!room:example.org"))
	require.NoError(t, s.DeleteSession(ctx, "!room:example.org"))

	_, err := s.GetSession(ctx, "!room:example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateUsage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := &ConversationSession{
		ConversationID: "!room:example.org",
		AgentSessionID: "sess-abc",
		WorkingContext: "/srv/workspace",
		LastActiveAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveSession(ctx, sess))
	require.NoError(t, s.UpdateUsage(ctx, "!room:example.org", 73.2))

	got, err := s.GetSession(ctx, "!room:example.org")
	require.NoError(t, err)
	assert.InDelta(t, 73.2, got.ContextUsagePercent, 0.001)
	// Partial update: the rest of the record is untouched
	assert.Equal(t, "sess-abc", got.AgentSessionID)
	assert.Equal(t, "/srv/workspace", got.WorkingContext)
}

func TestSQLiteStore_UpdateUsage_MissingSession(t *testing.T) {
	s := createTestStore(t)

	err := s.UpdateUsage(context.Background(), "!missing:example.org", 50)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListSessions_OrderedByActivity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	older := &ConversationSession{
		ConversationID: "!older:example.org",
		LastActiveAt:   time.Now().UTC().Add(-time.Hour),
	}
	newer := &ConversationSession{
		ConversationID: "!newer:example.org",
		LastActiveAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveSession(ctx, older))
	require.NoError(t, s.SaveSession(ctx, newer))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "!newer:example.org", sessions[0].ConversationID)
	assert.Equal(t, "!older:example.org", sessions[1].ConversationID)
}
