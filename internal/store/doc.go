// Package store provides persistent storage for loom using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces per consumer:
//
//   - SessionStore: conversation sessions (the orchestrator's state record)
//   - CardStore: kanban cards created via task intake
//   - CorrectionStore: reviewer guidance appended to prompts
//   - ReminderStore: scheduled proactive messages
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Session semantics
//
// Sessions are keyed by conversation ID with at most one row per
// conversation. SaveSession is an upsert; DeleteSession is idempotent
// (deleting a missing session succeeds). UpdateUsage is a partial update
// that also refreshes last_active_at.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Testing
//
// Use NewMockStore() for unit tests; it mirrors SQLiteStore semantics.
// Use NewSQLiteStore with a t.TempDir() path for integration tests.
package store
