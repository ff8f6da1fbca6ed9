// ABOUTME: Store interfaces and data types for loom persistence
// ABOUTME: Defines ConversationSession, Card, Correction, Reminder and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationSession is the per-conversation agent binding and context budget state.
// At most one session exists per conversation; the conversation ID is the key.
type ConversationSession struct {
	ConversationID      string
	AgentSessionID      string // empty until the agent binds a session
	WorkingContext      string // workspace path handed to the agent
	LastActiveAt        time.Time
	ContextUsagePercent float64 // may exceed 100 if the agent overruns
}

// Card is a kanban card created through the task intake path.
type Card struct {
	ID        string
	Title     string
	Body      string
	Column    string // backlog, doing, done
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Correction is reviewer guidance appended to composed prompts when its
// pattern matches the inbound message.
type Correction struct {
	ID        string
	Pattern   string
	Guidance  string
	CreatedAt time.Time
}

// Reminder is a scheduled proactive message for a conversation.
type Reminder struct {
	ID             string
	ConversationID string
	Text           string
	DueAt          time.Time
	SentAt         *time.Time
}

// SessionStore defines session persistence as consumed by the orchestrator
type SessionStore interface {
	// GetSession returns the session for a conversation, or ErrNotFound
	GetSession(ctx context.Context, conversationID string) (*ConversationSession, error)
	// SaveSession upserts a session by conversation ID
	SaveSession(ctx context.Context, session *ConversationSession) error
	// DeleteSession removes a session; deleting a missing session is not an error
	DeleteSession(ctx context.Context, conversationID string) error
	// UpdateUsage partially updates the context usage percentage
	UpdateUsage(ctx context.Context, conversationID string, percent float64) error
	// ListSessions returns all sessions ordered by recent activity
	ListSessions(ctx context.Context) ([]*ConversationSession, error)
}

// CardStore defines kanban card persistence
type CardStore interface {
	CreateCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, id string) (*Card, error)
	ListCards(ctx context.Context, column string) ([]*Card, error)
	MoveCard(ctx context.Context, id, column string, position int) error
	DeleteCard(ctx context.Context, id string) error
}

// CorrectionStore defines correction persistence
type CorrectionStore interface {
	CreateCorrection(ctx context.Context, c *Correction) error
	ListCorrections(ctx context.Context) ([]*Correction, error)
	DeleteCorrection(ctx context.Context, id string) error
}

// ReminderStore defines reminder persistence as consumed by the scheduler
type ReminderStore interface {
	CreateReminder(ctx context.Context, r *Reminder) error
	ListDueReminders(ctx context.Context, now time.Time) ([]*Reminder, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	DeleteReminder(ctx context.Context, id string) error
}

// Store composes all persistence interfaces
type Store interface {
	SessionStore
	CardStore
	CorrectionStore
	ReminderStore

	// Close releases any resources held by the store
	Close() error
}
