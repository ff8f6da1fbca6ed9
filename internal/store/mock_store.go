// ABOUTME: In-memory Store implementation for unit tests
// ABOUTME: Thread-safe; mirrors SQLiteStore semantics including idempotent deletes

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of Store for testing.
// All methods are safe for concurrent use.
type MockStore struct {
	mu          sync.RWMutex
	sessions    map[string]*ConversationSession
	cards       map[string]*Card
	corrections map[string]*Correction
	reminders   map[string]*Reminder

	// FailSaveSession forces SaveSession to return this error when set
	FailSaveSession error
	// FailUpdateUsage forces UpdateUsage to return this error when set
	FailUpdateUsage error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions:    make(map[string]*ConversationSession),
		cards:       make(map[string]*Card),
		corrections: make(map[string]*Correction),
		reminders:   make(map[string]*Reminder),
	}
}

func (m *MockStore) GetSession(ctx context.Context, conversationID string) (*ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (m *MockStore) SaveSession(ctx context.Context, session *ConversationSession) error {
	if m.FailSaveSession != nil {
		return m.FailSaveSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	m.sessions[session.ConversationID] = &copied
	return nil
}

func (m *MockStore) DeleteSession(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, conversationID)
	return nil
}

func (m *MockStore) UpdateUsage(ctx context.Context, conversationID string, percent float64) error {
	if m.FailUpdateUsage != nil {
		return m.FailUpdateUsage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[conversationID]
	if !ok {
		return ErrNotFound
	}
	sess.ContextUsagePercent = percent
	sess.LastActiveAt = time.Now()
	return nil
}

func (m *MockStore) ListSessions(ctx context.Context) ([]*ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*ConversationSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		copied := *sess
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
	return sessions, nil
}

func (m *MockStore) CreateCard(ctx context.Context, card *Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *card
	m.cards[card.ID] = &copied
	return nil
}

func (m *MockStore) GetCard(ctx context.Context, id string) (*Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	card, ok := m.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (m *MockStore) ListCards(ctx context.Context, column string) ([]*Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cards []*Card
	for _, card := range m.cards {
		if column != "" && card.Column != column {
			continue
		}
		copied := *card
		cards = append(cards, &copied)
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Column != cards[j].Column {
			return cards[i].Column < cards[j].Column
		}
		return cards[i].Position < cards[j].Position
	})
	return cards, nil
}

func (m *MockStore) MoveCard(ctx context.Context, id, column string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	card, ok := m.cards[id]
	if !ok {
		return ErrNotFound
	}
	card.Column = column
	card.Position = position
	card.UpdatedAt = time.Now()
	return nil
}

func (m *MockStore) DeleteCard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cards, id)
	return nil
}

func (m *MockStore) CreateCorrection(ctx context.Context, c *Correction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *c
	m.corrections[c.ID] = &copied
	return nil
}

func (m *MockStore) ListCorrections(ctx context.Context) ([]*Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var corrections []*Correction
	for _, c := range m.corrections {
		copied := *c
		corrections = append(corrections, &copied)
	}
	sort.Slice(corrections, func(i, j int) bool {
		return corrections[i].CreatedAt.After(corrections[j].CreatedAt)
	})
	return corrections, nil
}

func (m *MockStore) DeleteCorrection(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.corrections, id)
	return nil
}

func (m *MockStore) CreateReminder(ctx context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *r
	m.reminders[r.ID] = &copied
	return nil
}

func (m *MockStore) ListDueReminders(ctx context.Context, now time.Time) ([]*Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*Reminder
	for _, r := range m.reminders {
		if r.SentAt == nil && !r.DueAt.After(now) {
			copied := *r
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].DueAt.Before(due[j].DueAt)
	})
	return due, nil
}

func (m *MockStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.SentAt != nil {
		return ErrNotFound
	}
	sent := at
	r.SentAt = &sent
	return nil
}

func (m *MockStore) DeleteReminder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reminders, id)
	return nil
}

// Close is a no-op for the mock store
func (m *MockStore) Close() error {
	return nil
}
