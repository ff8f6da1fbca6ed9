// ABOUTME: PendingSet tracks conversations awaiting continuation confirmation
// ABOUTME: Owned by the orchestrator, never ambient global state

package conversation

import "sync"

// PendingSet holds conversation IDs that received a context warning and are
// waiting for the user to confirm continuation. Membership is added only by
// the warning action and removed only by the continuation keyword or a
// superseding handoff.
type PendingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewPendingSet creates an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{ids: make(map[string]struct{})}
}

// Add marks a conversation as awaiting continuation.
func (p *PendingSet) Add(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[conversationID] = struct{}{}
}

// Remove clears a conversation; removing an absent ID is a no-op.
func (p *PendingSet) Remove(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, conversationID)
}

// Contains reports whether a conversation is awaiting continuation.
func (p *PendingSet) Contains(conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[conversationID]
	return ok
}
