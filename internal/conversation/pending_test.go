// ABOUTME: Tests for the pending-continuation set
// ABOUTME: Membership semantics and idempotent removal

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingSet_AddRemoveContains(t *testing.T) {
	p := NewPendingSet()

	assert.False(t, p.Contains("room-1"))

	p.Add("room-1")
	assert.True(t, p.Contains("room-1"))
	assert.False(t, p.Contains("room-2"))

	p.Remove("room-1")
	assert.False(t, p.Contains("room-1"))
}

func TestPendingSet_RemoveAbsentIsNoOp(t *testing.T) {
	p := NewPendingSet()
	p.Remove("never-added")
	assert.False(t, p.Contains("never-added"))
}

func TestPendingSet_AddIsIdempotent(t *testing.T) {
	p := NewPendingSet()
	p.Add("room-1")
	p.Add("room-1")
	p.Remove("room-1")
	assert.False(t, p.Contains("room-1"))
}
