// ABOUTME: Tests for the context policy's threshold boundaries
// ABOUTME: Both thresholds are inclusive of the higher state

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		want    Action
	}{
		{"zero", 0, ActionNone},
		{"just below handoff", 49.999, ActionNone},
		{"exactly at handoff", 50.0, ActionHandoff},
		{"between thresholds", 65.0, ActionHandoff},
		{"just below warn", 79.999, ActionHandoff},
		{"exactly at warn", 80.0, ActionWarn},
		{"saturated", 100.0, ActionWarn},
		{"over window", 130.0, ActionWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.percent))
		})
	}
}
