// ABOUTME: Context policy classifying usage measurements into handoff actions
// ABOUTME: Pure function of the measurement; recomputed from scratch each exchange

package conversation

// Action is the context policy's prescription after a terminal event.
type Action int

const (
	// ActionNone: persist the usage value, nothing else.
	ActionNone Action = iota
	// ActionHandoff: summarize and reset the session without user input.
	ActionHandoff
	// ActionWarn: warn the conversation and wait for explicit confirmation.
	ActionWarn
)

// Context budget thresholds, in percent of the context window consumed.
// Both boundaries are inclusive of the higher state: exactly 50 already
// hands off, exactly 80 already warns.
const (
	handoffThreshold = 50.0
	warnThreshold    = 80.0
)

// Classify maps a usage percentage to the prescribed action. It carries no
// state across exchanges; the pending-continuation set is the only memory of
// a prior warning.
func Classify(usagePercent float64) Action {
	switch {
	case usagePercent >= warnThreshold:
		return ActionWarn
	case usagePercent >= handoffThreshold:
		return ActionHandoff
	default:
		return ActionNone
	}
}
