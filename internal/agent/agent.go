// ABOUTME: Agent event model and Channel interface
// ABOUTME: One Open call yields one finite event sequence ending in exactly one terminal event

package agent

import "context"

// EventType identifies the kind of event in an exchange stream.
type EventType string

const (
	// EventText is an incremental output fragment
	EventText EventType = "text"
	// EventToolCall signals the agent is invoking a side-effecting tool
	EventToolCall EventType = "tool_call"
	// EventToolResult is informational tool output
	EventToolResult EventType = "tool_result"
	// EventResult terminates a sequence, optionally carrying usage
	EventResult EventType = "result"
	// EventError terminates a sequence with a rendered error message
	EventError EventType = "error"
)

// Usage reports token consumption for a completed exchange.
type Usage struct {
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	ContextWindow int `json:"context_window"`
}

// Percent returns the share of the context window consumed, as a percentage.
// Returns 0 when the context window is unknown.
func (u *Usage) Percent() float64 {
	if u == nil || u.ContextWindow <= 0 {
		return 0
	}
	return float64(u.InputTokens+u.OutputTokens) / float64(u.ContextWindow) * 100
}

// ToolCall describes a tool invocation announced by the agent.
type ToolCall struct {
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

// Event is one element of an exchange stream. Type selects which fields
// are meaningful.
type Event struct {
	Type EventType

	// Text fragment (EventText) or full error message (EventError)
	Text string
	// SessionID binds the agent session; emitted at most once per sequence
	SessionID string
	// Tool descriptor (EventToolCall)
	Tool *ToolCall
	// Usage measurement (EventResult); nil when unavailable
	Usage *Usage
	// Err is the error message (EventError)
	Err string
}

// Terminal reports whether the event ends its sequence.
func (e Event) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// Attachment is binary input forwarded to the agent with the prompt.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// OpenRequest describes one exchange.
type OpenRequest struct {
	Prompt         string
	WorkingContext string
	// ResumeSessionID is a resume hint; empty starts a fresh session
	ResumeSessionID string
	Attachments     []Attachment
}

// Channel is the boundary to the agent process. Open returns a lazy, finite,
// non-restartable sequence of events terminated by exactly one EventResult
// or EventError; the channel is closed after the terminal event.
type Channel interface {
	Open(ctx context.Context, req OpenRequest) (<-chan Event, error)
	// Summarize produces a natural-language handoff summary for a bound session.
	Summarize(ctx context.Context, sessionID, workingContext string) (string, error)
}
