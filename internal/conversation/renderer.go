// ABOUTME: Stream renderer turning agent events into minimal send/edit calls
// ABOUTME: Buffers text and flushes on size or paragraph breaks; edits in place

package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/chat"
)

// flushThreshold is the accumulated size, in characters, above which
// buffered text becomes visible. Flushing on a threshold rather than per
// fragment keeps edit volume low against a rate-limited surface while
// keeping latency to first visible output short.
const flushThreshold = 100

// paragraphBreak in a fragment also forces a flush.
const paragraphBreak = "\n\n"

// RenderResult is what one rendered exchange yields for the caller.
type RenderResult struct {
	// Usage is the terminal measurement; nil when the agent reported none
	// or the exchange ended in an error event.
	Usage *agent.Usage
	// SessionID is the newly bound agent session, empty if none was emitted.
	SessionID string
	// FullText is the complete response text across all message segments,
	// kept for voice synthesis.
	FullText string
	// Errored is true when the exchange ended with an error event.
	Errored bool
}

// Renderer consumes agent event sequences and drives the chat surface.
type Renderer struct {
	surface chat.Surface
	logger  *slog.Logger
}

// NewRenderer creates a stream renderer over the given surface.
func NewRenderer(surface chat.Surface, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		surface: surface,
		logger:  logger.With("component", "renderer"),
	}
}

// exchangeState is the per-exchange mutable rendering state.
type exchangeState struct {
	acc       strings.Builder // text of the current message segment
	fullText  strings.Builder
	messageID string // outbound message being edited; empty means next flush sends
	flushed   int    // bytes of acc already made visible
}

// Render consumes one event sequence to its terminal event. Edit failures
// are swallowed (best-effort live updates); send failures are logged and the
// next flush retries as a fresh send.
func (r *Renderer) Render(ctx context.Context, conversationID string, events <-chan agent.Event) *RenderResult {
	result := &RenderResult{}
	state := &exchangeState{}

	for evt := range events {
		switch evt.Type {
		case agent.EventText:
			if evt.SessionID != "" {
				result.SessionID = evt.SessionID
			}
			state.acc.WriteString(evt.Text)
			state.fullText.WriteString(evt.Text)
			if state.acc.Len() > flushThreshold || strings.Contains(evt.Text, paragraphBreak) {
				r.flush(ctx, conversationID, state)
			}

		case agent.EventToolCall:
			if state.acc.Len() > 0 {
				r.flush(ctx, conversationID, state)
			}
			// Text after a tool call starts a fresh message rather than
			// editing the pre-tool-call one.
			state.messageID = ""
			state.acc.Reset()
			state.flushed = 0
			r.notifyTool(ctx, conversationID, evt.Tool)
			r.typing(ctx, conversationID)

		case agent.EventToolResult:
			r.typing(ctx, conversationID)

		case agent.EventResult:
			if evt.SessionID != "" {
				result.SessionID = evt.SessionID
			}
			r.flush(ctx, conversationID, state)
			result.Usage = evt.Usage
			result.FullText = state.fullText.String()
			drain(events)
			return result

		case agent.EventError:
			msg := evt.Err
			if msg == "" {
				// Matrix rejects empty message bodies.
				msg = "The agent failed without reporting an error."
			}
			if _, err := r.surface.Send(ctx, conversationID, msg); err != nil {
				r.logger.Error("failed to render agent error", "conversation", conversationID, "error", err)
			}
			result.Errored = true
			result.FullText = state.fullText.String()
			drain(events)
			return result
		}
	}

	// Channel closed without a terminal event; treat what we have as final.
	r.flush(ctx, conversationID, state)
	result.FullText = state.fullText.String()
	return result
}

// flush makes buffered text visible: the first flush of a segment sends a
// new message, later flushes edit it with the full accumulated text. Text
// that is already visible is never re-sent or re-edited; a failed call
// leaves the flushed mark untouched so the next flush retries.
func (r *Renderer) flush(ctx context.Context, conversationID string, state *exchangeState) {
	if state.acc.Len() == 0 || state.acc.Len() == state.flushed {
		return
	}

	text := state.acc.String()
	if state.messageID == "" {
		id, err := r.surface.Send(ctx, conversationID, text)
		if err != nil {
			r.logger.Error("send failed, will retry on next flush", "conversation", conversationID, "error", err)
			return
		}
		state.messageID = id
		state.flushed = len(text)
		return
	}

	if err := r.surface.Edit(ctx, conversationID, state.messageID, text); err != nil {
		// Best-effort live update: stale visible text beats an aborted turn.
		r.logger.Warn("edit failed, continuing with stale message", "conversation", conversationID, "error", err)
		return
	}
	state.flushed = len(text)
}

// notifyTool renders a short tool-call notice as its own message.
func (r *Renderer) notifyTool(ctx context.Context, conversationID string, tool *agent.ToolCall) {
	name := "tool"
	if tool != nil && tool.Name != "" {
		name = tool.Name
	}
	if _, err := r.surface.Send(ctx, conversationID, "⚙ "+name); err != nil {
		r.logger.Warn("tool notification failed", "conversation", conversationID, "tool", name, "error", err)
	}
}

func (r *Renderer) typing(ctx context.Context, conversationID string) {
	if err := r.surface.Typing(ctx, conversationID); err != nil {
		r.logger.Debug("typing refresh failed", "conversation", conversationID, "error", err)
	}
}

// drain consumes any events after the terminal one so a misbehaving producer
// cannot block. The sequence contract says there are none.
func drain(events <-chan agent.Event) {
	go func() {
		for range events {
		}
	}()
}
