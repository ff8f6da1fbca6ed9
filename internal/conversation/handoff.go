// ABOUTME: Handoff coordinator: summarize the bound session and reset it
// ABOUTME: A failed summary is surfaced to the user, never silently dropped

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/chat"
	"github.com/loomhq/loom/internal/store"
)

// summaryFailureNotice is shown when the handoff summary cannot be produced.
// The user must know continuity was not preserved.
const summaryFailureNotice = "⚠ Could not produce a handoff summary. The next session will start without carry-over context."

// Coordinator performs summarize-and-reset handoffs.
type Coordinator struct {
	channel agent.Channel
	store   store.SessionStore
	surface chat.Surface
	logger  *slog.Logger
}

// NewCoordinator creates a handoff coordinator.
func NewCoordinator(channel agent.Channel, sessions store.SessionStore, surface chat.Surface, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		channel: channel,
		store:   sessions,
		surface: surface,
		logger:  logger.With("component", "handoff"),
	}
}

// SummarizeAndReset requests a carry-over summary from the bound session,
// replaces the session record with a fresh one (session id cleared, usage
// zeroed, working context preserved), and renders the summary to the
// conversation. Returns the summary for seeding a follow-up exchange.
func (c *Coordinator) SummarizeAndReset(ctx context.Context, conversationID, agentSessionID, workingContext string) (string, error) {
	summary, err := c.channel.Summarize(ctx, agentSessionID, workingContext)
	if err != nil {
		c.logger.Error("handoff summary request failed",
			"conversation", conversationID,
			"agent_session", agentSessionID,
			"error", err,
		)
		if _, sendErr := c.surface.Send(ctx, conversationID, summaryFailureNotice); sendErr != nil {
			c.logger.Error("failed to notify user of summary failure", "conversation", conversationID, "error", sendErr)
		}
		return "", fmt.Errorf("%w: %v", ErrSummary, err)
	}

	if err := c.store.DeleteSession(ctx, conversationID); err != nil {
		return "", fmt.Errorf("%w: deleting session: %v", ErrPersistence, err)
	}
	if err := c.store.SaveSession(ctx, &store.ConversationSession{
		ConversationID:      conversationID,
		AgentSessionID:      "",
		WorkingContext:      workingContext,
		LastActiveAt:        time.Now(),
		ContextUsagePercent: 0,
	}); err != nil {
		return "", fmt.Errorf("%w: resetting session: %v", ErrPersistence, err)
	}

	c.logger.Info("session handed off",
		"conversation", conversationID,
		"previous_agent_session", agentSessionID,
	)

	if _, err := c.surface.Send(ctx, conversationID, "📋 Handoff summary:\n\n"+summary); err != nil {
		c.logger.Warn("failed to render handoff summary", "conversation", conversationID, "error", err)
	}

	return summary, nil
}
