// ABOUTME: Reminder scheduler polling for due reminders and delivering them
// ABOUTME: Marks each reminder sent exactly once; delivery failures retry next poll

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/loomhq/loom/internal/chat"
	"github.com/loomhq/loom/internal/store"
)

// Scheduler delivers due reminders to their conversations on a fixed poll
// interval. A reminder is marked sent only after delivery succeeds, so a
// failed send is retried on the next tick.
type Scheduler struct {
	store    store.ReminderStore
	surface  chat.Surface
	interval time.Duration
	logger   *slog.Logger
}

// New creates a reminder scheduler.
func New(reminders store.ReminderStore, surface chat.Surface, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:    reminders,
		surface:  surface,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run polls until the context is cancelled. One poll runs immediately on
// start so restarts do not delay overdue reminders by a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("reminder scheduler started", "interval", s.interval)

	s.deliverDue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.deliverDue(ctx)
		}
	}
}

// deliverDue sends every reminder due at poll time.
func (s *Scheduler) deliverDue(ctx context.Context) {
	now := time.Now()
	due, err := s.store.ListDueReminders(ctx, now)
	if err != nil {
		s.logger.Error("listing due reminders failed", "error", err)
		return
	}

	for _, r := range due {
		if _, err := s.surface.Send(ctx, r.ConversationID, "⏰ Reminder: "+r.Text); err != nil {
			s.logger.Warn("reminder delivery failed, will retry",
				"reminder", r.ID,
				"conversation", r.ConversationID,
				"error", err,
			)
			continue
		}
		if err := s.store.MarkReminderSent(ctx, r.ID, now); err != nil {
			s.logger.Error("marking reminder sent failed", "reminder", r.ID, "error", err)
		}
	}
}
