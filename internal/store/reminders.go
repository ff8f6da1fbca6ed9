// ABOUTME: SQLite methods for scheduled reminders
// ABOUTME: Due-reminder queries power the proactive message scheduler

package store

import (
	"context"
	"fmt"
	"time"
)

// CreateReminder inserts a new reminder
func (s *SQLiteStore) CreateReminder(ctx context.Context, r *Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, conversation_id, text, due_at, sent_at)
		VALUES (?, ?, ?, ?, ?)`, r.ID, r.ConversationID, r.Text, r.DueAt, r.SentAt)
	if err != nil {
		return fmt.Errorf("creating reminder: %w", err)
	}
	return nil
}

// ListDueReminders returns unsent reminders due at or before now, oldest first
func (s *SQLiteStore) ListDueReminders(ctx context.Context, now time.Time) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, text, due_at, sent_at
		FROM reminders
		WHERE sent_at IS NULL AND due_at <= ?
		ORDER BY due_at`, now)
	if err != nil {
		return nil, fmt.Errorf("listing due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Text, &r.DueAt, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		reminders = append(reminders, &r)
	}
	return reminders, rows.Err()
}

// MarkReminderSent records delivery time for a reminder
func (s *SQLiteStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("marking reminder sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking reminder sent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReminder removes a reminder by ID
func (s *SQLiteStore) DeleteReminder(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting reminder: %w", err)
	}
	return nil
}
