// ABOUTME: Tests for card, correction, and reminder persistence
// ABOUTME: Exercises both SQLiteStore and MockStore through the Store interface

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs a subtest against both implementations so the mock
// stays faithful to the real store.
func storeUnderTest(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, createTestStore(t))
	})
	t.Run("mock", func(t *testing.T) {
		fn(t, NewMockStore())
	})
}

func TestStore_CardLifecycle(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		card := &Card{
			ID:        uuid.New().String(),
			Title:     "Investigate flaky sync",
			Body:      "sync loop drops events under load",
			Column:    "backlog",
			Position:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, s.CreateCard(ctx, card))

		got, err := s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, "Investigate flaky sync", got.Title)
		assert.Equal(t, "backlog", got.Column)

		require.NoError(t, s.MoveCard(ctx, card.ID, "doing", 0))
		got, err = s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, "doing", got.Column)

		doing, err := s.ListCards(ctx, "doing")
		require.NoError(t, err)
		require.Len(t, doing, 1)

		backlog, err := s.ListCards(ctx, "backlog")
		require.NoError(t, err)
		assert.Empty(t, backlog)

		require.NoError(t, s.DeleteCard(ctx, card.ID))
		_, err = s.GetCard(ctx, card.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_MoveCard_Missing(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		err := s.MoveCard(context.Background(), "nope", "done", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Corrections(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first := &Correction{
			ID:        uuid.New().String(),
			Pattern:   "deploy",
			Guidance:  "Always mention the rollback plan.",
			CreatedAt: time.Now().UTC().Add(-time.Minute),
		}
		second := &Correction{
			ID:        uuid.New().String(),
			Pattern:   "budget",
			Guidance:  "Quote figures in EUR.",
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.CreateCorrection(ctx, first))
		require.NoError(t, s.CreateCorrection(ctx, second))

		corrections, err := s.ListCorrections(ctx)
		require.NoError(t, err)
		require.Len(t, corrections, 2)
		assert.Equal(t, "budget", corrections[0].Pattern, "newest first")

		require.NoError(t, s.DeleteCorrection(ctx, first.ID))
		corrections, err = s.ListCorrections(ctx)
		require.NoError(t, err)
		assert.Len(t, corrections, 1)
	})
}

func TestStore_Reminders_DueFiltering(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		due := &Reminder{
			ID:             uuid.New().String(),
			ConversationID: "!room:example.org",
			Text:           "standup in 5",
			DueAt:          now.Add(-time.Minute),
		}
		future := &Reminder{
			ID:             uuid.New().String(),
			ConversationID: "!room:example.org",
			Text:           "retro tomorrow",
			DueAt:          now.Add(24 * time.Hour),
		}
		require.NoError(t, s.CreateReminder(ctx, due))
		require.NoError(t, s.CreateReminder(ctx, future))

		dueList, err := s.ListDueReminders(ctx, now)
		require.NoError(t, err)
		require.Len(t, dueList, 1)
		assert.Equal(t, "standup in 5", dueList[0].Text)

		require.NoError(t, s.MarkReminderSent(ctx, due.ID, now))

		dueList, err = s.ListDueReminders(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, dueList, "sent reminders are no longer due")

		// Marking twice fails: the reminder is already sent
		err = s.MarkReminderSent(ctx, due.ID, now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
