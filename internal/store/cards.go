// ABOUTME: SQLite methods for kanban cards and corrections
// ABOUTME: Plain keyed-table CRUD; no business logic beyond column ordering

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateCard inserts a new card
func (s *SQLiteStore) CreateCard(ctx context.Context, card *Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, title, body, column_name, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.Title, card.Body, card.Column, card.Position, card.CreatedAt, card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating card: %w", err)
	}
	return nil
}

// GetCard returns a card by ID, or ErrNotFound
func (s *SQLiteStore) GetCard(ctx context.Context, id string) (*Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, column_name, position, created_at, updated_at
		FROM cards WHERE id = ?`, id)

	var card Card
	err := row.Scan(&card.ID, &card.Title, &card.Body, &card.Column, &card.Position,
		&card.CreatedAt, &card.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying card: %w", err)
	}
	return &card, nil
}

// ListCards returns cards, optionally filtered by column, ordered by position
func (s *SQLiteStore) ListCards(ctx context.Context, column string) ([]*Card, error) {
	query := `
		SELECT id, title, body, column_name, position, created_at, updated_at
		FROM cards`
	args := []any{}
	if column != "" {
		query += ` WHERE column_name = ?`
		args = append(args, column)
	}
	query += ` ORDER BY column_name, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.ID, &card.Title, &card.Body, &card.Column, &card.Position,
			&card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		cards = append(cards, &card)
	}
	return cards, rows.Err()
}

// MoveCard updates a card's column and position
func (s *SQLiteStore) MoveCard(ctx context.Context, id, column string, position int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET column_name = ?, position = ?, updated_at = ?
		WHERE id = ?`, column, position, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("moving card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("moving card: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCard removes a card by ID
func (s *SQLiteStore) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting card: %w", err)
	}
	return nil
}

// CreateCorrection inserts a new correction
func (s *SQLiteStore) CreateCorrection(ctx context.Context, c *Correction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections (id, pattern, guidance, created_at)
		VALUES (?, ?, ?, ?)`, c.ID, c.Pattern, c.Guidance, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating correction: %w", err)
	}
	return nil
}

// ListCorrections returns all corrections, newest first
func (s *SQLiteStore) ListCorrections(ctx context.Context) ([]*Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, guidance, created_at
		FROM corrections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	defer rows.Close()

	var corrections []*Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.ID, &c.Pattern, &c.Guidance, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		corrections = append(corrections, &c)
	}
	return corrections, rows.Err()
}

// DeleteCorrection removes a correction by ID
func (s *SQLiteStore) DeleteCorrection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM corrections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting correction: %w", err)
	}
	return nil
}
