// Package repository provides PostgreSQL persistence for the scheduling service.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophStudy/internal/models"
)

// pgForeignKeyViolation is the SQLSTATE for foreign_key_violation.
const pgForeignKeyViolation = "23503"

// PostgresStudyRepository stores decks, per-user settings, card state and review history.
type PostgresStudyRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresStudyRepository creates a PostgresStudyRepository using the provided *sql.DB.
func NewPostgresStudyRepository(db *sql.DB) *PostgresStudyRepository {
	return &PostgresStudyRepository{DB: db}
}

// GetSettings returns the user's daily new-card limit for a deck.
// found is false when the user has never configured the deck.
func (r *PostgresStudyRepository) GetSettings(ctx context.Context, userID, deckID string) (newPerDay int, found bool, err error) {
	err = r.DB.QueryRowContext(ctx, `
		SELECT new_per_day FROM user_deck_settings WHERE user_id = $1 AND deck_id = $2
	`, userID, deckID).Scan(&newPerDay)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("GetSettings: %w", err)
	}
	return newPerDay, true, nil
}

// UpsertSettings stores the user's daily new-card limit for a deck.
func (r *PostgresStudyRepository) UpsertSettings(ctx context.Context, userID, deckID string, newPerDay int) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_deck_settings (user_id, deck_id, new_per_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, deck_id) DO UPDATE SET new_per_day = EXCLUDED.new_per_day
	`, userID, deckID, newPerDay)
	if err != nil {
		return fmt.Errorf("UpsertSettings: %w", err)
	}
	return nil
}

// CountKnown returns how many of the deck's cards were last rated at or above threshold.
func (r *PostgresStudyRepository) CountKnown(ctx context.Context, userID, deckID string, threshold int) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_card_state s
		JOIN flashcards f ON f.id = s.card_id
		WHERE s.user_id = $1 AND f.deck_id = $2 AND s.last_quality >= $3
	`, userID, deckID, threshold).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountKnown: %w", err)
	}
	return n, nil
}

// CountIntroduced returns how many of the deck's cards the user saw for the first time at or after since.
func (r *PostgresStudyRepository) CountIntroduced(ctx context.Context, userID, deckID string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_card_state s
		JOIN flashcards f ON f.id = s.card_id
		WHERE s.user_id = $1 AND f.deck_id = $2 AND s.first_reviewed_at >= $3
	`, userID, deckID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountIntroduced: %w", err)
	}
	return n, nil
}

// DueCards returns seen cards that are not yet known and were last reviewed before since,
// in deck order.
func (r *PostgresStudyRepository) DueCards(ctx context.Context, userID, deckID string, threshold int, since time.Time) ([]models.StudyCard, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT f.id, f.front, f.back, f.position FROM flashcards f
		JOIN user_card_state s ON s.card_id = f.id AND s.user_id = $1
		WHERE f.deck_id = $2 AND s.last_quality < $3 AND s.last_reviewed_at < $4
		ORDER BY f.position, f.id
	`, userID, deckID, threshold, since)
	if err != nil {
		return nil, fmt.Errorf("DueCards: %w", err)
	}
	return scanCards(rows)
}

// NewCards returns up to limit cards the user has never reviewed, in deck order.
func (r *PostgresStudyRepository) NewCards(ctx context.Context, userID, deckID string, limit int) ([]models.StudyCard, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT f.id, f.front, f.back, f.position FROM flashcards f
		WHERE f.deck_id = $2 AND NOT EXISTS (
			SELECT 1 FROM user_card_state s WHERE s.card_id = f.id AND s.user_id = $1
		)
		ORDER BY f.position, f.id
		LIMIT $3
	`, userID, deckID, limit)
	if err != nil {
		return nil, fmt.Errorf("NewCards: %w", err)
	}
	return scanCards(rows)
}

func scanCards(rows *sql.Rows) ([]models.StudyCard, error) {
	defer rows.Close()

	var cards []models.StudyCard
	for rows.Next() {
		var (
			c   models.StudyCard
			pos int
		)
		if err := rows.Scan(&c.ID, &c.Front, &c.Back, &pos); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c.Order = &pos
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return cards, nil
}

// RecordReview appends rev to the review log and updates the user's card state
// in one transaction. A card that is unknown or belongs to another deck
// returns models.ErrCardNotFound.
func (r *PostgresStudyRepository) RecordReview(ctx context.Context, rev models.Review) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Only a card of rev.DeckID produces a row.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO review_log (id, user_id, deck_id, card_id, quality, reviewed_at)
		SELECT $1::uuid, $2::text, f.deck_id, f.id, $5::smallint, $6::timestamptz
		FROM flashcards f WHERE f.id = $4 AND f.deck_id = $3
	`, rev.ID, rev.UserID, rev.DeckID, rev.CardID, int(rev.Quality), rev.ReviewedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("%w: %s", models.ErrCardNotFound, rev.CardID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s in deck %s", models.ErrCardNotFound, rev.CardID, rev.DeckID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_card_state (user_id, card_id, last_quality, reviews, first_reviewed_at, last_reviewed_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			last_quality = EXCLUDED.last_quality,
			reviews = user_card_state.reviews + 1,
			last_reviewed_at = EXCLUDED.last_reviewed_at
	`, rev.UserID, rev.CardID, int(rev.Quality), rev.ReviewedAt)
	if err != nil {
		return fmt.Errorf("upsert card state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReviewStats counts the user's reviews of a deck at or after since, and how many
// of them were rated at or above threshold.
func (r *PostgresStudyRepository) ReviewStats(ctx context.Context, userID, deckID string, since time.Time, threshold int) (total, known int, err error) {
	err = r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE quality >= $4) FROM review_log
		WHERE user_id = $1 AND deck_id = $2 AND reviewed_at >= $3
	`, userID, deckID, since, threshold).Scan(&total, &known)
	if err != nil {
		return 0, 0, fmt.Errorf("ReviewStats: %w", err)
	}
	return total, known, nil
}

// UpsertCards inserts or updates a deck's cards within a transaction.
// A card without Order keeps its slice index as position.
func (r *PostgresStudyRepository) UpsertCards(ctx context.Context, deckID string, cards []models.StudyCard) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, c := range cards {
		pos := i
		if c.Order != nil {
			pos = *c.Order
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flashcards (id, deck_id, front, back, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				deck_id = EXCLUDED.deck_id,
				front = EXCLUDED.front,
				back = EXCLUDED.back,
				position = EXCLUDED.position
		`, c.ID, deckID, c.Front, c.Back, pos)
		if err != nil {
			return fmt.Errorf("upsert card %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
