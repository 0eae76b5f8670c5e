// Package db opens the scheduling service's PostgreSQL database and runs its
// background maintenance.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS flashcards_deck_position_idx ON flashcards (deck_id, position);

CREATE TABLE IF NOT EXISTS user_deck_settings (
    user_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    new_per_day INTEGER NOT NULL CHECK (new_per_day > 0),
    PRIMARY KEY (user_id, deck_id)
);

CREATE TABLE IF NOT EXISTS user_card_state (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL REFERENCES flashcards(id) ON DELETE CASCADE,
    last_quality SMALLINT NOT NULL,
    reviews INTEGER NOT NULL DEFAULT 0,
    first_reviewed_at TIMESTAMPTZ NOT NULL,
    last_reviewed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, card_id)
);

CREATE TABLE IF NOT EXISTS review_log (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    card_id TEXT NOT NULL REFERENCES flashcards(id) ON DELETE CASCADE,
    quality SMALLINT NOT NULL CHECK (quality BETWEEN 1 AND 5),
    reviewed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS review_log_user_deck_time_idx ON review_log (user_id, deck_id, reviewed_at);
`

// InitPostgres opens dsn, checks the connection and creates the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
