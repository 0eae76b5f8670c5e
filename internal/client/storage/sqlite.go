package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/GophStudy/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deck_state (
    deck_id         TEXT PRIMARY KEY,
    has_setup       INTEGER NOT NULL DEFAULT 0,
    daily_limit     INTEGER NOT NULL DEFAULT 0,
    completed_on    TEXT,
    retention_rate  REAL,
    total_attempts  INTEGER
);
`

// SQLiteStore keeps deck records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes Update within the process
}

// NewSQLiteStore opens or creates the database at path. ":memory:" is accepted for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRecord(ctx context.Context, q rowQuerier, deckID string) (models.DeckRecord, error) {
	var (
		rec       models.DeckRecord
		hasSetup  bool
		limit     int
		completed sql.NullString
		rate      sql.NullFloat64
		attempts  sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT has_setup, daily_limit, completed_on, retention_rate, total_attempts
		FROM deck_state WHERE deck_id = ?
	`, deckID).Scan(&hasSetup, &limit, &completed, &rate, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("load deck %s: %w", deckID, err)
	}

	rec.Setup = models.SetupState{HasEverBeenSetUp: hasSetup, DailyNewCardLimit: limit}
	rec.Completion.CompletedOnDate = completed.String
	if rate.Valid && attempts.Valid {
		rec.Completion.CachedStats = &models.PerformanceStats{
			RetentionRate: rate.Float64,
			TotalAttempts: int(attempts.Int64),
		}
	}
	return rec, nil
}

// Load reads the record for deckID.
func (s *SQLiteStore) Load(ctx context.Context, deckID string) (models.DeckRecord, error) {
	if deckID == "" {
		return models.DeckRecord{}, ErrEmptyDeckID
	}
	return loadRecord(ctx, s.db, deckID)
}

// Update reads, applies fn and upserts deckID's row in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, deckID string, fn func(*models.DeckRecord) error) error {
	if deckID == "" {
		return ErrEmptyDeckID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := loadRecord(ctx, tx, deckID)
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}

	var (
		completed sql.NullString
		rate      sql.NullFloat64
		attempts  sql.NullInt64
	)
	if rec.Completion.CompletedOnDate != "" {
		completed = sql.NullString{String: rec.Completion.CompletedOnDate, Valid: true}
	}
	if st := rec.Completion.CachedStats; st != nil {
		rate = sql.NullFloat64{Float64: st.RetentionRate, Valid: true}
		attempts = sql.NullInt64{Int64: int64(st.TotalAttempts), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deck_state (deck_id, has_setup, daily_limit, completed_on, retention_rate, total_attempts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (deck_id) DO UPDATE SET
			has_setup = excluded.has_setup,
			daily_limit = excluded.daily_limit,
			completed_on = excluded.completed_on,
			retention_rate = excluded.retention_rate,
			total_attempts = excluded.total_attempts
	`, deckID, rec.Setup.HasEverBeenSetUp, rec.Setup.DailyNewCardLimit, completed, rate, attempts)
	if err != nil {
		return fmt.Errorf("save deck %s: %w", deckID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
