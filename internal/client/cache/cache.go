// Package cache implements the day-scoped completion cache for study decks.
//
// Day boundaries are decided here and nowhere else: a completion record is
// valid only on the calendar day it was written, in the cache's location.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/client/storage"
	"github.com/atinyakov/GophStudy/internal/models"
)

// DayLayout is the format of CompletionRecord.CompletedOnDate.
const DayLayout = "2006-01-02"

// ErrInvalidLimit is returned by SaveSetup for limits below 1.
var ErrInvalidLimit = errors.New("daily new card limit must be at least 1")

// Clock returns the current time.
type Clock func() time.Time

// Cache reads and writes per-deck completion and setup state through a storage.Store.
type Cache struct {
	store storage.Store
	now   Clock
	loc   *time.Location
	log   *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(ca *Cache) { ca.now = c }
}

// WithLocation sets the location whose calendar defines "today".
func WithLocation(loc *time.Location) Option {
	return func(ca *Cache) { ca.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ca *Cache) { ca.log = l }
}

// New returns a Cache over store.
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		now:   time.Now,
		loc:   time.Local,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) today() string {
	return c.now().In(c.loc).Format(DayLayout)
}

// ReadAndValidate returns the deck's completion record if it was written today.
// Any other record is stale: both fields are cleared in one update and ok is false.
// A valid or absent record is only read, never rewritten.
func (c *Cache) ReadAndValidate(ctx context.Context, deckID string) (rec models.CompletionRecord, ok bool, err error) {
	today := c.today()
	valid := func(cur models.CompletionRecord) bool {
		return cur.CompletedOnDate == today && cur.CachedStats != nil
	}

	cur, err := c.store.Load(ctx, deckID)
	if err != nil {
		return models.CompletionRecord{}, false, fmt.Errorf("read completion for deck %s: %w", deckID, err)
	}
	if valid(cur.Completion) {
		return cur.Completion, true, nil
	}
	if cur.Completion.Empty() {
		return models.CompletionRecord{}, false, nil
	}

	// Re-checked under Update: another instance may have rewritten the record.
	err = c.store.Update(ctx, deckID, func(r *models.DeckRecord) error {
		if valid(r.Completion) {
			rec, ok = r.Completion, true
			return nil
		}
		if !r.Completion.Empty() {
			c.log.Debug("clearing stale completion record",
				zap.String("deck", deckID),
				zap.String("completed_on", r.Completion.CompletedOnDate),
				zap.String("today", today),
			)
		}
		r.Completion = models.CompletionRecord{}
		return nil
	})
	if err != nil {
		return models.CompletionRecord{}, false, fmt.Errorf("read completion for deck %s: %w", deckID, err)
	}
	return rec, ok, nil
}

// MarkCompleted records today's completion with the final stats.
// The deck's setup state is left untouched.
func (c *Cache) MarkCompleted(ctx context.Context, deckID string, stats models.PerformanceStats) error {
	today := c.today()
	err := c.store.Update(ctx, deckID, func(r *models.DeckRecord) error {
		st := stats
		r.Completion = models.CompletionRecord{CompletedOnDate: today, CachedStats: &st}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark deck %s completed: %w", deckID, err)
	}
	return nil
}

// Invalidate force-clears the deck's completion record regardless of its date.
func (c *Cache) Invalidate(ctx context.Context, deckID string) error {
	err := c.store.Update(ctx, deckID, func(r *models.DeckRecord) error {
		r.Completion = models.CompletionRecord{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate deck %s: %w", deckID, err)
	}
	return nil
}

// Setup returns the deck's persisted setup state.
func (c *Cache) Setup(ctx context.Context, deckID string) (models.SetupState, error) {
	rec, err := c.store.Load(ctx, deckID)
	if err != nil {
		return models.SetupState{}, fmt.Errorf("load setup for deck %s: %w", deckID, err)
	}
	return rec.Setup, nil
}

// SaveSetup marks the deck as set up with the given daily new-card limit.
func (c *Cache) SaveSetup(ctx context.Context, deckID string, limit int) error {
	if limit < 1 {
		return ErrInvalidLimit
	}
	err := c.store.Update(ctx, deckID, func(r *models.DeckRecord) error {
		r.Setup = models.SetupState{HasEverBeenSetUp: true, DailyNewCardLimit: limit}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save setup for deck %s: %w", deckID, err)
	}
	return nil
}
