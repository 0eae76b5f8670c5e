package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/models"
)

// applyRating submits q for the current card and advances the cursor once the
// server has accepted it. Rating the last card completes the session.
func (c *Controller) applyRating(ctx context.Context, q models.Quality) error {
	if !q.Valid() {
		return fmt.Errorf("%w: got %d", models.ErrInvalidQuality, q)
	}
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.mu.Lock()
	if c.state != StateReviewing || c.suspended || c.pending || c.cursor >= len(c.queue) {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: rate in %s", ErrInvalidTransition, st)
	}
	card := c.queue[c.cursor]
	c.mu.Unlock()

	if err := c.remote.SubmitReview(ctx, c.userID, card.ID, c.deckID, q); err != nil {
		c.log.Warn("submit review failed", zap.String("card", card.ID), zap.Error(err))
		return fmt.Errorf("rate card %s: %w", card.ID, err)
	}

	c.mu.Lock()
	c.cursor++
	c.attempts++
	done := c.cursor == len(c.queue)
	if done {
		c.pending = true
	}
	c.mu.Unlock()

	c.log.Debug("card rated", zap.String("card", card.ID), zap.Int("quality", int(q)))
	if !done {
		return nil
	}
	// Completion outlives the caller's context.
	return c.finalize(context.WithoutCancel(ctx))
}

// finalize aggregates stats, writes the completion record and enters
// StateCompleted. On failure the session stays in StateReviewing with the
// finalization pending so Retry can repeat it. Called with the op lock held.
func (c *Controller) finalize(ctx context.Context) error {
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()

	stats, err := c.agg.Aggregate(ctx, c.userID, c.deckID, attempts)
	if err != nil {
		c.log.Warn("session stats failed", zap.Error(err))
		return fmt.Errorf("complete deck %s: %w", c.deckID, err)
	}
	if err := c.cache.MarkCompleted(ctx, c.deckID, stats); err != nil {
		c.log.Warn("record completion failed", zap.Error(err))
		return fmt.Errorf("complete deck %s: %w", c.deckID, err)
	}

	c.mu.Lock()
	c.state = StateCompleted
	c.stats = &stats
	c.queue, c.cursor, c.pending = nil, 0, false
	id := c.sessionID
	c.mu.Unlock()

	c.log.Info("session completed",
		zap.String("session", id),
		zap.Int("attempts", stats.TotalAttempts),
		zap.Float64("retention", stats.RetentionRate),
	)
	return nil
}
