package session

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/atinyakov/GophStudy/internal/models"
)

// StatsSource provides the scheduler's authoritative post-session statistics.
type StatsSource interface {
	PerformanceStats(ctx context.Context, userID, deckID string) (models.PerformanceStats, error)
}

// Aggregator turns a finished session into PerformanceStats.
type Aggregator struct {
	src StatsSource
}

// NewAggregator returns an Aggregator reading from src.
func NewAggregator(src StatsSource) Aggregator {
	return Aggregator{src: src}
}

// Aggregate combines the server's retention rate with the local attempt count.
// The rate is kept unrounded and clamped into [0,100].
func (a Aggregator) Aggregate(ctx context.Context, userID, deckID string, attempts int) (models.PerformanceStats, error) {
	srv, err := a.src.PerformanceStats(ctx, userID, deckID)
	if err != nil {
		return models.PerformanceStats{}, fmt.Errorf("performance stats: %w", err)
	}

	rate := srv.RetentionRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return models.PerformanceStats{}, fmt.Errorf("performance stats: invalid retention rate %v", rate)
	}
	rate = math.Min(100, math.Max(0, rate))

	return models.PerformanceStats{RetentionRate: rate, TotalAttempts: attempts}, nil
}

// FormatRetention renders a retention rate as a whole percentage.
func FormatRetention(rate float64) string {
	return strconv.Itoa(int(math.Round(rate))) + "%"
}
