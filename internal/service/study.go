// Package service implements the scheduling service's business rules,
// delegating persistence to a StudyRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/GophStudy/internal/models"
)

// DefaultKnowThreshold is the lowest rating at which a card counts as known.
const DefaultKnowThreshold = 4

var (
	// ErrNoCardsAvailable is returned by StartSession when nothing is due and no new cards remain.
	ErrNoCardsAvailable = errors.New("no flashcards available")
	// ErrInvalidLimit is returned for a daily new-card limit below 1.
	ErrInvalidLimit = errors.New("newFlashcardsPerDay must be at least 1")
)

// StudyRepository defines the persistence operations needed by the StudyService.
type StudyRepository interface {
	// GetSettings returns the daily limit; found is false for an unconfigured deck.
	GetSettings(ctx context.Context, userID, deckID string) (newPerDay int, found bool, err error)
	UpsertSettings(ctx context.Context, userID, deckID string, newPerDay int) error
	CountKnown(ctx context.Context, userID, deckID string, threshold int) (int, error)
	CountIntroduced(ctx context.Context, userID, deckID string, since time.Time) (int, error)
	DueCards(ctx context.Context, userID, deckID string, threshold int, since time.Time) ([]models.StudyCard, error)
	NewCards(ctx context.Context, userID, deckID string, limit int) ([]models.StudyCard, error)
	RecordReview(ctx context.Context, rev models.Review) error
	ReviewStats(ctx context.Context, userID, deckID string, since time.Time, threshold int) (total, known int, err error)
}

// StudyService answers the five scheduling operations.
type StudyService struct {
	repo          StudyRepository
	knowThreshold int
	now           func() time.Time
	loc           *time.Location
	newID         func() string
}

// Option configures a StudyService.
type Option func(*StudyService)

// WithKnowThreshold sets the rating at which a card counts as known.
func WithKnowThreshold(q int) Option {
	return func(s *StudyService) { s.knowThreshold = q }
}

// WithClock overrides time.Now and the location that defines a day.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *StudyService) {
		s.now = now
		s.loc = loc
	}
}

// NewStudyService constructs a StudyService over repo.
func NewStudyService(repo StudyRepository, opts ...Option) *StudyService {
	s := &StudyService{
		repo:          repo,
		knowThreshold: DefaultKnowThreshold,
		now:           time.Now,
		loc:           time.UTC,
		newID:         uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// startOfDay returns midnight of the current day in the service location.
func (s *StudyService) startOfDay() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// ModeData reports whether the user has configured the deck, the daily limit
// and how many cards are known.
func (s *StudyService) ModeData(ctx context.Context, userID, deckID string) (models.ModeMetadata, error) {
	n, found, err := s.repo.GetSettings(ctx, userID, deckID)
	if err != nil {
		return models.ModeMetadata{}, err
	}
	if !found {
		return models.ModeMetadata{FirstTime: true}, nil
	}

	known, err := s.repo.CountKnown(ctx, userID, deckID, s.knowThreshold)
	if err != nil {
		return models.ModeMetadata{}, err
	}
	return models.ModeMetadata{NewFlashcardsPerDay: n, KnowCardsCount: known}, nil
}

// SetNewFlashcardsPerDay stores the daily new-card limit.
func (s *StudyService) SetNewFlashcardsPerDay(ctx context.Context, userID, deckID string, n int) error {
	if n < 1 {
		return ErrInvalidLimit
	}
	return s.repo.UpsertSettings(ctx, userID, deckID, n)
}

// StartSession builds today's queue: due cards first, then new cards up to
// what is left of the daily allowance.
func (s *StudyService) StartSession(ctx context.Context, userID, deckID string) ([]models.StudyCard, error) {
	n, found, err := s.repo.GetSettings(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoCardsAvailable
	}

	today := s.startOfDay()
	due, err := s.repo.DueCards(ctx, userID, deckID, s.knowThreshold, today)
	if err != nil {
		return nil, err
	}

	introduced, err := s.repo.CountIntroduced(ctx, userID, deckID, today)
	if err != nil {
		return nil, err
	}
	queue := due
	if left := n - introduced; left > 0 {
		fresh, err := s.repo.NewCards(ctx, userID, deckID, left)
		if err != nil {
			return nil, err
		}
		queue = append(queue, fresh...)
	}

	if len(queue) == 0 {
		return nil, ErrNoCardsAvailable
	}
	return queue, nil
}

// SubmitReview records one rating.
func (s *StudyService) SubmitReview(ctx context.Context, userID, cardID, deckID string, q models.Quality) error {
	if !q.Valid() {
		return models.ErrInvalidQuality
	}
	rev := models.Review{
		ID:         s.newID(),
		UserID:     userID,
		DeckID:     deckID,
		CardID:     cardID,
		Quality:    q,
		ReviewedAt: s.now().UTC(),
	}
	if err := s.repo.RecordReview(ctx, rev); err != nil {
		return fmt.Errorf("record review: %w", err)
	}
	return nil
}

// PerformanceStats summarizes today's reviews of the deck.
// RetentionRate is the share of reviews rated at or above the know threshold.
func (s *StudyService) PerformanceStats(ctx context.Context, userID, deckID string) (models.PerformanceStats, error) {
	total, known, err := s.repo.ReviewStats(ctx, userID, deckID, s.startOfDay(), s.knowThreshold)
	if err != nil {
		return models.PerformanceStats{}, err
	}
	stats := models.PerformanceStats{TotalAttempts: total}
	if total > 0 {
		stats.RetentionRate = float64(known) / float64(total) * 100
	}
	return stats, nil
}
