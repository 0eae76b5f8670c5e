// Package session drives one deck's daily study session.
//
// A Controller is a state machine fed with explicit events (EnterTab,
// ConfirmSetup, Rate, LeaveTab, Retry, ChangeLimit). It owns the review
// queue and cursor, talks to the remote scheduler through the Remote
// interface and records same-day completion through the completion cache.
package session

import (
	"context"
	"errors"

	"github.com/atinyakov/GophStudy/internal/client/cache"
	"github.com/atinyakov/GophStudy/internal/models"
)

// State is a lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateEntering
	StateSetup
	StateResuming
	StateLoading
	StateReviewing
	StateEmpty
	StateCompleted
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateEntering:  "entering",
	StateSetup:     "setup",
	StateResuming:  "resuming",
	StateLoading:   "loading",
	StateReviewing: "reviewing",
	StateEmpty:     "empty",
	StateCompleted: "completed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// DefaultDailyLimit is suggested in the setup dialog when nothing else is known.
const DefaultDailyLimit = 20

var (
	// ErrBusy is returned when another operation is already in flight for the deck.
	ErrBusy = errors.New("another operation is in progress")
	// ErrInvalidTransition is returned for events the current state does not accept.
	ErrInvalidTransition = errors.New("event not allowed in current state")
	// ErrInvalidLimit is returned for daily limits below 1.
	ErrInvalidLimit = cache.ErrInvalidLimit
)

// Remote is the subset of the scheduling service the controller consumes.
type Remote interface {
	StatsSource
	ModeData(ctx context.Context, userID, deckID string) (models.ModeMetadata, error)
	SetNewFlashcardsPerDay(ctx context.Context, userID, deckID string, n int) error
	StartSession(ctx context.Context, userID, deckID string) ([]models.StudyCard, error)
	SubmitReview(ctx context.Context, userID, cardID, deckID string, q models.Quality) error
}

// Event is an input to Controller.Handle.
type Event interface {
	event()
}

// EnterTab is sent when the study tab becomes visible.
type EnterTab struct{}

// LeaveTab is sent when the study tab is hidden. It suspends the session.
type LeaveTab struct{}

// ConfirmSetup carries the daily limit chosen in the setup dialog.
type ConfirmSetup struct{ Limit int }

// Rate submits a rating for the current card.
type Rate struct{ Quality models.Quality }

// Retry re-runs the last failed or empty step.
type Retry struct{}

// ChangeLimit sets a new daily limit and restarts today's session.
type ChangeLimit struct{ Limit int }

func (EnterTab) event()     {}
func (LeaveTab) event()     {}
func (ConfirmSetup) event() {}
func (Rate) event()         {}
func (Retry) event()        {}
func (ChangeLimit) event()  {}

// Snapshot is a read-only view of a Controller for renderers.
type Snapshot struct {
	DeckID    string
	State     State
	SessionID string

	// Card is the card awaiting a rating; nil outside StateReviewing.
	Card     *models.StudyCard
	Cursor   int
	QueueLen int

	// Stats is set in StateCompleted.
	Stats *models.PerformanceStats
	// Notice is the day-boundary information shown when resuming.
	Notice *models.ModeMetadata
	// SuggestedLimit prefills the setup dialog.
	SuggestedLimit int

	// Busy is true while a remote call is in flight.
	Busy bool
	// NeedsRetry is true when only Retry (or ChangeLimit) can move the session on.
	NeedsRetry bool
}
