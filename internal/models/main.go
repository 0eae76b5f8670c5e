// Package models defines the core data structures shared by the study
// controller, the scheduling client and the reference scheduling service.
package models

import (
	"errors"
	"time"
)

// StudyCard is one reviewable unit of a deck.
type StudyCard struct {
	// ID is the unique identifier for the card.
	ID string `json:"id"`
	// Front is the prompt side of the card.
	Front string `json:"front"`
	// Back is the answer side of the card.
	Back string `json:"back"`
	// Order is the ascending position used by linear browsing.
	Order *int `json:"order,omitempty"`
}

// Quality is the learner's self-reported recall strength for one card.
// It is an ordinal scale: 1 means not recalled, 5 means recalled instantly.
type Quality int

const (
	// QualityMin is the lowest accepted rating.
	QualityMin Quality = 1
	// QualityMax is the highest accepted rating.
	QualityMax Quality = 5
)

// ErrInvalidQuality is returned for ratings outside QualityMin..QualityMax.
var ErrInvalidQuality = errors.New("quality must be between 1 and 5")

// ErrCardNotFound is returned when a review names a card that does not exist.
var ErrCardNotFound = errors.New("flashcard not found")

// Valid reports whether q is on the 1..5 scale.
func (q Quality) Valid() bool {
	return q >= QualityMin && q <= QualityMax
}

// ModeMetadata is the server's view of a user's progress on a deck.
type ModeMetadata struct {
	// FirstTime is true when the user has never configured this deck.
	FirstTime bool `json:"firstTime"`
	// NewFlashcardsPerDay is the configured daily new-card limit.
	NewFlashcardsPerDay int `json:"newFlashcardsPerDay"`
	// KnowCardsCount is the number of cards the scheduler classifies as known.
	KnowCardsCount int `json:"knowCardsCount"`
}

// PerformanceStats summarizes a completed session.
type PerformanceStats struct {
	// RetentionRate is a percentage in [0,100], stored unrounded.
	RetentionRate float64 `json:"retentionRate"`
	// TotalAttempts is the number of ratings submitted.
	TotalAttempts int `json:"totalAttempts"`
}

// SetupState is the persisted per-deck setup flag and daily limit.
type SetupState struct {
	HasEverBeenSetUp  bool `json:"hasEverBeenSetUp"`
	DailyNewCardLimit int  `json:"dailyNewCardLimit,omitempty"`
}

// CompletionRecord marks a deck as finished for one calendar day.
type CompletionRecord struct {
	// CompletedOnDate is a 2006-01-02 formatted day, empty when absent.
	CompletedOnDate string `json:"completedOnDate,omitempty"`
	// CachedStats holds the stats computed when the session completed.
	CachedStats *PerformanceStats `json:"cachedStats,omitempty"`
}

// Empty reports whether neither field is set.
func (r CompletionRecord) Empty() bool {
	return r.CompletedOnDate == "" && r.CachedStats == nil
}

// DeckRecord is everything persisted locally for one deck.
type DeckRecord struct {
	Setup      SetupState       `json:"setup"`
	Completion CompletionRecord `json:"completion"`
}

// Review is one rating recorded by the scheduling service.
type Review struct {
	ID         string
	UserID     string
	DeckID     string
	CardID     string
	Quality    Quality
	ReviewedAt time.Time
}
