// Package storage persists per-deck study state on the client.
//
// Every backend keys records by deck id and applies Update atomically for a
// single record, so a reader never observes a half-written DeckRecord.
package storage

import (
	"context"
	"errors"

	"github.com/atinyakov/GophStudy/internal/models"
)

// ErrEmptyDeckID is returned when a deck id is empty.
var ErrEmptyDeckID = errors.New("deck id must not be empty")

// Store is the persisted key-value port used by the daily completion cache.
type Store interface {
	// Load returns the record for deckID, or a zero record if none exists.
	Load(ctx context.Context, deckID string) (models.DeckRecord, error)
	// Update loads the record for deckID, applies fn and persists the result
	// as one atomic step. If fn returns an error nothing is written.
	Update(ctx context.Context, deckID string, fn func(*models.DeckRecord) error) error
	// Close releases backend resources.
	Close() error
}
