package storage

import (
	"context"
	"sync"

	"github.com/atinyakov/GophStudy/internal/models"
)

// MemoryStore keeps deck records in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	decks map[string]models.DeckRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decks: make(map[string]models.DeckRecord)}
}

// Load returns a copy of the record for deckID.
func (m *MemoryStore) Load(_ context.Context, deckID string) (models.DeckRecord, error) {
	if deckID == "" {
		return models.DeckRecord{}, ErrEmptyDeckID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecord(m.decks[deckID]), nil
}

// Update applies fn to deckID's record under the store mutex.
func (m *MemoryStore) Update(_ context.Context, deckID string, fn func(*models.DeckRecord) error) error {
	if deckID == "" {
		return ErrEmptyDeckID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := cloneRecord(m.decks[deckID])
	if err := fn(&rec); err != nil {
		return err
	}
	m.decks[deckID] = rec
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// cloneRecord copies rec so callers never share the CachedStats pointer with the store.
func cloneRecord(rec models.DeckRecord) models.DeckRecord {
	if rec.Completion.CachedStats != nil {
		s := *rec.Completion.CachedStats
		rec.Completion.CachedStats = &s
	}
	return rec
}
