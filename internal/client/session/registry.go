package session

import (
	"sort"
	"sync"
)

// Registry keeps one Controller per deck for the lifetime of the process.
type Registry struct {
	mu    sync.Mutex
	decks map[string]*Controller
	build func(deckID string) *Controller
}

// NewRegistry returns a Registry that creates controllers with build.
func NewRegistry(build func(deckID string) *Controller) *Registry {
	return &Registry{
		decks: make(map[string]*Controller),
		build: build,
	}
}

// Get returns the deck's controller, creating it on first use.
func (r *Registry) Get(deckID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.decks[deckID]
	if !ok {
		c = r.build(deckID)
		r.decks[deckID] = c
	}
	return c
}

// Drop forgets the deck's controller. Persisted state is kept.
func (r *Registry) Drop(deckID string) {
	r.mu.Lock()
	delete(r.decks, deckID)
	r.mu.Unlock()
}

// Decks lists the decks with a live controller, sorted.
func (r *Registry) Decks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.decks))
	for id := range r.decks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
