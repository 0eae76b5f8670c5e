package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophStudy/internal/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "study.json"))
	require.NoError(t, err)

	sq, err := NewSQLiteStore(filepath.Join(dir, "study.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": sq,
	}
}

func TestStore_LoadMissingDeck(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := s.Load(context.Background(), "D1")
			require.NoError(t, err)
			assert.Equal(t, models.DeckRecord{}, rec)
		})
	}
}

func TestStore_UpdateAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, "D1", func(r *models.DeckRecord) error {
				r.Setup = models.SetupState{HasEverBeenSetUp: true, DailyNewCardLimit: 5}
				r.Completion = models.CompletionRecord{
					CompletedOnDate: "2024-05-01",
					CachedStats:     &models.PerformanceStats{RetentionRate: 66.666666, TotalAttempts: 3},
				}
				return nil
			})
			require.NoError(t, err)

			rec, err := s.Load(ctx, "D1")
			require.NoError(t, err)
			assert.True(t, rec.Setup.HasEverBeenSetUp)
			assert.Equal(t, 5, rec.Setup.DailyNewCardLimit)
			assert.Equal(t, "2024-05-01", rec.Completion.CompletedOnDate)
			require.NotNil(t, rec.Completion.CachedStats)
			assert.Equal(t, 66.666666, rec.Completion.CachedStats.RetentionRate)
			assert.Equal(t, 3, rec.Completion.CachedStats.TotalAttempts)

			other, err := s.Load(ctx, "D2")
			require.NoError(t, err)
			assert.Equal(t, models.DeckRecord{}, other, "decks must not collide")
		})
	}
}

func TestStore_UpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(ctx, "D1", func(r *models.DeckRecord) error {
				r.Setup.HasEverBeenSetUp = true
				return nil
			}))

			err := s.Update(ctx, "D1", func(r *models.DeckRecord) error {
				r.Setup.HasEverBeenSetUp = false
				r.Completion.CompletedOnDate = "2024-05-01"
				return boom
			})
			require.ErrorIs(t, err, boom)

			rec, err := s.Load(ctx, "D1")
			require.NoError(t, err)
			assert.True(t, rec.Setup.HasEverBeenSetUp)
			assert.Empty(t, rec.Completion.CompletedOnDate)
		})
	}
}

func TestStore_ClearCompletionAsGroup(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(ctx, "D1", func(r *models.DeckRecord) error {
				r.Completion = models.CompletionRecord{
					CompletedOnDate: "2024-05-01",
					CachedStats:     &models.PerformanceStats{RetentionRate: 80, TotalAttempts: 5},
				}
				return nil
			}))
			require.NoError(t, s.Update(ctx, "D1", func(r *models.DeckRecord) error {
				r.Completion = models.CompletionRecord{}
				return nil
			}))

			rec, err := s.Load(ctx, "D1")
			require.NoError(t, err)
			assert.True(t, rec.Completion.Empty())
		})
	}
}

func TestStore_EmptyDeckID(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "")
			assert.ErrorIs(t, err, ErrEmptyDeckID)
			err = s.Update(ctx, "", func(*models.DeckRecord) error { return nil })
			assert.ErrorIs(t, err, ErrEmptyDeckID)
		})
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = s.Update(ctx, "D1", func(r *models.DeckRecord) error {
						r.Setup.DailyNewCardLimit++
						return nil
					})
				}()
			}
			wg.Wait()

			rec, err := s.Load(ctx, "D1")
			require.NoError(t, err)
			assert.Equal(t, 20, rec.Setup.DailyNewCardLimit)
		})
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Update(ctx, "D1", func(r *models.DeckRecord) error {
		r.Completion.CachedStats = &models.PerformanceStats{RetentionRate: 50}
		return nil
	}))

	rec, err := s.Load(ctx, "D1")
	require.NoError(t, err)
	rec.Completion.CachedStats.RetentionRate = 0

	again, err := s.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, again.Completion.CachedStats.RetentionRate)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "study.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Update(ctx, "D1", func(r *models.DeckRecord) error {
		r.Setup = models.SetupState{HasEverBeenSetUp: true, DailyNewCardLimit: 7}
		return nil
	}))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk struct {
		Decks map[string]models.DeckRecord `json:"decks"`
	}
	require.NoError(t, json.Unmarshal(buf, &onDisk))
	assert.Equal(t, 7, onDisk.Decks["D1"].Setup.DailyNewCardLimit)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	rec, err := reopened.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Setup.DailyNewCardLimit)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))

	_, err := NewFileStore(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestFileStore_MissingDirectory(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "missing", "study.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")
}

func TestFileStore_SharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "study.json")

	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, b.Update(ctx, "D2", func(r *models.DeckRecord) error {
		r.Completion.CompletedOnDate = "2024-05-01"
		r.Completion.CachedStats = &models.PerformanceStats{RetentionRate: 80, TotalAttempts: 5}
		return nil
	}))
	require.NoError(t, a.Update(ctx, "D1", func(r *models.DeckRecord) error {
		r.Setup = models.SetupState{HasEverBeenSetUp: true, DailyNewCardLimit: 4}
		return nil
	}))

	seen, err := a.Load(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", seen.Completion.CompletedOnDate)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	d1, err := reopened.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 4, d1.Setup.DailyNewCardLimit)
	d2, err := reopened.Load(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", d2.Completion.CompletedOnDate)
	require.NotNil(t, d2.Completion.CachedStats)
	assert.Equal(t, 5, d2.Completion.CachedStats.TotalAttempts)
}

func TestFileStore_ConcurrentInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "study.json")

	var stores []*FileStore
	for i := 0; i < 2; i++ {
		s, err := NewFileStore(path)
		require.NoError(t, err)
		stores = append(stores, s)
	}

	var wg sync.WaitGroup
	for _, s := range stores {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(s *FileStore) {
				defer wg.Done()
				_ = s.Update(ctx, "D1", func(r *models.DeckRecord) error {
					r.Setup.DailyNewCardLimit++
					return nil
				})
			}(s)
		}
	}
	wg.Wait()

	rec, err := stores[0].Load(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Setup.DailyNewCardLimit)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Update(ctx, "D1", func(r *models.DeckRecord) error {
		r.Completion.CompletedOnDate = "2024-05-01"
		return nil
	}))
	rec, err := s.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", rec.Completion.CompletedOnDate)
	assert.Nil(t, rec.Completion.CachedStats)
}
