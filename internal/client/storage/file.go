package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/GophStudy/internal/models"
)

// DefaultFile is the file name used when no path is configured.
const DefaultFile = "study.json"

// FileStore keeps all deck records in one JSON file.
//
// Several processes may share the file. Every call takes an OS lock on a
// sidecar "<path>.lock" file and works on what is currently on disk, so an
// Update only replaces the deck it was asked to change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileContents struct {
	Decks map[string]models.DeckRecord `json:"decks"`
}

// NewFileStore opens the JSON file at path. A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFile
	}
	fs := &FileStore{path: path}

	unlock, err := lockFile(fs.lockPath(), false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if _, err := fs.read(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) lockPath() string { return fs.path + ".lock" }

// read decodes the file. Caller must hold the file lock.
func (fs *FileStore) read() (map[string]models.DeckRecord, error) {
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.DeckRecord), nil
		}
		return nil, fmt.Errorf("open %s: %w", fs.path, err)
	}
	defer f.Close()

	var c fileContents
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fs.path, err)
	}
	if c.Decks == nil {
		c.Decks = make(map[string]models.DeckRecord)
	}
	return c.Decks, nil
}

// save writes decks to a temp file and renames it over the target.
// Caller must hold the exclusive file lock.
func (fs *FileStore) save(decks map[string]models.DeckRecord) error {
	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".study-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fileContents{Decks: decks}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", fs.path, err)
	}
	return nil
}

// Load reads the record for deckID from disk.
func (fs *FileStore) Load(_ context.Context, deckID string) (models.DeckRecord, error) {
	if deckID == "" {
		return models.DeckRecord{}, ErrEmptyDeckID
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	unlock, err := lockFile(fs.lockPath(), false)
	if err != nil {
		return models.DeckRecord{}, err
	}
	defer unlock()

	decks, err := fs.read()
	if err != nil {
		return models.DeckRecord{}, err
	}
	return decks[deckID], nil
}

// Update re-reads the file under an exclusive lock, applies fn to deckID's
// record and writes the file back with the other decks as found on disk.
func (fs *FileStore) Update(_ context.Context, deckID string, fn func(*models.DeckRecord) error) error {
	if deckID == "" {
		return ErrEmptyDeckID
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	unlock, err := lockFile(fs.lockPath(), true)
	if err != nil {
		return err
	}
	defer unlock()

	decks, err := fs.read()
	if err != nil {
		return err
	}
	rec := decks[deckID]
	if err := fn(&rec); err != nil {
		return err
	}
	decks[deckID] = rec
	return fs.save(decks)
}

// Close is a no-op; FileStore holds no open handles between calls.
func (fs *FileStore) Close() error { return nil }
