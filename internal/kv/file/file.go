// Package file provides a kv.Store persisted as a single JSON document on the
// local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/kv"
)

const (
	stateFileName = "state.json"
	stateVersion  = 1
)

// Document is the on-disk layout of the state file.
type Document struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// Store manages a state file on the local filesystem.
type Store struct {
	mu      sync.Mutex
	baseDir string
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a new file backed store.
// If baseDir is empty, uses ~/.jobdash/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".jobdash")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	log.Debug().Str("baseDir", baseDir).Msg("file store initialized")

	return store, nil
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.baseDir, stateFileName)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.loadDocument()
	if err != nil {
		return "", err
	}

	v, ok := doc.Entries[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

// Batch loads the document, applies fn's writes to a copy and saves it with
// a single atomic rename.
func (s *Store) Batch(ctx context.Context, fn func(tx kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, reset, err := s.loadDocument()
	if err != nil {
		return err
	}

	tx := &fileTx{entries: maps.Clone(doc.Entries), dirty: reset}
	if err := fn(tx); err != nil {
		return err
	}

	if !tx.dirty {
		return nil
	}

	doc.Entries = tx.entries
	return s.saveDocument(doc)
}

func (s *Store) Close() error {
	return nil
}

func emptyDocument() *Document {
	return &Document{Version: stateVersion, Entries: make(map[string]string)}
}

// loadDocument reads the state file. A missing file is an empty document.
// An unparseable file is also treated as empty, with reset set so the next
// Batch overwrites it.
func (s *Store) loadDocument() (doc *Document, reset bool, err error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyDocument(), false, nil
		}
		return nil, false, fmt.Errorf("failed to read state: %w", err)
	}

	doc = &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		log.Warn().Err(err).Str("path", s.Path()).Msg("discarding unreadable state file")
		return emptyDocument(), true, nil
	}

	// Ensure entries map is initialized
	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}

	return doc, false, nil
}

// saveDocument writes the state file atomically.
func (s *Store) saveDocument(doc *Document) error {
	doc.Version = stateVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temp file first
	statePath := s.Path()
	tempPath := statePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

type fileTx struct {
	entries map[string]string
	dirty   bool
}

func (tx *fileTx) Put(key, value string) error {
	tx.entries[key] = value
	tx.dirty = true
	return nil
}

func (tx *fileTx) Delete(key string) error {
	if _, ok := tx.entries[key]; ok {
		delete(tx.entries, key)
		tx.dirty = true
	}
	return nil
}
