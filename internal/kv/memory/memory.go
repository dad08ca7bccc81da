// Package memory provides a thread-safe in-memory kv.Store.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/wolfeidau/jobdash/internal/kv"
)

// Store is a thread-safe in-memory implementation of kv.Store.
// Data is lost when the process exits, so this is meant for tests and demos.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

// Batch applies fn's writes to a copy of the data and swaps it in on success.
func (s *Store) Batch(ctx context.Context, fn func(tx kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := maps.Clone(s.data)
	if data == nil {
		data = make(map[string]string)
	}

	tx := &memoryTx{data: data}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type memoryTx struct {
	data map[string]string
}

func (tx *memoryTx) Put(key, value string) error {
	tx.data[key] = value
	return nil
}

func (tx *memoryTx) Delete(key string) error {
	delete(tx.data, key)
	return nil
}
