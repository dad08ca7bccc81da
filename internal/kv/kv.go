// Package kv provides the durable string key-value storage the session is
// persisted to, along with backends for memory, a local file, bbolt and redis.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// Tx groups writes applied atomically by Store.Batch.
type Tx interface {
	// Put sets key to value.
	Put(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Store is a string to string key-value store that survives process restarts.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Batch runs fn and commits all of its writes together. If fn returns an
	// error none of the writes are applied.
	Batch(ctx context.Context, fn func(tx Tx) error) error
	// Close releases resources held by the store.
	Close() error
}

// Put writes a single key.
func Put(ctx context.Context, s Store, key, value string) error {
	return s.Batch(ctx, func(tx Tx) error {
		return tx.Put(key, value)
	})
}

// Delete removes the given keys together.
func Delete(ctx context.Context, s Store, keys ...string) error {
	return s.Batch(ctx, func(tx Tx) error {
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
