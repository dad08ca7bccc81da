// Package bbolt provides a BBolt-backed kv.Store.
package bbolt

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/jobdash/internal/kv"
	"go.etcd.io/bbolt"
)

// DefaultBucket is the bucket session keys are stored in.
const DefaultBucket = "session"

// Store implements kv.Store backed by a BBolt database.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ kv.Store = (*Store)(nil)

// NewStore returns a Store using the given bucket of an open database.
// An empty bucket name selects DefaultBucket.
func NewStore(db *bbolt.DB, bucket string) *Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{db: db, bucket: []byte(bucket)}
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db, DefaultBucket), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return kv.ErrNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return kv.ErrNotFound
		}
		// data is only valid for the life of the transaction
		value = string(data)
		return nil
	})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", key, kv.ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Batch runs fn inside a single read-write transaction.
func (s *Store) Batch(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return fn(&boltTx{bucket: b})
	})
}

type boltTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltTx) Put(key, value string) error {
	return tx.bucket.Put([]byte(key), []byte(value))
}

func (tx *boltTx) Delete(key string) error {
	return tx.bucket.Delete([]byte(key))
}
