// Package redis provides a kv.Store backed by Redis, for dashboards that keep
// their session outside the local machine.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wolfeidau/jobdash/internal/kv"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "jobdash:"

// Store implements kv.Store on top of a Redis client.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ kv.Store = (*Store)(nil)

// NewStore wraps an existing client. An empty prefix selects DefaultPrefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// NewStoreFromURL parses a redis:// URL and connects to it.
func NewStoreFromURL(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStore(rdb, prefix), nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", key, kv.ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

// Batch collects fn's writes and sends them in a single MULTI/EXEC.
func (s *Store) Batch(ctx context.Context, fn func(tx kv.Tx) error) error {
	tx := &redisTx{}
	if err := fn(tx); err != nil {
		return err
	}

	if len(tx.ops) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range tx.ops {
			if op.delete {
				pipe.Del(ctx, s.key(op.key))
				continue
			}
			pipe.Set(ctx, s.key(op.key), op.value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

type redisOp struct {
	key    string
	value  string
	delete bool
}

type redisTx struct {
	ops []redisOp
}

func (tx *redisTx) Put(key, value string) error {
	tx.ops = append(tx.ops, redisOp{key: key, value: value})
	return nil
}

func (tx *redisTx) Delete(key string) error {
	tx.ops = append(tx.ops, redisOp{key: key, delete: true})
	return nil
}
