package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/kv"
	"github.com/wolfeidau/jobdash/internal/kv/kvtest"
	"go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return newTestStore(t)
	})
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, s, "authToken", "tok"))
	require.NoError(t, s.Close())

	s, err = NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "authToken")
	require.NoError(t, err)
	require.Equal(t, "tok", v)
}

func TestStore_BucketsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	a := NewStore(db, "a")
	b := NewStore(db, "")

	require.NoError(t, kv.Put(ctx, a, "user", "from-a"))

	_, err = b.Get(ctx, "user")
	require.ErrorIs(t, err, kv.ErrNotFound)
}
