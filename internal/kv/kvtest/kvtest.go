// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/kv"
)

// Run exercises a fresh store returned by newStore against the kv.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "user")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, kv.Put(ctx, s, "authToken", "demo-token-1"))

		v, err := s.Get(ctx, "authToken")
		require.NoError(t, err)
		require.Equal(t, "demo-token-1", v)
	})

	t.Run("put overwrites", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, kv.Put(ctx, s, "user", `{"id":1}`))
		require.NoError(t, kv.Put(ctx, s, "user", `{"id":2}`))

		v, err := s.Get(ctx, "user")
		require.NoError(t, err)
		require.Equal(t, `{"id":2}`, v)
	})

	t.Run("batch writes both keys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		err := s.Batch(ctx, func(tx kv.Tx) error {
			if err := tx.Put("user", `{"id":1}`); err != nil {
				return err
			}
			return tx.Put("authToken", "tok")
		})
		require.NoError(t, err)

		user, err := s.Get(ctx, "user")
		require.NoError(t, err)
		require.Equal(t, `{"id":1}`, user)

		token, err := s.Get(ctx, "authToken")
		require.NoError(t, err)
		require.Equal(t, "tok", token)
	})

	t.Run("failed batch applies nothing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, kv.Put(ctx, s, "user", "before"))

		boom := errors.New("boom")
		err := s.Batch(ctx, func(tx kv.Tx) error {
			require.NoError(t, tx.Put("user", "after"))
			require.NoError(t, tx.Put("authToken", "tok"))
			return boom
		})
		require.ErrorIs(t, err, boom)

		v, err := s.Get(ctx, "user")
		require.NoError(t, err)
		require.Equal(t, "before", v)

		_, err = s.Get(ctx, "authToken")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("delete keys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, kv.Put(ctx, s, "user", "u"))
		require.NoError(t, kv.Put(ctx, s, "authToken", "t"))
		require.NoError(t, kv.Put(ctx, s, "theme", "dark"))

		require.NoError(t, kv.Delete(ctx, s, "user", "authToken"))

		_, err := s.Get(ctx, "user")
		require.ErrorIs(t, err, kv.ErrNotFound)
		_, err = s.Get(ctx, "authToken")
		require.ErrorIs(t, err, kv.ErrNotFound)

		v, err := s.Get(ctx, "theme")
		require.NoError(t, err)
		require.Equal(t, "dark", v)
	})

	t.Run("delete missing key", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, kv.Delete(context.Background(), s, "user"))
	})
}
