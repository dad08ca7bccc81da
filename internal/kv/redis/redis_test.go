package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/kv"
	"github.com/wolfeidau/jobdash/internal/kv/kvtest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		_, rdb := newTestRedis(t)
		s := NewStore(rdb, "")
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_KeysArePrefixed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewStore(rdb, "test:")
	defer s.Close()

	require.NoError(t, kv.Put(context.Background(), s, "authToken", "tok"))

	v, err := mr.Get("test:authToken")
	require.NoError(t, err)
	require.Equal(t, "tok", v)
	require.False(t, mr.Exists("authToken"))
}

func TestNewStoreFromURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewStoreFromURL(context.Background(), "redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, kv.Put(context.Background(), s, "user", "u"))
	require.True(t, mr.Exists(DefaultPrefix+"user"))
}

func TestNewStoreFromURL_Invalid(t *testing.T) {
	_, err := NewStoreFromURL(context.Background(), "not-a-url", "")
	require.Error(t, err)
}
