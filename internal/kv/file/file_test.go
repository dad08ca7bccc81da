package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/kv"
	"github.com/wolfeidau/jobdash/internal/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := NewStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, s, "authToken", "tok"))

	// A second store over the same directory sees the write
	reopened, err := NewStore(dir)
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "authToken")
	require.NoError(t, err)
	require.Equal(t, "tok", v)
}

func TestStore_FilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), s, "user", "u"))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), fileInfo.Mode().Perm())

	_, err = os.Stat(s.Path() + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestStore_DocumentFormat(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), s, "user", `{"id":1}`))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 1, doc.Version)
	require.Equal(t, map[string]string{"user": `{"id":1}`}, doc.Entries)
}

func TestStore_CorruptFileIsReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0600))

	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "user")
	require.ErrorIs(t, err, kv.ErrNotFound)

	// Deleting a missing key still rewrites the unreadable file
	require.NoError(t, kv.Delete(ctx, s, "user", "authToken"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 1, doc.Version)
	require.Empty(t, doc.Entries)

	require.NoError(t, kv.Put(ctx, s, "authToken", "tok"))
	v, err := s.Get(ctx, "authToken")
	require.NoError(t, err)
	require.Equal(t, "tok", v)
}
