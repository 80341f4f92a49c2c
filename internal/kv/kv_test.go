package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "yello-token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "yello-token", "mock_token_u1_1"))
	value, ok, err := store.Get(ctx, "yello-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mock_token_u1_1", value)

	require.NoError(t, store.Set(ctx, "yello-token", "mock_token_u1_2"))
	value, _, err = store.Get(ctx, "yello-token")
	require.NoError(t, err)
	require.Equal(t, "mock_token_u1_2", value)

	require.NoError(t, store.Remove(ctx, "yello-token"))
	require.NoError(t, store.Remove(ctx, "yello-token"))
	_, ok, err = store.Get(ctx, "yello-token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	t.Parallel()

	t.Run("get set remove", func(t *testing.T) {
		store, err := NewFile(filepath.Join(t.TempDir(), "state", "session.json"))
		require.NoError(t, err)
		exerciseStore(t, store)
	})

	t.Run("values survive reopening", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store, err := NewFile(path)
		require.NoError(t, err)
		require.NoError(t, store.Set(context.Background(), "yello-theme", "dark"))

		reopened, err := NewFile(path)
		require.NoError(t, err)
		value, ok, err := reopened.Get(context.Background(), "yello-theme")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "dark", value)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("empty file is an empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

		store, err := NewFile(path)
		require.NoError(t, err)
		_, ok, err := store.Get(context.Background(), "yello-user")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("corrupt file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := NewFile(path)
		require.Error(t, err)
	})

	t.Run("path is required", func(t *testing.T) {
		_, err := NewFile(" ")
		require.Error(t, err)
	})
}
