package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGet(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	uri, err := store.Put(ctx, "images/adncuba/42", data)
	require.NoError(t, err)
	assert.Equal(t, "blob://images/adncuba/42", uri)

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStore_Put_Overwrite(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "images/x", []byte("primero"))
	require.NoError(t, err)
	uri, err := store.Put(ctx, "images/x", []byte("segundo"))
	require.NoError(t, err)

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("segundo"), got)
}

func TestFSStore_Get_Errors(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := store.Get(ctx, "s3://bucket/key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown blob uri scheme")
	})

	t.Run("missing blob", func(t *testing.T) {
		_, err := store.Get(ctx, "blob://images/no-such-blob")
		require.Error(t, err)
	})
}

func TestFSStore_PathEscape(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(root), "escaped")
	_, err = store.Put(ctx, "../escaped", []byte("fuga"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid blob path")
	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written outside the root")

	_, err = store.Get(ctx, "blob://../escaped")
	require.Error(t, err)
}

func TestNewFSStore_CreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	_, err := NewFSStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
