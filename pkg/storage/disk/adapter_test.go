package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"docvault/pkg/core"
	"docvault/pkg/storage"
	"docvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	obj := core.NewBlob([]byte("hello world"))

	// 1. Put
	require.NoError(t, store.Put(ctx, obj))

	// The object lands in a two-char shard directory.
	h := string(obj.ID())
	_, err = os.Stat(filepath.Join(tmpDir, h[:2], h[2:]))
	assert.NoError(t, err, "object should exist in its shard directory")

	// 2. Put again is a no-op
	require.NoError(t, store.Put(ctx, obj))

	// 3. Has
	exists, err := store.Has(ctx, obj.ID())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, types.Hash("ffffffff"))
	require.NoError(t, err)
	assert.False(t, exists)

	// 4. Get
	reader, err := store.Get(ctx, obj.ID())
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)
}

func TestDiskAdapter_GetMissing(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), core.CalculateBlobHash([]byte("nope")))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = storage.ReadAll(context.Background(), store, core.CalculateBlobHash([]byte("nope")))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
