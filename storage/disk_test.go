package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, MediaKey("t1"), []byte("ID3 audio"), "audio/mpeg"))
	require.NoError(t, store.Put(ctx, CoverKey("t1"), []byte{0x89, 'P', 'N', 'G'}, "image/png"))

	r, info, err := store.Open(ctx, MediaKey("t1"))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "ID3 audio", string(data))
	assert.Equal(t, int64(9), info.Size)

	objects, stats, err := Stats(ctx, store, "audio/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "audio/t1", objects[0].Key)
	assert.Equal(t, int64(1), stats.TotalObjects)

	require.NoError(t, store.Remove(ctx, MediaKey("t1")))
	require.NoError(t, store.Remove(ctx, MediaKey("t1")))
	_, _, err = store.Open(ctx, MediaKey("t1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	p, err := store.path("../../etc/passwd")
	require.NoError(t, err)
	assert.Contains(t, p, root)

	_, err = store.path("")
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
