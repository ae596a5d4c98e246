package blobstore_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bucket-cache/internal/blobstore"
)

func newStore(t *testing.T) *blobstore.FSStore {
	t.Helper()

	store, err := blobstore.NewFS(filepath.Join(t.TempDir(), "blobs"), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestFSStoreReadWrite(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Write("a.json", []byte(`{"v":1}`)))

	data, err := store.Read("a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	size, err := store.Size("a.json")
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Write("a.json", []byte("short")))
		data, err := store.Read("a.json")
		require.NoError(t, err)
		assert.Equal(t, "short", string(data))
	})
}

func TestFSStoreMissingBlob(t *testing.T) {
	store := newStore(t)

	_, err := store.Read("nope.json")
	assert.ErrorIs(t, err, blobstore.ErrNotExist)

	_, err = store.Size("nope.json")
	assert.ErrorIs(t, err, blobstore.ErrNotExist)

	err = store.Remove("nope.json")
	assert.ErrorIs(t, err, blobstore.ErrNotExist)
}

func TestFSStoreRemove(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Write("a.json", []byte("x")))
	require.NoError(t, store.Remove("a.json"))

	_, err := store.Read("a.json")
	assert.True(t, errors.Is(err, blobstore.ErrNotExist))
}

func TestFSStoreList(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Write("a.json", []byte("aa")))
	require.NoError(t, store.Write("b.json", []byte("bbbb")))
	require.NoError(t, store.Write("c.gob", []byte("cc")))

	infos, err := store.List("json")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	names := []string{infos[0].Name, infos[1].Name}
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, names)
	for _, info := range infos {
		assert.Positive(t, info.Size)
	}
}

func TestFSStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := blobstore.NewFS(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(store.Dir()))
}
