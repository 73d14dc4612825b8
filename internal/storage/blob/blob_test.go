package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	hash, err := store.Put([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestPutDeduplicates(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	h1, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	h2, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	entries, err := os.ReadDir(filepath.Join(dir, "objects", h1[:2]))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEmptyHashReadsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	b, err := store.Get("")
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.True(t, store.Exists(""))
}

func TestETag(t *testing.T) {
	hash := Hash([]byte("hello"))
	assert.Equal(t, `"2cf24dba5fb0a30e26e83b2ac5b9e29e"`, ETag(hash))
}

func TestGetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	assert.Error(t, err)
}
