package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/inspectreport/internal/photostore"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestSaveAndGet(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	imageData := []byte("fake png data")

	key, err := store.Save(ctx, "item_3", "image/png", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "item_3_"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/png", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestUnknownMIMEStoredAsJPEG(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "item_0", "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	reader.Close()
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestKeysAreUnique(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	a, err := store.Save(ctx, "item_0", "image/jpeg", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(ctx, "item_0", "image/jpeg", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "item_1", "image/jpeg", strings.NewReader("test data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), photostore.ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestSaveFailureLeavesNothingBehind(t *testing.T) {
	store, dir := newStore(t)

	_, err := store.Save(context.Background(), "item_0", "image/jpeg", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()

	a, err := store.Save(ctx, "item_0", "image/jpeg", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(ctx, "item_1", "image/png", strings.NewReader("b"))
	require.NoError(t, err)

	// Leftovers of an interrupted upload and subdirectories are not photos.
	require.NoError(t, os.WriteFile(filepath.Join(dir, tmpPrefix+"abandoned"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0750))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, keys)
}

func TestPathTraversal(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for _, key := range []string{"../../etc/passwd", "nested/photo.jpg", `..\outside.jpg`, ""} {
		_, _, err := store.Get(ctx, key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, photostore.ErrNotFound, key)
		assert.Error(t, store.Delete(ctx, key), key)
	}
}
