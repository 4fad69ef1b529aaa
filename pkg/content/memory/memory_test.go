package memory

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntufar/fsgate/pkg/content"
)

func TestOpen_ReturnsStoredContent(t *testing.T) {
	repo := New()
	repo.Put("/docs/readme.txt", []byte("hello"))

	rc, err := repo.Open(context.Background(), "/docs/readme.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpen_CopyIsIsolatedFromLaterPut(t *testing.T) {
	repo := New()
	repo.Put("/a.txt", []byte("first"))

	rc, err := repo.Open(context.Background(), "/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	repo.Put("/a.txt", []byte("second"))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestOpen_Missing(t *testing.T) {
	repo := New()

	_, err := repo.Open(context.Background(), "/nope")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestSize(t *testing.T) {
	repo := New()
	repo.Put("/a.txt", []byte("12345"))

	size, err := repo.Size(context.Background(), "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)

	_, err = repo.Size(context.Background(), "/missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestList_DerivesImplicitDirectories(t *testing.T) {
	repo := New()
	repo.Put("/docs/a.txt", []byte("a"))
	repo.Put("/docs/sub/b.txt", []byte("bb"))
	repo.Put("/top.txt", []byte("t"))

	entries, err := repo.List(context.Background(), "/docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, uint64(1), entries[0].Size)

	assert.Equal(t, "sub", entries[1].Name)
	assert.True(t, entries[1].IsDir)
}

func TestList_RootOfEmptyRepository(t *testing.T) {
	repo := New()

	entries, err := repo.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_MissingDirectory(t *testing.T) {
	repo := New()
	repo.Put("/a.txt", []byte("a"))

	_, err := repo.List(context.Background(), "/nope")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestOpen_CancelledContext(t *testing.T) {
	repo := New()
	repo.Put("/a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Open(ctx, "/a.txt")
	assert.True(t, errors.Is(err, context.Canceled))
}
