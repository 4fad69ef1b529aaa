package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntufar/fsgate/pkg/content"
)

func testRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	base := t.TempDir()
	repo, err := New(context.Background(), base)
	require.NoError(t, err)
	return repo, base
}

func writeFile(t *testing.T, base, rel, data string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(data), 0644))
}

func TestNew_CreatesBaseDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "content")

	_, err := New(context.Background(), base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_ReadsFileContent(t *testing.T) {
	repo, base := testRepo(t)
	writeFile(t, base, "docs/readme.txt", "hello")

	rc, err := repo.Open(context.Background(), "/docs/readme.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpen_Missing(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.Open(context.Background(), "/nope.txt")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestResolve_RejectsEscapingPaths(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, content.ErrInvalidPath)

	_, err = repo.Size(context.Background(), "/../outside")
	assert.ErrorIs(t, err, content.ErrInvalidPath)
}

func TestResolve_CleansInsideTraversal(t *testing.T) {
	// Traversal that stays inside the root resolves normally
	repo, base := testRepo(t)
	writeFile(t, base, "a.txt", "a")

	size, err := repo.Size(context.Background(), "/docs/../a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
}

func TestSize_DirectoryIsRejected(t *testing.T) {
	repo, base := testRepo(t)
	writeFile(t, base, "docs/a.txt", "a")

	_, err := repo.Size(context.Background(), "/docs")
	assert.ErrorIs(t, err, content.ErrIsDirectory)
}

func TestList_SortedEntries(t *testing.T) {
	repo, base := testRepo(t)
	writeFile(t, base, "docs/b.txt", "bb")
	writeFile(t, base, "docs/a.txt", "a")
	writeFile(t, base, "docs/sub/c.txt", "c")

	entries, err := repo.List(context.Background(), "/docs")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, uint64(1), entries[0].Size)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.Equal(t, "sub", entries[2].Name)
	assert.True(t, entries[2].IsDir)
}

func TestList_Missing(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.List(context.Background(), "/nope")
	assert.ErrorIs(t, err, content.ErrNotFound)
}
