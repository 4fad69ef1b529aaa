package facade

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntufar/fsgate/pkg/admission"
	"github.com/ntufar/fsgate/pkg/content"
	"github.com/ntufar/fsgate/pkg/content/memory"
	"github.com/ntufar/fsgate/pkg/streaming"
)

func testGate() (*Gate, *admission.Controller, *memory.Repository) {
	limits := admission.ResourceLimits{
		MaxConcurrentRequests: 4,
		MaxRequestsPerMinute:  100,
		MaxRequestsPerHour:    1000,
		MaxFileSize:           1 << 20,
		MaxDirectoryDepth:     10,
		MaxSearchResults:      1000,
	}
	ctrl := admission.NewController(limits, admission.ThrottleConfig{}, nil)
	repo := memory.New()
	mgr := streaming.NewManager(repo, streaming.Config{}, nil)
	return New(ctrl, mgr, repo), ctrl, repo
}

func caller(user string) admission.Identity {
	return admission.Identity{UserID: user, ClientID: "cli-1", ClientType: "cli"}
}

func TestDo_WrapsWorkWithAdmission(t *testing.T) {
	g, ctrl, _ := testGate()

	ran := false
	err := g.Do(context.Background(), caller("u1"), admission.OpGetFileMetadata, nil, func(context.Context) error {
		ran = true
		// The slot is held while the work runs
		assert.Equal(t, 1, ctrl.PendingOperations())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 0, ctrl.PendingOperations(), "end must release the slot")
}

func TestDo_DenialSkipsWork(t *testing.T) {
	g, _, _ := testGate()
	id := caller("u1")

	// Saturate the concurrency cap with work that never finishes
	for i := 0; i < 4; i++ {
		g.admission.BeginRequest(id, admission.OpGetFileMetadata)
	}

	err := g.Do(context.Background(), id, admission.OpGetFileMetadata, nil, func(context.Context) error {
		t.Fatal("denied work must not run")
		return nil
	})

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, admission.DenyConcurrencyExceeded, denied.Decision.Reason)
}

func TestDo_FailedWorkStillEndsRequest(t *testing.T) {
	g, ctrl, _ := testGate()

	boom := errors.New("backend error")
	err := g.Do(context.Background(), caller("u1"), admission.OpCheckPermissions, nil, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, ctrl.PendingOperations())
	assert.Equal(t, uint64(1), ctrl.Stats().FailedRequests)
}

func TestReadFile_StreamsUnderAdmission(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/docs/report.txt", []byte("hello fsgate"))

	s, err := g.ReadFile(context.Background(), caller("u1"), "/docs/report.txt", streaming.StreamOptions{})
	require.NoError(t, err)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello fsgate", string(data))
}

func TestReadFile_OversizeDenied(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/big.bin", make([]byte, 2<<20)) // over the 1MiB limit

	_, err := g.ReadFile(context.Background(), caller("u1"), "/big.bin", streaming.StreamOptions{})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, admission.DenyOperationLimit, denied.Decision.Reason)
}

func TestReadFile_MissingFile(t *testing.T) {
	g, _, _ := testGate()

	_, err := g.ReadFile(context.Background(), caller("u1"), "/nope", streaming.StreamOptions{})
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestListDirectory_PagesEntries(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/dir/a.txt", []byte("a"))
	repo.Put("/dir/b.txt", []byte("bb"))
	repo.Put("/dir/sub/c.txt", []byte("ccc"))

	p, err := g.ListDirectory(context.Background(), caller("u1"), "/dir", streaming.StreamOptions{})
	require.NoError(t, err)

	batch, err := p.Next()
	require.NoError(t, err)
	require.Len(t, batch.Items, 3)
	assert.False(t, batch.HasMore)

	first, ok := batch.Items[0].(content.Entry)
	require.True(t, ok)
	assert.Equal(t, "a.txt", first.Name)
}

func TestSearchFiles_MatchesRecursively(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/proj/readme.md", []byte("x"))
	repo.Put("/proj/src/report_q1.csv", []byte("x"))
	repo.Put("/proj/src/deep/report_q2.csv", []byte("x"))
	repo.Put("/proj/other.txt", []byte("x"))

	p, err := g.SearchFiles(context.Background(), caller("u1"), "/proj", "REPORT", 100, streaming.StreamOptions{})
	require.NoError(t, err)

	batch, err := p.Next()
	require.NoError(t, err)
	assert.Len(t, batch.Items, 2, "match is case-insensitive and recursive")
}

func TestGetFileMetadata(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/dir/file.txt", []byte("12345"))

	entry, err := g.GetFileMetadata(context.Background(), caller("u1"), "/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "file.txt", entry.Name)
	assert.Equal(t, uint64(5), entry.Size)
	assert.False(t, entry.IsDir)
}

func TestStopAccepting_RefusesEverything(t *testing.T) {
	g, _, repo := testGate()
	repo.Put("/f", []byte("x"))

	g.StopAccepting()
	assert.False(t, g.Accepting())

	err := g.Do(context.Background(), caller("u1"), admission.OpGetFileMetadata, nil, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrShuttingDown)

	_, err = g.ReadFile(context.Background(), caller("u1"), "/f", streaming.StreamOptions{})
	assert.ErrorIs(t, err, ErrShuttingDown)

	_, err = g.ListDirectory(context.Background(), caller("u1"), "/", streaming.StreamOptions{})
	assert.ErrorIs(t, err, ErrShuttingDown)

	_, err = g.SearchFiles(context.Background(), caller("u1"), "/", "x", 10, streaming.StreamOptions{})
	assert.ErrorIs(t, err, ErrShuttingDown)

	// Idempotent
	g.StopAccepting()
	assert.False(t, g.Accepting())
}
