package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntufar/fsgate/pkg/statestore"
)

func testSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := New(context.Background(), Config{DBPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSaveLatest_RoundTrip(t *testing.T) {
	sink := testSink(t)

	snap := statestore.Snapshot{
		Timestamp: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Version:   "v0.1.0",
		Resources: statestore.ResourceStats{
			PendingOperations: 3,
			ActiveSessions:    2,
			TrackedIdentities: 7,
			UnitsDelivered:    4096,
		},
		Health: statestore.HealthStatus{Status: "shutting_down", Message: "signal: terminated"},
	}
	require.NoError(t, sink.Save(context.Background(), snap))

	got, found, err := sink.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap, got)
}

func TestLatest_EmptyDatabase(t *testing.T) {
	sink := testSink(t)

	_, found, err := sink.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSave_LatestTracksNewestSnapshot(t *testing.T) {
	sink := testSink(t)

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := statestore.Snapshot{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Version:   "v0.1.0",
			Resources: statestore.ResourceStats{PendingOperations: i},
		}
		require.NoError(t, sink.Save(context.Background(), snap))
	}

	got, found, err := sink.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.Resources.PendingOperations)
}

func TestSave_AfterCloseFails(t *testing.T) {
	sink := testSink(t)
	require.NoError(t, sink.Close())

	err := sink.Save(context.Background(), statestore.Snapshot{Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	sink := testSink(t)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}
