// Package memory implements an in-memory snapshot sink used in tests
// and stateless deployments.
package memory

import (
	"context"
	"sync"

	"github.com/ntufar/fsgate/pkg/statestore"
)

// Sink records snapshots in memory.
//
// Thread safety: safe for concurrent use.
type Sink struct {
	mu    sync.Mutex
	snaps []statestore.Snapshot
}

// New creates an empty in-memory sink.
func New() *Sink {
	return &Sink{}
}

// Save appends the snapshot to the in-memory history.
func (s *Sink) Save(ctx context.Context, snap statestore.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

// Snapshots returns a copy of every saved snapshot in save order.
func (s *Sink) Snapshots() []statestore.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]statestore.Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

// Close is a no-op for the in-memory sink.
func (s *Sink) Close() error { return nil }
