// Package badger implements the snapshot sink on BadgerDB, an embedded
// key-value store, so shutdown snapshots survive process restarts.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/ntufar/fsgate/pkg/statestore"
)

// Key schema:
//
//	snapshot:<RFC3339Nano timestamp> -> JSON snapshot
//	snapshot:latest                  -> JSON snapshot (most recent)
//
// Timestamped keys keep a history; the latest key gives O(1) access to
// the newest snapshot on recovery.
const (
	keyPrefix = "snapshot:"
	keyLatest = keyPrefix + "latest"
)

// Sink persists shutdown snapshots in a BadgerDB database.
//
// Thread safety: Badger transactions are safe for concurrent use; the
// mutex only serializes Close against in-flight saves.
type Sink struct {
	mu     sync.Mutex
	db     *badger.DB
	closed bool
}

// Config configures the badger sink.
type Config struct {
	// DBPath is the database directory, created if missing
	DBPath string

	// BadgerOptions overrides the default options entirely when set
	BadgerOptions *badger.Options
}

// New opens (or creates) the snapshot database.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.BadgerOptions != nil {
		opts = *cfg.BadgerOptions
	} else {
		// Snapshots are tiny and written once per shutdown; tune for
		// minimal footprint rather than throughput
		opts = badger.DefaultOptions(cfg.DBPath)
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database at %s: %w", cfg.DBPath, err)
	}

	return &Sink{db: db}, nil
}

// Save persists the snapshot under a timestamped key and refreshes the
// latest pointer in one transaction.
func (s *Sink) Save(ctx context.Context, snap statestore.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("snapshot sink is closed")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	key := keyPrefix + snap.Timestamp.UTC().Format(time.RFC3339Nano)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), data)
	})
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently saved snapshot.
// Returns found=false when no snapshot has been saved yet.
func (s *Sink) Latest(ctx context.Context) (snap statestore.Snapshot, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return statestore.Snapshot{}, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			found = true
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return statestore.Snapshot{}, false, nil
	}
	if err != nil {
		return statestore.Snapshot{}, false, fmt.Errorf("reading snapshot: %w", err)
	}
	return snap, found, nil
}

// Close flushes and closes the database.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
