// Package statestore defines the snapshot handed to an external sink
// during the shutdown sequence's optional save-state phase, and the
// sink implementations.
package statestore

import (
	"context"
	"time"
)

// Snapshot is the state handed to a sink when shutdown saves state.
type Snapshot struct {
	// Timestamp is when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`

	// Version is the fsgate build version producing the snapshot
	Version string `json:"version"`

	// Resources captures the live resource counters at snapshot time
	Resources ResourceStats `json:"resources"`

	// Health is the process health at snapshot time
	Health HealthStatus `json:"health"`
}

// ResourceStats are the resource counters included in a snapshot.
type ResourceStats struct {
	PendingOperations int    `json:"pending_operations"`
	ActiveSessions    int    `json:"active_sessions"`
	TrackedIdentities int    `json:"tracked_identities"`
	UnitsDelivered    uint64 `json:"units_delivered"`
}

// HealthStatus describes process health at snapshot time.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Sink persists snapshots. The format and location are the sink's
// concern.
type Sink interface {
	// Save persists one snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Close releases the sink's resources. Save must not be called
	// after Close.
	Close() error
}
