package streaming

import "errors"

var (
	// ErrCapacityExceeded indicates the active-session cap was reached.
	// No session is created and no resource is held when this is
	// returned.
	ErrCapacityExceeded = errors.New("streaming capacity exceeded")

	// ErrStreamTimeout indicates the session deadline expired and the
	// session was force-destroyed. Consumers observe this instead of a
	// silent close.
	ErrStreamTimeout = errors.New("stream deadline exceeded")

	// ErrSessionClosed indicates the session was cancelled or already
	// finished.
	ErrSessionClosed = errors.New("streaming session closed")

	// ErrPagerExhausted indicates Next was called after the pager
	// produced its final batch. Pagers are forward-only and cannot be
	// restarted.
	ErrPagerExhausted = errors.New("pager exhausted")
)
