package streaming

import (
	"context"
	"errors"
	"io"
	"time"
)

// Kind classifies what a session streams.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindSearch    Kind = "search"
)

// Metadata is the immutable description of a session, fixed at open
// time.
type Metadata struct {
	ID                 string
	TotalSize          uint64
	ChunkSize          int
	CompressionEnabled bool
	StartTime          time.Time
}

// Session is one live streaming transfer.
//
// File sessions are read through Read; pager sessions advance through
// their Pager. Every session carries a deadline: on expiry it is
// force-destroyed and subsequent reads surface ErrStreamTimeout.
// Completion, cancellation and expiry all converge on the manager's
// single removal routine.
type Session struct {
	id   string
	kind Kind
	meta Metadata

	tracker *tracker
	mgr     *Manager

	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool

	// reader is the underlying resource for file sessions, nil for
	// pagers
	reader io.ReadCloser

	// closed and cause are guarded by the manager's mutex
	closed bool
	cause  error
}

// ID returns the session identifier used with CancelStream.
func (s *Session) ID() string { return s.id }

// Kind returns what the session streams.
func (s *Session) Kind() Kind { return s.kind }

// Metadata returns the immutable session description.
func (s *Session) Metadata() Metadata { return s.meta }

// Progress returns a point-in-time progress snapshot.
func (s *Session) Progress() Progress { return s.tracker.snapshot() }

// Err returns the terminal cause after the session finished: nil for
// natural completion, ErrStreamTimeout for deadline expiry,
// ErrSessionClosed for cancellation, or the underlying I/O error.
func (s *Session) Err() error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return s.cause
}

// Read streams the next chunk of a file session.
//
// Returns io.EOF on natural completion (the session is removed before
// Read returns), ErrStreamTimeout once the deadline expired, and
// ErrSessionClosed after cancellation.
func (s *Session) Read(p []byte) (int, error) {
	if s.reader == nil {
		return 0, errors.New("session is not a file stream")
	}

	if err := s.ctx.Err(); err != nil {
		cause := ErrSessionClosed
		if errors.Is(err, context.DeadlineExceeded) {
			cause = ErrStreamTimeout
		}
		s.mgr.finish(s, cause)
		return 0, s.terminalErr(cause)
	}

	n, err := s.reader.Read(p)
	if n > 0 {
		s.tracker.add(uint64(n))
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		s.mgr.finish(s, nil)
		return n, io.EOF
	default:
		s.mgr.finish(s, err)
		return n, err
	}
}

// Close cancels the session. Safe to call multiple times; after the
// first call it is a no-op.
func (s *Session) Close() error {
	s.mgr.finish(s, ErrSessionClosed)
	return nil
}

// terminalErr returns the recorded cause, falling back to the given
// one when another path already finished the session.
func (s *Session) terminalErr(fallback error) error {
	if err := s.Err(); err != nil {
		return err
	}
	return fallback
}
