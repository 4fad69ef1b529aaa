// Package streaming implements the streaming session manager: chunked,
// progress-tracked transfers with a concurrency cap, deadlines, and
// cooperative cancellation.
//
// Large file reads go through OpenFileStream; directory listings and
// search results go through the batch pagers. All three session kinds
// share one active-session table, one capacity cap, and one removal
// routine, so the shutdown orchestrator can drain and cancel them
// uniformly.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ntufar/fsgate/internal/logger"
	"github.com/ntufar/fsgate/pkg/content"
	"github.com/ntufar/fsgate/pkg/metrics"
)

// Config tunes the session manager.
type Config struct {
	// MaxConcurrentStreams caps the active-session table.
	// Default: 5
	MaxConcurrentStreams uint

	// ChunkSize is the suggested read chunk for file sessions.
	// Default: 64KiB
	ChunkSize int

	// SessionTimeout is the default deadline for sessions opened
	// without an explicit timeout.
	// Default: 5m
	SessionTimeout time.Duration

	// Compression marks sessions as compressed in their metadata.
	// The transfer itself is a collaborator concern.
	Compression bool
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = 5
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 64 * 1024
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 5 * time.Minute
	}
}

// StreamOptions override per-session settings. Zero values fall back to
// the manager's configuration.
type StreamOptions struct {
	ChunkSize int
	Timeout   time.Duration
}

// SessionInfo describes one live session for introspection.
type SessionInfo struct {
	ID        string
	Kind      Kind
	StartTime time.Time
	Progress  Progress
}

// Stats summarizes manager activity for health reporting and the
// shutdown drain.
type Stats struct {
	Active         int
	PeakActive     int
	TotalOpened    uint64
	Completed      uint64
	Cancelled      uint64
	Expired        uint64
	Failed         uint64
	Rejected       uint64
	UnitsDelivered uint64
}

// Manager owns the active-session table.
//
// Thread safety: all methods are safe for concurrent use.
type Manager struct {
	cfg     Config
	content content.Repository
	metrics metrics.StreamingMetrics

	// now is the time source, replaceable in tests
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	totalOpened uint64
	completed   uint64
	cancelled   uint64
	expired     uint64
	failed      uint64
	rejected    uint64
	delivered   uint64
	peakActive  int
}

// NewManager creates a session manager reading file content from the
// given repository. Pass nil metrics for no-op instrumentation.
func NewManager(repo content.Repository, cfg Config, m metrics.StreamingMetrics) *Manager {
	cfg.applyDefaults()
	if m == nil {
		m = metrics.NewNoopStreamingMetrics()
	}
	return &Manager{
		cfg:      cfg,
		content:  repo,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// OpenFileStream opens a progress-tracked streaming read of the file at
// path.
//
// Returns ErrCapacityExceeded - without creating a session or holding
// any resource - when the active-session count is already at the cap.
func (m *Manager) OpenFileStream(ctx context.Context, path string, opts StreamOptions) (*Session, error) {
	size, err := m.content.Size(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("sizing %s: %w", path, err)
	}

	reader, err := m.content.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = m.cfg.ChunkSize
	}

	s, err := m.register(ctx, KindFile, newTracker(size, false, m.now), opts.Timeout)
	if err != nil {
		// Session slot denied: release the only resource we hold
		_ = reader.Close()
		return nil, err
	}

	s.reader = reader
	s.meta = Metadata{
		ID:                 s.id,
		TotalSize:          size,
		ChunkSize:          chunk,
		CompressionEnabled: m.cfg.Compression,
		StartTime:          s.meta.StartTime,
	}

	logger.Debug("Opened file stream %s for %s (%d bytes)", s.id, path, size)
	return s, nil
}

// register creates the session, applies the deadline, and inserts it
// into the table, enforcing the concurrency cap under the lock.
func (m *Manager) register(ctx context.Context, kind Kind, tr *tracker, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = m.cfg.SessionTimeout
	}

	m.mu.Lock()
	if uint(len(m.sessions)) >= m.cfg.MaxConcurrentStreams {
		m.rejected++
		m.mu.Unlock()
		m.metrics.RecordSessionRejected()
		return nil, ErrCapacityExceeded
	}

	sessCtx, cancel := context.WithTimeout(ctx, timeout)
	s := &Session{
		id:      uuid.NewString(),
		kind:    kind,
		tracker: tr,
		mgr:     m,
		ctx:     sessCtx,
		cancel:  cancel,
		meta: Metadata{
			StartTime: m.now(),
		},
	}
	s.meta.ID = s.id

	m.sessions[s.id] = s
	m.totalOpened++
	active := len(m.sessions)
	if active > m.peakActive {
		m.peakActive = active
	}
	m.mu.Unlock()

	// Deadline watchdog: fires on expiry or cancellation and routes
	// both into the shared removal path. finish() is idempotent, so a
	// session already removed by another path is untouched.
	s.stopWatch = context.AfterFunc(sessCtx, func() {
		cause := ErrSessionClosed
		if errors.Is(sessCtx.Err(), context.DeadlineExceeded) {
			cause = ErrStreamTimeout
		}
		if m.finish(s, cause) && cause == ErrStreamTimeout {
			logger.Warn("Stream %s force-destroyed after deadline", s.id)
		}
	})

	m.metrics.RecordSessionOpened(string(kind))
	m.metrics.SetActiveSessions(active)
	return s, nil
}

// finish is the single removal routine shared by natural completion,
// explicit cancel, deadline expiry, and I/O failure. It reports whether
// this call performed the removal (false when the session was already
// finished).
func (m *Manager) finish(s *Session, cause error) bool {
	m.mu.Lock()
	if s.closed {
		m.mu.Unlock()
		return false
	}
	s.closed = true
	s.cause = cause
	delete(m.sessions, s.id)

	delivered := s.tracker.processedUnits()
	m.delivered += delivered
	label := "completed"
	switch {
	case cause == nil:
		m.completed++
	case errors.Is(cause, ErrStreamTimeout):
		m.expired++
		label = "expired"
	case errors.Is(cause, ErrSessionClosed):
		m.cancelled++
		label = "cancelled"
	default:
		m.failed++
		label = "failed"
	}
	active := len(m.sessions)
	m.mu.Unlock()

	s.cancel()
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.reader != nil {
		_ = s.reader.Close()
	}

	m.metrics.RecordSessionClosed(string(s.kind), label, m.now().Sub(s.meta.StartTime), delivered)
	m.metrics.SetActiveSessions(active)
	return true
}

// CancelStream cancels the session with the given ID, releasing its
// underlying resource and bookkeeping.
//
// Idempotent: returns false without side effects when the ID is unknown
// or the session already finished.
func (m *Manager) CancelStream(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.finish(s, ErrSessionClosed)
}

// CancelAll cancels every live session and returns how many were
// cancelled. Used by the shutdown orchestrator's cleanup phases.
func (m *Manager) CancelAll(reason string) int {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	n := 0
	for _, s := range open {
		if m.finish(s, ErrSessionClosed) {
			n++
		}
	}
	if n > 0 {
		logger.Info("Cancelled %d streaming session(s): %s", n, reason)
	}
	return n
}

// ActiveSessions returns a snapshot of every live session.
func (m *Manager) ActiveSessions() []SessionInfo {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	out := make([]SessionInfo, 0, len(open))
	for _, s := range open {
		out = append(out, SessionInfo{
			ID:        s.id,
			Kind:      s.kind,
			StartTime: s.meta.StartTime,
			Progress:  s.tracker.snapshot(),
		})
	}
	return out
}

// ActiveSessionCount returns the number of live sessions. The shutdown
// orchestrator polls this during its drain phase.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SessionStats returns cumulative manager statistics.
func (m *Manager) SessionStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Active:         len(m.sessions),
		PeakActive:     m.peakActive,
		TotalOpened:    m.totalOpened,
		Completed:      m.completed,
		Cancelled:      m.cancelled,
		Expired:        m.expired,
		Failed:         m.failed,
		Rejected:       m.rejected,
		UnitsDelivered: m.delivered,
	}
}
