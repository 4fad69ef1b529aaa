package admission

import (
	"sync"
	"time"
)

// logEntry records one in-flight (or recently started) request.
//
// Entries are appended by BeginRequest, removed by the matching
// EndRequest, and trimmed by the maintenance sweep once older than the
// retention window regardless of completion.
type logEntry struct {
	id        string
	key       identityKey
	operation Operation
	timestamp time.Time
}

// requestLog is the shared in-flight/recent-request log.
//
// Sliding-window rate counts are computed by filtering this log by
// identity and window on every check instead of maintaining
// incremental counters, trading a scan for exactness.
type requestLog struct {
	mu      sync.RWMutex
	entries map[string]*logEntry
}

func newRequestLog() *requestLog {
	return &requestLog{entries: make(map[string]*logEntry)}
}

func (l *requestLog) append(id string, key identityKey, op Operation, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id] = &logEntry{id: id, key: key, operation: op, timestamp: now}
}

// remove deletes the entry and returns it, so a double EndRequest is a
// detectable no-op and the caller can recover the operation name.
func (l *requestLog) remove(id string) (*logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, false
	}
	delete(l.entries, id)
	return e, true
}

func (l *requestLog) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// countSince returns the number of entries for the identity at or after
// cutoff, and the timestamp of the oldest such entry. The oldest
// timestamp drives the retry-after hint on window denials.
func (l *requestLog) countSince(key identityKey, cutoff time.Time) (uint, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var count uint
	var oldest time.Time
	for _, e := range l.entries {
		if e.key != key || e.timestamp.Before(cutoff) {
			continue
		}
		count++
		if oldest.IsZero() || e.timestamp.Before(oldest) {
			oldest = e.timestamp
		}
	}
	return count, oldest
}

// trim removes entries older than cutoff and returns how many were
// dropped.
func (l *requestLog) trim(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	trimmed := 0
	for id, e := range l.entries {
		if e.timestamp.Before(cutoff) {
			delete(l.entries, id)
			trimmed++
		}
	}
	return trimmed
}
