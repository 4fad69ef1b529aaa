package streaming

import (
	"context"
	"errors"
	"sync"
)

// Batch sizes and result caps for the pager kinds. The cap bounds how
// many items a single session will ever deliver regardless of how large
// the underlying collection is.
const (
	directoryBatchSize = 100
	directoryMaxItems  = 10000

	searchBatchSize = 50
	searchMaxItems  = 1000
)

// FetchFunc loads one page of items starting at offset, at most limit
// of them. Returning fewer than limit items marks the end of the
// collection.
type FetchFunc func(ctx context.Context, offset, limit int) ([]any, error)

// Batch is one page of results together with the session's progress
// after delivering it.
type Batch struct {
	Items    []any
	Progress Progress

	// HasMore reports whether another Next call can yield items
	HasMore bool
}

// Pager walks a collection forward in fixed-size batches, backed by a
// streaming session so it shares the capacity cap, the deadline, and
// cancellation with file streams.
//
// Pagers are forward-only: once the final batch is delivered, or the
// pager is closed, every further Next returns ErrPagerExhausted. There
// is no rewind; callers wanting to re-read open a new pager.
//
// Thread safety: safe for concurrent use, though batches are handed out
// in fetch order so concurrent callers see disjoint pages.
type Pager struct {
	session *Session
	fetch   FetchFunc

	mu        sync.Mutex
	batchSize int
	limit     int
	offset    int
	done      bool
}

// StreamDirectoryListing opens a directory-listing pager delivering
// batches of 100 entries, capped at 10000 entries total.
//
// totalItems sizes the progress estimate; pass 0 when unknown. fetch is
// invoked once per Next call with the running offset.
func (m *Manager) StreamDirectoryListing(ctx context.Context, totalItems uint64, fetch FetchFunc, opts StreamOptions) (*Pager, error) {
	return m.newPager(ctx, KindDirectory, totalItems, fetch, directoryBatchSize, directoryMaxItems, opts)
}

// StreamSearchResults opens a search-result pager delivering batches of
// 50 matches, capped at 1000 matches total.
func (m *Manager) StreamSearchResults(ctx context.Context, totalItems uint64, fetch FetchFunc, opts StreamOptions) (*Pager, error) {
	return m.newPager(ctx, KindSearch, totalItems, fetch, searchBatchSize, searchMaxItems, opts)
}

func (m *Manager) newPager(ctx context.Context, kind Kind, total uint64, fetch FetchFunc, batchSize, limit int, opts StreamOptions) (*Pager, error) {
	if fetch == nil {
		return nil, errors.New("streaming: fetch function is required")
	}

	// Progress is measured against what the session will actually
	// deliver, so a collection larger than the cap still reaches 100%.
	if total > uint64(limit) {
		total = uint64(limit)
	}

	s, err := m.register(ctx, kind, newTracker(total, true, m.now), opts.Timeout)
	if err != nil {
		return nil, err
	}

	return &Pager{
		session:   s,
		fetch:     fetch,
		batchSize: batchSize,
		limit:     limit,
	}, nil
}

// SessionID returns the backing session's identifier, usable with
// CancelStream.
func (p *Pager) SessionID() string { return p.session.id }

// Progress returns the pager's current progress snapshot.
func (p *Pager) Progress() Progress { return p.session.tracker.snapshot() }

// Next fetches and returns the next batch.
//
// The final batch has HasMore false; the call after it returns
// ErrPagerExhausted. A deadline expiry surfaces as ErrStreamTimeout,
// cancellation as ErrSessionClosed, and a fetch failure as the
// underlying error. All terminal outcomes release the backing session.
func (p *Pager) Next() (Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return Batch{}, ErrPagerExhausted
	}

	s := p.session
	if err := s.ctx.Err(); err != nil {
		cause := ErrSessionClosed
		if errors.Is(err, context.DeadlineExceeded) {
			cause = ErrStreamTimeout
		}
		s.mgr.finish(s, cause)
		p.done = true
		return Batch{}, s.terminalErr(cause)
	}

	size := p.batchSize
	if remaining := p.limit - p.offset; remaining < size {
		size = remaining
	}
	if size <= 0 {
		p.done = true
		s.mgr.finish(s, nil)
		return Batch{}, ErrPagerExhausted
	}

	items, err := p.fetch(s.ctx, p.offset, size)
	if err != nil {
		p.done = true
		s.mgr.finish(s, err)
		return Batch{}, err
	}

	p.offset += len(items)
	if len(items) > 0 {
		s.tracker.add(uint64(len(items)))
	}

	// A short batch means the collection ended; a full batch at the cap
	// means the session delivered its maximum.
	hasMore := len(items) == size && p.offset < p.limit
	if !hasMore {
		p.done = true
		s.mgr.finish(s, nil)
	}

	return Batch{
		Items:    items,
		Progress: s.tracker.snapshot(),
		HasMore:  hasMore,
	}, nil
}

// Close cancels the pager and releases its session. Further Next calls
// return ErrPagerExhausted.
func (p *Pager) Close() error {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
	return p.session.Close()
}
