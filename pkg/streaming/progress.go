package streaming

import (
	"sync"
	"time"
)

// Progress is a snapshot of a session's transfer state.
//
// Byte sessions fill the byte fields; pagers fill the item fields. The
// Speed and ETA fields are recomputed at most once per second from the
// delta since the previous recomputation, so consumers polling per
// chunk never see noisy instantaneous estimates.
type Progress struct {
	TotalBytes     uint64
	ProcessedBytes uint64
	TotalItems     uint64
	ProcessedItems uint64

	// Percentage is 0-100, or 0 when the total is unknown
	Percentage float64

	// Speed is units (bytes or items) per second
	Speed float64

	// ETA is the estimated remaining time; zero when Speed is zero
	ETA time.Duration

	StartTime  time.Time
	LastUpdate time.Time
}

// speedInterval is the minimum spacing between speed/ETA
// recomputations.
const speedInterval = time.Second

// tracker accumulates processed units and derives the rate-limited
// speed/ETA estimates.
type tracker struct {
	mu sync.Mutex

	now func() time.Time

	// items switches the snapshot to the item fields
	items bool

	total     uint64
	processed uint64
	speed     float64
	eta       time.Duration

	start         time.Time
	lastUpdate    time.Time
	lastCalc      time.Time
	lastProcessed uint64
}

func newTracker(total uint64, items bool, now func() time.Time) *tracker {
	start := now()
	return &tracker{
		now:        now,
		items:      items,
		total:      total,
		start:      start,
		lastUpdate: start,
		lastCalc:   start,
	}
}

// add records delta processed units and recomputes speed/ETA when the
// last recomputation is at least speedInterval old.
func (t *tracker) add(delta uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.processed += delta
	t.lastUpdate = now

	elapsed := now.Sub(t.lastCalc)
	if elapsed < speedInterval {
		return
	}

	t.speed = float64(t.processed-t.lastProcessed) / elapsed.Seconds()
	if t.speed > 0 && t.total > t.processed {
		remaining := float64(t.total - t.processed)
		t.eta = time.Duration(remaining / t.speed * float64(time.Second))
	} else {
		t.eta = 0
	}
	t.lastCalc = now
	t.lastProcessed = t.processed
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{
		Speed:      t.speed,
		ETA:        t.eta,
		StartTime:  t.start,
		LastUpdate: t.lastUpdate,
	}

	if t.total > 0 {
		p.Percentage = float64(t.processed) / float64(t.total) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}

	if t.items {
		p.TotalItems = t.total
		p.ProcessedItems = t.processed
	} else {
		p.TotalBytes = t.total
		p.ProcessedBytes = t.processed
	}
	return p
}

func (t *tracker) processedUnits() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}
