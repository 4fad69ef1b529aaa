package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_SpeedRecomputedOncePerSecond(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(1000, false, clock.Now)

	tr.add(100)
	assert.Zero(t, tr.snapshot().Speed, "no estimate before the interval elapses")

	clock.Advance(500 * time.Millisecond)
	tr.add(100)
	assert.Zero(t, tr.snapshot().Speed, "half a second is below the recomputation interval")

	clock.Advance(500 * time.Millisecond)
	tr.add(100)

	p := tr.snapshot()
	// 300 bytes over exactly one second since the last recomputation
	assert.InDelta(t, 300.0, p.Speed, 0.01)
	assert.Equal(t, float64(30), p.Percentage)

	// 700 bytes remain at 300 B/s
	remainingSeconds := 700.0 / 300.0
	wantETA := time.Duration(remainingSeconds * float64(time.Second))
	assert.InDelta(t, float64(wantETA), float64(p.ETA), float64(10*time.Millisecond))
}

func TestTracker_EstimateStableBetweenIntervals(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(1000, false, clock.Now)

	clock.Advance(time.Second)
	tr.add(200)
	first := tr.snapshot().Speed

	// Rapid small updates within the next second must not move the
	// estimate
	for i := 0; i < 10; i++ {
		clock.Advance(50 * time.Millisecond)
		tr.add(10)
	}
	assert.Equal(t, first, tr.snapshot().Speed)
}

func TestTracker_PercentageCapsAtHundred(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(100, false, clock.Now)

	tr.add(250)
	assert.Equal(t, float64(100), tr.snapshot().Percentage)
}

func TestTracker_UnknownTotal(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(0, false, clock.Now)

	clock.Advance(2 * time.Second)
	tr.add(500)

	p := tr.snapshot()
	assert.Zero(t, p.Percentage)
	assert.Zero(t, p.ETA, "no ETA without a total")
	assert.Equal(t, uint64(500), p.ProcessedBytes)
}

func TestTracker_ItemMode(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(200, true, clock.Now)

	tr.add(50)
	p := tr.snapshot()
	assert.Equal(t, uint64(200), p.TotalItems)
	assert.Equal(t, uint64(50), p.ProcessedItems)
	assert.Zero(t, p.TotalBytes)
	assert.Zero(t, p.ProcessedBytes)
}
