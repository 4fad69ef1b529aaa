package admission

import (
	"context"
	"time"

	"github.com/ntufar/fsgate/internal/logger"
)

const (
	// DefaultSweepInterval is how often the maintenance sweep runs.
	DefaultSweepInterval = 5 * time.Minute

	// idleEvictionAge is how long a usage record must sit idle (with
	// zero concurrency) before the sweep evicts it.
	idleEvictionAge = 24 * time.Hour

	// logRetention is how long request log entries survive without a
	// matching EndRequest.
	logRetention = 24 * time.Hour

	// violationThreshold is the violation count at which the sweep's
	// enforcement pass blocks an identity.
	violationThreshold = 5

	// violationBlockDuration is how long an enforcement block lasts.
	violationBlockDuration = 15 * time.Minute
)

// sweepResult summarizes one maintenance pass.
type sweepResult struct {
	evicted int
	trimmed int
	blocked int
}

// RunSweeper runs the periodic maintenance sweep until the context is
// cancelled. Intended to run in its own goroutine:
//
//	go ctrl.RunSweeper(ctx, admission.DefaultSweepInterval)
func (c *Controller) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("Admission sweeper started (interval %v)", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Admission sweeper stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep runs one maintenance pass immediately:
//
//   - enforcement: identities with violations at or above the threshold
//     and no active block are blocked for violationBlockDuration
//   - eviction: records idle beyond idleEvictionAge with zero
//     concurrency are dropped
//   - log trim: entries older than logRetention are removed regardless
//     of completion
//
// Safe to call concurrently with admission checks; each record is
// visited under its own lock.
func (c *Controller) Sweep() {
	now := c.now()
	res := c.sweep(now)

	if res.evicted > 0 || res.trimmed > 0 || res.blocked > 0 {
		logger.Info("Admission sweep: evicted %d idle identities, trimmed %d log entries, blocked %d identities",
			res.evicted, res.trimmed, res.blocked)
	}

	c.metrics.RecordSweep(res.evicted, res.trimmed, res.blocked)
	c.metrics.SetTrackedIdentities(c.usage.len())
}

func (c *Controller) sweep(now time.Time) sweepResult {
	var res sweepResult

	for _, rec := range c.usage.all() {
		rec.mu.Lock()

		if rec.violations >= violationThreshold && !rec.block.inEffect(now) {
			rec.block = blockedUntil(now.Add(violationBlockDuration))
			// Counter resets with the block so the identity is not
			// re-blocked forever once the block expires.
			rec.violations = 0
			res.blocked++
			logger.Warn("Identity %s/%s blocked until %s after repeated limit violations",
				rec.identity.UserID, rec.identity.ClientID,
				rec.block.until.Format(time.RFC3339))
			rec.mu.Unlock()
			continue
		}

		idle := now.Sub(rec.lastRequestAt) > idleEvictionAge
		evictable := idle && rec.concurrency == 0 && !rec.block.inEffect(now)
		key := rec.identity.key()
		rec.mu.Unlock()

		if evictable {
			c.usage.remove(key)
			res.evicted++
		}
	}

	res.trimmed = c.log.trim(now.Add(-logRetention))
	return res
}
