// Package admission implements the admission controller for the FSGate
// control plane: per-identity quotas, sliding-window rate limiting,
// progressive blocking, and concurrency caps enforced in front of every
// file-access operation.
//
// Call flow for upstream handlers:
//
//	decision := ctrl.CheckAdmission(identity, op, opCtx)
//	if !decision.Allowed { return denial }
//	id := ctrl.BeginRequest(identity, op)
//	... do the filesystem work ...
//	ctrl.EndRequest(id, identity, elapsedMs, err == nil)
//
// The check-then-begin sequence is deliberately not atomic: two
// simultaneous checks for one identity can both observe a count just
// under the limit and both be admitted. Enforcement is best-effort by
// design; see the package tests for the exact guarantees.
package admission

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/ntufar/fsgate/internal/logger"
	"github.com/ntufar/fsgate/internal/ratelimiter"
	"github.com/ntufar/fsgate/pkg/metrics"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Controller is the admission controller. It owns the per-identity
// usage table, the shared request log, and the rate limit rule table.
//
// Thread safety:
// All methods are safe for concurrent use. Per-identity state is
// guarded by per-record locks; cross-identity passes (the sweep,
// introspection) take shard snapshots rather than a global lock.
type Controller struct {
	limitsMu sync.RWMutex
	limits   ResourceLimits

	throttle ThrottleConfig

	// burst is the optional token bucket in front of the sliding
	// windows; nil when throttle.BurstLimit is zero.
	burst *ratelimiter.Limiter

	usage *usageTable
	log   *requestLog
	rules *ruleTable

	metrics metrics.AdmissionMetrics

	// now is the time source, replaceable in tests
	now func() time.Time

	statsMu         sync.Mutex
	totalChecked    uint64
	totalDenied     uint64
	totalFailOpen   uint64
	totalBegun      uint64
	totalCompleted  uint64
	totalFailed     uint64
	peakConcurrency int
	totalDurationMs uint64
}

// Stats is a point-in-time summary of controller activity, consumed by
// the shutdown orchestrator and health reporting.
type Stats struct {
	ActiveRequests    int
	TrackedIdentities int
	TotalChecked      uint64
	TotalDenied       uint64
	TotalFailOpen     uint64
	TotalRequests     uint64
	CompletedRequests uint64
	FailedRequests    uint64
	PeakConcurrency   int
	AverageDurationMs float64
}

// NewController creates an admission controller with the given
// effective limits and throttle settings.
//
// Two rules exist by construction: a catch-all "default" rule and a
// stricter "search" rule that halves the per-minute budget for
// search_files (searches walk the tree and are disproportionately
// expensive).
//
// Pass nil metrics for no-op instrumentation.
func NewController(limits ResourceLimits, throttle ThrottleConfig, m metrics.AdmissionMetrics) *Controller {
	if m == nil {
		m = metrics.NewNoopAdmissionMetrics()
	}

	c := &Controller{
		limits:   limits,
		throttle: throttle,
		usage:    newUsageTable(),
		log:      newRequestLog(),
		rules:    newRuleTable(),
		metrics:  m,
		now:      time.Now,
	}

	if throttle.BurstLimit > 0 {
		window := throttle.WindowSize
		if window <= 0 {
			window = minuteWindow
		}
		maxRequests := throttle.MaxRequests
		if maxRequests == 0 {
			maxRequests = limits.MaxRequestsPerMinute
		}
		c.burst = ratelimiter.NewFromWindow(maxRequests, window, throttle.BurstLimit)
	}

	searchPerMinute := limits.MaxRequestsPerMinute / 2
	if searchPerMinute == 0 {
		searchPerMinute = 1
	}

	// Built-in rules; AddRule failures are impossible here (IDs set)
	_ = c.rules.add(RateLimitRule{
		ID:       "default",
		Name:     "Default",
		Pattern:  "*",
		Enabled:  true,
		Priority: 0,
	})
	_ = c.rules.add(RateLimitRule{
		ID:      "search",
		Name:    "Search operations",
		Pattern: string(OpSearchFiles),
		Limits: map[string]any{
			"max_requests_per_minute": searchPerMinute,
		},
		Enabled:  true,
		Priority: 10,
	})

	return c
}

// Limits returns the current global limit set.
func (c *Controller) Limits() ResourceLimits {
	c.limitsMu.RLock()
	defer c.limitsMu.RUnlock()
	return c.limits
}

// SetLimits replaces the global limit set. Takes effect on the next
// check; in-flight requests are not re-evaluated.
func (c *Controller) SetLimits(limits ResourceLimits) {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()
	c.limits = limits
}

// AddRule registers or replaces a rate limit rule.
func (c *Controller) AddRule(r RateLimitRule) error {
	return c.rules.add(r)
}

// RemoveRule deletes a rule by ID, reporting whether it existed.
func (c *Controller) RemoveRule(id string) bool {
	return c.rules.remove(id)
}

// Rules returns all rules in priority-descending order.
func (c *Controller) Rules() []RateLimitRule {
	return c.rules.list()
}

// effectiveLimits resolves the limit set for one check: the global
// limits overlaid with the highest-priority matching rule's overrides.
func (c *Controller) effectiveLimits(op Operation) (ResourceLimits, error) {
	base := c.Limits()
	rule := c.rules.match(op)
	if rule == nil {
		return base, nil
	}
	return rule.apply(base)
}

// CheckAdmission decides whether the identity may execute the
// operation. Checks run in a fixed order and the first failure wins:
//
//  1. active block
//  2. concurrency cap
//  3. per-minute sliding window
//  4. per-hour sliding window
//  5. burst gate (when configured)
//  6. operation-specific payload checks
//
// Failure policy: any internal error or panic during evaluation is
// converted to an allow decision and logged - availability wins over
// strictness for a read-only file service.
func (c *Controller) CheckAdmission(identity Identity, op Operation, opCtx OperationContext) Decision {
	decision := c.checkSafely(identity, op, opCtx)

	c.statsMu.Lock()
	c.totalChecked++
	if !decision.Allowed {
		c.totalDenied++
	}
	c.statsMu.Unlock()

	c.metrics.RecordCheck(string(op), decision.Allowed, string(decision.Reason))
	return decision
}

// checkSafely wraps the evaluation with the fail-open policy.
func (c *Controller) checkSafely(identity Identity, op Operation, opCtx OperationContext) (decision Decision) {
	failOpen := func(cause any) Decision {
		c.statsMu.Lock()
		c.totalFailOpen++
		c.statsMu.Unlock()
		c.metrics.RecordFailOpen()
		logger.Error("Admission check for %s/%s (%s) failed internally: %v - failing open",
			identity.UserID, identity.ClientID, op, cause)
		return allow(c.Limits())
	}

	defer func() {
		if r := recover(); r != nil {
			decision = failOpen(r)
		}
	}()

	d, err := c.evaluate(identity, op, opCtx)
	if err != nil {
		return failOpen(err)
	}
	return d
}

// evaluate runs the ordered admission checks.
func (c *Controller) evaluate(identity Identity, op Operation, opCtx OperationContext) (Decision, error) {
	limits, err := c.effectiveLimits(op)
	if err != nil {
		return Decision{}, err
	}

	now := c.now()
	rec := c.usage.getOrCreate(identity, now)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	// 1. Active block
	if rec.block.inEffect(now) {
		retry := ceilSeconds(rec.block.remaining(now))
		return deny(DenyBlocked, limits, retry,
			"Identity is blocked for %d more seconds", retry), nil
	}

	// 2. Concurrency cap. No retry hint: the caller cannot know when
	// an in-flight request will finish.
	if rec.concurrency >= limits.MaxConcurrentRequests {
		return deny(DenyConcurrencyExceeded, limits, 0,
			"Maximum concurrent requests exceeded (%d active, limit %d)",
			rec.concurrency, limits.MaxConcurrentRequests), nil
	}

	key := identity.key()

	// 3./4. Sliding windows, recomputed from the shared log
	if d, denied := c.checkWindow(key, now, minuteWindow, limits.MaxRequestsPerMinute,
		"minute", limits); denied {
		return d, nil
	}
	if d, denied := c.checkWindow(key, now, hourWindow, limits.MaxRequestsPerHour,
		"hour", limits); denied {
		return d, nil
	}

	// 5. Burst gate
	if c.burst != nil && !c.burst.Allow() {
		return deny(DenyRateLimited, limits, 1,
			"Request burst limit exceeded"), nil
	}

	// 6. Operation-specific payload checks
	if d, denied, err := c.checkOperationLimits(rec, op, opCtx, limits); err != nil {
		return Decision{}, err
	} else if denied {
		return d, nil
	}

	rec.lastRequestAt = now
	return allow(limits), nil
}

// checkWindow applies one sliding-window cap. The retry hint is derived
// from the oldest entry in the violated window: the window frees a slot
// when that entry ages out.
func (c *Controller) checkWindow(key identityKey, now time.Time, window time.Duration, limit uint, unit string, limits ResourceLimits) (Decision, bool) {
	if limit == 0 {
		return Decision{}, false
	}

	count, oldest := c.log.countSince(key, now.Add(-window))
	if count < limit {
		return Decision{}, false
	}

	retry := 0
	if !oldest.IsZero() {
		retry = ceilSeconds(oldest.Add(window).Sub(now))
	}
	return deny(DenyRateLimited, limits, retry,
		"Rate limit exceeded: %d requests per %s (limit %d)",
		count+1, unit, limit), true
}

// readFileContext, listDirectoryContext and searchContext are the typed
// views of the operation context bag.
type readFileContext struct {
	FileSize uint64 `mapstructure:"file_size"`
}

type listDirectoryContext struct {
	Depth uint `mapstructure:"depth"`
}

type searchContext struct {
	MaxResults uint `mapstructure:"max_results"`
}

// checkOperationLimits applies the operation-specific payload caps.
// Violations increment the identity's violation counter; rate and
// concurrency denials do not. The caller holds rec.mu.
func (c *Controller) checkOperationLimits(rec *usageRecord, op Operation, opCtx OperationContext, limits ResourceLimits) (Decision, bool, error) {
	if len(opCtx) == 0 {
		return Decision{}, false, nil
	}

	violation := func(message string, requested, limit any) Decision {
		rec.violations++
		d := deny(DenyOperationLimit, limits, 0, "%s", message)
		d.Details = map[string]any{
			"operation": string(op),
			"requested": requested,
			"limit":     limit,
		}
		return d
	}

	switch op {
	case OpReadFile:
		var rc readFileContext
		if err := decodeOpContext(opCtx, &rc); err != nil {
			return Decision{}, false, err
		}
		if limits.MaxFileSize > 0 && rc.FileSize > limits.MaxFileSize {
			return violation(
				fmt.Sprintf("File size %d exceeds maximum allowed %d", rc.FileSize, limits.MaxFileSize),
				rc.FileSize, limits.MaxFileSize), true, nil
		}

	case OpListDirectory:
		var lc listDirectoryContext
		if err := decodeOpContext(opCtx, &lc); err != nil {
			return Decision{}, false, err
		}
		if limits.MaxDirectoryDepth > 0 && lc.Depth > limits.MaxDirectoryDepth {
			return violation(
				fmt.Sprintf("Directory depth %d exceeds maximum allowed %d", lc.Depth, limits.MaxDirectoryDepth),
				lc.Depth, limits.MaxDirectoryDepth), true, nil
		}

	case OpSearchFiles:
		var sc searchContext
		if err := decodeOpContext(opCtx, &sc); err != nil {
			return Decision{}, false, err
		}
		if limits.MaxSearchResults > 0 && sc.MaxResults > limits.MaxSearchResults {
			return violation(
				fmt.Sprintf("Requested result count %d exceeds maximum allowed %d", sc.MaxResults, limits.MaxSearchResults),
				sc.MaxResults, limits.MaxSearchResults), true, nil
		}
	}

	return Decision{}, false, nil
}

func decodeOpContext(opCtx OperationContext, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building operation context decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(opCtx)); err != nil {
		return fmt.Errorf("decoding operation context: %w", err)
	}
	return nil
}

// BeginRequest records the start of an admitted request and returns the
// request ID the caller must pass to EndRequest.
func (c *Controller) BeginRequest(identity Identity, op Operation) string {
	id := uuid.NewString()
	now := c.now()

	c.log.append(id, identity.key(), op, now)

	rec := c.usage.getOrCreate(identity, now)
	rec.mu.Lock()
	rec.concurrency++
	rec.totalRequests++
	rec.lastRequestAt = now
	rec.mu.Unlock()

	active := c.log.len()

	c.statsMu.Lock()
	c.totalBegun++
	if active > c.peakConcurrency {
		c.peakConcurrency = active
	}
	c.statsMu.Unlock()

	c.metrics.SetActiveRequests(active)
	return id
}

// EndRequest records completion of a request started by BeginRequest.
//
// A double EndRequest for the same ID is harmless: the log removal is a
// no-op and the concurrency decrement floors at zero.
func (c *Controller) EndRequest(requestID string, identity Identity, durationMs int64, success bool) {
	op := ""
	if entry, ok := c.log.remove(requestID); ok {
		op = string(entry.operation)
	} else {
		logger.Debug("EndRequest for unknown or already-removed request %s", requestID)
	}

	rec := c.usage.getOrCreate(identity, c.now())
	rec.mu.Lock()
	if rec.concurrency > 0 {
		rec.concurrency--
	}
	rec.mu.Unlock()

	if durationMs < 0 {
		durationMs = 0
	}

	c.statsMu.Lock()
	c.totalCompleted++
	if !success {
		c.totalFailed++
	}
	c.totalDurationMs += uint64(durationMs)
	c.statsMu.Unlock()

	c.metrics.SetActiveRequests(c.log.len())
	c.metrics.RecordRequestComplete(op, time.Duration(durationMs)*time.Millisecond, success)
}

// PendingOperations returns the number of requests currently between
// BeginRequest and EndRequest. The shutdown orchestrator polls this
// during its drain phase.
func (c *Controller) PendingOperations() int {
	return c.log.len()
}

// Usage returns a snapshot of every live usage record.
func (c *Controller) Usage() []UsageSnapshot {
	records := c.usage.all()
	out := make([]UsageSnapshot, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.snapshot())
	}
	return out
}

// Stats returns a point-in-time activity summary.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	avg := 0.0
	if c.totalCompleted > 0 {
		avg = float64(c.totalDurationMs) / float64(c.totalCompleted)
	}

	return Stats{
		ActiveRequests:    c.log.len(),
		TrackedIdentities: c.usage.len(),
		TotalChecked:      c.totalChecked,
		TotalDenied:       c.totalDenied,
		TotalFailOpen:     c.totalFailOpen,
		TotalRequests:     c.totalBegun,
		CompletedRequests: c.totalCompleted,
		FailedRequests:    c.totalFailed,
		PeakConcurrency:   c.peakConcurrency,
		AverageDurationMs: avg,
	}
}

// ceilSeconds converts a duration to whole seconds, rounding up and
// clamping at zero.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
