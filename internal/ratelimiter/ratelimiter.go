package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter smooths request bursts using the token bucket algorithm.
//
// This wraps golang.org/x/time/rate to provide:
//   - Token bucket rate limiting (allows bursts while enforcing sustained rate)
//   - Context-aware waiting (respects cancellation)
//   - Zero-allocation fast path for allowed requests
//   - Thread-safe operation
//
// The admission controller uses a Limiter as its burst gate: tokens are
// replenished at the sustained rate derived from the throttle window,
// and the bucket capacity is the configured burst limit. The sliding
// windows enforce exact counts; the burst gate only flattens spikes
// inside the window.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter with the given sustained rate and burst
// capacity.
//
// A zero rate means unlimited: the limiter always allows.
func New(requestsPerSecond float64, burst uint) *Limiter {
	if requestsPerSecond == 0 {
		// Unlimited rate: use a very high limit.
		// rate.Inf has edge cases with Wait, so use a large value.
		requestsPerSecond = 1_000_000_000
		burst = uint(requestsPerSecond)
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// NewFromWindow creates a Limiter whose sustained rate is maxRequests
// spread evenly across the window, with the given burst capacity.
//
// Example: NewFromWindow(100, time.Minute, 20) sustains ~1.67 req/s and
// absorbs bursts of up to 20 requests.
func NewFromWindow(maxRequests uint, window time.Duration, burst uint) *Limiter {
	if window <= 0 || maxRequests == 0 {
		return New(0, 0)
	}
	perSecond := float64(maxRequests) / window.Seconds()
	if burst == 0 {
		burst = maxRequests
	}
	return New(perSecond, burst)
}

// Allow checks if a request is allowed right now, consuming one token
// on success. This is the fast path - it never waits.
func (r *Limiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *Limiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit updates the sustained rate without recreating the limiter.
func (r *Limiter) SetLimit(requestsPerSecond float64) {
	if requestsPerSecond == 0 {
		requestsPerSecond = 1_000_000_000
	}
	r.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// SetBurst updates the burst capacity.
func (r *Limiter) SetBurst(burst uint) {
	r.limiter.SetBurst(int(burst))
}

// Tokens returns the current number of available tokens. Primarily
// useful for monitoring and tests; the value may change immediately
// after this call.
func (r *Limiter) Tokens() float64 {
	return r.limiter.Tokens()
}
