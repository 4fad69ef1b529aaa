package admission

import "fmt"

// DenyReason is the machine-readable classification of a denial.
type DenyReason string

const (
	// DenyBlocked means the identity is serving a temporary block.
	DenyBlocked DenyReason = "blocked"

	// DenyConcurrencyExceeded means the identity has too many requests
	// in flight.
	DenyConcurrencyExceeded DenyReason = "concurrency_exceeded"

	// DenyRateLimited means a sliding-window count or the burst gate
	// rejected the request.
	DenyRateLimited DenyReason = "rate_limited"

	// DenyOperationLimit means an operation-specific payload check
	// failed (file too large, directory too deep, too many results).
	DenyOperationLimit DenyReason = "operation_limit_exceeded"
)

// Decision is the outcome of an admission check.
//
// A denied decision always carries a reason and a human-readable
// message; RetryAfterSeconds is set only where a retry hint is
// meaningful (blocks and window denials, never concurrency denials).
type Decision struct {
	Allowed           bool
	Reason            DenyReason
	Message           string
	RetryAfterSeconds int

	// Limits is the effective limit set the check ran against,
	// after any rule overrides.
	Limits ResourceLimits

	// Details carries structured context for operation-limit denials
	// (requested value, configured cap).
	Details map[string]any
}

func allow(limits ResourceLimits) Decision {
	return Decision{Allowed: true, Limits: limits}
}

func deny(reason DenyReason, limits ResourceLimits, retryAfter int, format string, v ...any) Decision {
	return Decision{
		Allowed:           false,
		Reason:            reason,
		Message:           fmt.Sprintf(format, v...),
		RetryAfterSeconds: retryAfter,
		Limits:            limits,
	}
}
