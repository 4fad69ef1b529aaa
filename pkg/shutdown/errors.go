package shutdown

import "errors"

var (
	// ErrPhaseTimeout indicates a shutdown phase exceeded its
	// configured budget.
	ErrPhaseTimeout = errors.New("shutdown phase timed out")

	// ErrHookFailure indicates a registered hook returned an error or
	// exceeded its timeout.
	ErrHookFailure = errors.New("shutdown hook failed")

	// ErrDuplicateHook indicates a hook with the same name is already
	// registered.
	ErrDuplicateHook = errors.New("shutdown hook already registered")

	// ErrShutdownStarted indicates the shutdown sequence already began
	// and no further hooks can be registered.
	ErrShutdownStarted = errors.New("shutdown already started")
)
