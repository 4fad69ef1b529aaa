// Package shutdown implements the ordered, time-bounded shutdown
// sequence: stop admitting work, drain in-flight requests and
// streaming sessions, clean up resources, optionally save a snapshot,
// then run registered hooks.
//
// The sequence is a strictly forward state machine with one live
// instance per process. Every phase races against the configured phase
// timeout independently, so total wall-clock time can be a multiple of
// that timeout. A phase failure moves the machine to Failed in strict
// mode; in force mode it is logged and the sequence continues.
package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ntufar/fsgate/internal/logger"
	"github.com/ntufar/fsgate/pkg/statestore"
)

// AdmissionDrainer exposes the admission controller's in-flight count
// to the drain phase.
type AdmissionDrainer interface {
	PendingOperations() int
}

// StreamDrainer exposes the streaming manager's live sessions to the
// drain and cleanup phases.
type StreamDrainer interface {
	ActiveSessionCount() int
	CancelAll(reason string) int
}

// Config tunes the shutdown sequence.
type Config struct {
	// PhaseTimeout bounds each phase independently.
	// Default: 30s
	PhaseTimeout time.Duration

	// PollInterval is the drain phase's sampling interval.
	// Default: 100ms
	PollInterval time.Duration

	// Force makes phase and hook failures non-fatal: they are logged
	// and the sequence continues. Without it, the first failure moves
	// the machine to Failed.
	Force bool

	// SaveState enables the save-state phase when a sink is wired.
	SaveState bool

	// NotifyClients invokes the client notification collaborator while
	// stopping new requests.
	NotifyClients bool

	// CleanupResources enables the resource cleanup phase.
	CleanupResources bool

	// LogShutdown logs every phase transition.
	LogShutdown bool

	// Version is stamped into saved snapshots.
	Version string
}

func (c *Config) applyDefaults() {
	if c.PhaseTimeout <= 0 {
		c.PhaseTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
}

// Deps are the collaborators the sequence drains and tears down. Only
// Admission and Streams are required; nil optional collaborators skip
// their step.
type Deps struct {
	Admission AdmissionDrainer
	Streams   StreamDrainer

	// StopNewRequests flips the request facade into refusal mode
	StopNewRequests func()

	// NotifyClients informs connected clients of the impending
	// shutdown; consulted only when Config.NotifyClients is set
	NotifyClients func(reason string)

	// Cleanup releases external resources during the cleanup phase
	Cleanup func(ctx context.Context) error

	// CloseConnections tears down transports during the
	// closing-connections phase
	CloseConnections func(ctx context.Context) error

	// StateSink receives the snapshot during the save-state phase
	StateSink statestore.Sink

	// Snapshot builds the snapshot to save; when nil, a minimal
	// snapshot is derived from the drainers' counters
	Snapshot func() statestore.Snapshot
}

// Orchestrator owns the shutdown state machine.
//
// Thread safety: all methods are safe for concurrent use.
// InitiateShutdown is idempotent: the first caller runs the sequence,
// concurrent callers block until it finishes and observe the same
// outcome.
type Orchestrator struct {
	cfg  Config
	deps Deps

	// now is the time source, replaceable in tests
	now func() time.Time

	mu      sync.Mutex
	hooks   *hookList
	started bool
	status  Status
	err     error

	// done closes when the sequence reaches a terminal phase
	done chan struct{}
}

// New creates an orchestrator for the given collaborators.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		hooks: newHookList(),
		done:  make(chan struct{}),
	}
}

// RegisterHook adds a custom step to run after the built-in phases.
// Names must be unique; registration is rejected once the sequence
// started.
func (o *Orchestrator) RegisterHook(h Hook) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrShutdownStarted
	}
	return o.hooks.add(h)
}

// Status returns a point-in-time view of the sequence. Before
// InitiateShutdown it reports a zero Status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Done returns a channel closed when the sequence reaches Completed or
// Failed.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Err returns the terminal error after Done is closed: nil for
// Completed, the first fatal failure for Failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// InitiateShutdown runs the shutdown sequence and returns its outcome.
//
// Idempotent: the first call executes the sequence; any later or
// concurrent call waits for that execution and returns the same
// result. The reason string is carried into the status and logs.
func (o *Orchestrator) InitiateShutdown(reason string) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		<-o.done
		return o.Err()
	}
	o.started = true
	o.status = Status{
		Phase:     PhaseInitiated,
		Progress:  PhaseInitiated.progress(),
		Message:   "Shutdown initiated",
		Reason:    reason,
		StartTime: o.now(),
	}
	o.sampleLocked()
	o.mu.Unlock()

	if o.cfg.LogShutdown {
		logger.Info("Shutdown initiated: %s", reason)
	}

	err := o.run(reason)

	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
	close(o.done)
	return err
}

func (o *Orchestrator) run(reason string) error {
	o.setPhase(PhaseStoppingNewRequests, "Refusing new requests")
	err := o.bounded("stopping new requests", func(ctx context.Context) error {
		if o.deps.StopNewRequests != nil {
			o.deps.StopNewRequests()
		}
		if o.cfg.NotifyClients && o.deps.NotifyClients != nil {
			o.deps.NotifyClients(reason)
		}
		return nil
	})
	if err != nil {
		if ferr := o.phaseFailure(err); ferr != nil {
			return ferr
		}
	}

	// The drain phase only waits; exceeding its budget is not a
	// failure, the sequence just proceeds with work still open.
	o.setPhase(PhaseWaitingForActiveRequests, "Waiting for in-flight work to drain")
	o.waitForDrain()

	if o.cfg.CleanupResources {
		o.setPhase(PhaseCleaningUpResources, "Cleaning up resources")
		err = o.bounded("cleaning up resources", func(ctx context.Context) error {
			if o.deps.Streams != nil {
				o.deps.Streams.CancelAll("shutdown: cleaning up resources")
			}
			if o.deps.Cleanup != nil {
				return o.deps.Cleanup(ctx)
			}
			return nil
		})
		if err != nil {
			if ferr := o.phaseFailure(err); ferr != nil {
				return ferr
			}
		}
	}

	o.setPhase(PhaseClosingConnections, "Closing connections")
	err = o.bounded("closing connections", func(ctx context.Context) error {
		// Sessions surviving a disabled or failed cleanup phase are
		// cancelled here so nothing outlives its transport
		if o.deps.Streams != nil {
			o.deps.Streams.CancelAll("shutdown: closing connections")
		}
		if o.deps.CloseConnections != nil {
			return o.deps.CloseConnections(ctx)
		}
		return nil
	})
	if err != nil {
		if ferr := o.phaseFailure(err); ferr != nil {
			return ferr
		}
	}

	if o.cfg.SaveState && o.deps.StateSink != nil {
		o.setPhase(PhaseSavingState, "Saving state")
		err = o.bounded("saving state", func(ctx context.Context) error {
			return o.deps.StateSink.Save(ctx, o.snapshot(reason))
		})
		if err != nil {
			if ferr := o.phaseFailure(err); ferr != nil {
				return ferr
			}
		}
	}

	for _, h := range o.orderedHooks() {
		if err := o.runHook(h); err != nil {
			if o.cfg.Force {
				logger.Warn("Skipping failed shutdown hook: %v", err)
				continue
			}
			return o.fail(err)
		}
	}

	o.setPhase(PhaseCompleted, "Shutdown complete")
	return nil
}

// waitForDrain polls both drainers until they report zero or the phase
// budget elapses. It never fails: an expired budget is logged and the
// sequence proceeds with the work still open.
func (o *Orchestrator) waitForDrain() {
	deadline := time.After(o.cfg.PhaseTimeout)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		pending, active := o.sample()
		if pending == 0 && active == 0 {
			return
		}
		select {
		case <-ticker.C:
		case <-deadline:
			logger.Warn("Drain timed out after %s with %d pending operation(s), %d active session(s); proceeding",
				o.cfg.PhaseTimeout, pending, active)
			return
		}
	}
}

// bounded runs fn against the phase timeout. The function keeps running
// in its goroutine after a timeout (cancellation is cooperative), but
// the phase itself reports ErrPhaseTimeout.
func (o *Orchestrator) bounded(name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PhaseTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s after %s: %w", name, o.cfg.PhaseTimeout, ErrPhaseTimeout)
	}
}

func (o *Orchestrator) runHook(h Hook) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = o.cfg.PhaseTimeout
	}

	if o.cfg.LogShutdown {
		logger.Debug("Running shutdown hook %q (priority %d)", h.Name, h.Priority)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrHookFailure, h.Name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %q timed out after %s", ErrHookFailure, h.Name, timeout)
	}
}

// phaseFailure applies the failure policy: fatal in strict mode,
// logged and skipped in force mode.
func (o *Orchestrator) phaseFailure(err error) error {
	if o.cfg.Force {
		logger.Warn("Continuing past shutdown phase failure: %v", err)
		return nil
	}
	return o.fail(err)
}

// fail moves the machine to Failed, keeping the progress already
// reached, and returns the error for the caller to propagate.
func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	o.status.Phase = PhaseFailed
	o.status.Message = err.Error()
	o.sampleLocked()
	o.mu.Unlock()

	logger.Error("Shutdown failed: %v", err)
	return err
}

// setPhase advances the machine, resampling the live counters.
// Progress never decreases within one invocation.
func (o *Orchestrator) setPhase(p Phase, msg string) {
	o.mu.Lock()
	o.status.Phase = p
	if mp := p.progress(); mp > o.status.Progress {
		o.status.Progress = mp
	}
	o.status.Message = msg
	o.sampleLocked()
	progress := o.status.Progress
	o.mu.Unlock()

	if o.cfg.LogShutdown {
		logger.Info("Shutdown phase %s (%d%%): %s", p, progress, msg)
	}
}

func (o *Orchestrator) sample() (pending, active int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sampleLocked()
	return o.status.PendingOperations, o.status.ActiveConnections
}

func (o *Orchestrator) sampleLocked() {
	if o.deps.Admission != nil {
		o.status.PendingOperations = o.deps.Admission.PendingOperations()
	}
	if o.deps.Streams != nil {
		o.status.ActiveConnections = o.deps.Streams.ActiveSessionCount()
	}
}

func (o *Orchestrator) orderedHooks() []Hook {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hooks.ordered()
}

// snapshot builds the save-state payload, preferring the wired
// snapshot collaborator.
func (o *Orchestrator) snapshot(reason string) statestore.Snapshot {
	if o.deps.Snapshot != nil {
		return o.deps.Snapshot()
	}

	pending, active := o.sample()
	return statestore.Snapshot{
		Timestamp: o.now(),
		Version:   o.cfg.Version,
		Resources: statestore.ResourceStats{
			PendingOperations: pending,
			ActiveSessions:    active,
		},
		Health: statestore.HealthStatus{
			Status:  "shutting_down",
			Message: reason,
		},
	}
}
