package shutdown

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Hook is a custom step run after the built-in phases. Hooks run
// sequentially in priority order, highest first, ties broken by
// registration order.
type Hook struct {
	// Name identifies the hook; names are unique per orchestrator
	Name string

	// Priority orders execution, highest first
	Priority int

	// Timeout bounds the hook's execution. Zero falls back to the
	// orchestrator's phase timeout.
	Timeout time.Duration

	// Run performs the hook's work. The context is cancelled when the
	// timeout elapses; the hook is expected to observe it.
	Run func(ctx context.Context) error
}

// hookList keeps hooks in registration order and materializes the
// execution order on demand. Callers hold the orchestrator's mutex.
type hookList struct {
	hooks []Hook
	names map[string]struct{}
}

func newHookList() *hookList {
	return &hookList{names: make(map[string]struct{})}
}

func (l *hookList) add(h Hook) error {
	if h.Name == "" {
		return fmt.Errorf("hook name is required")
	}
	if h.Run == nil {
		return fmt.Errorf("hook %q: run function is required", h.Name)
	}
	if _, exists := l.names[h.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHook, h.Name)
	}
	l.names[h.Name] = struct{}{}
	l.hooks = append(l.hooks, h)
	return nil
}

// ordered returns the hooks in execution order. The sort is stable, so
// equal priorities keep their registration order.
func (l *hookList) ordered() []Hook {
	out := make([]Hook, len(l.hooks))
	copy(out, l.hooks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
