package admission

import (
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// RateLimitRule selects an alternative limit set for matching
// operations.
//
// Rules are stored by ID and evaluated in priority-descending order;
// the first enabled rule whose pattern matches the operation wins. A
// matching rule's Limits entries override the corresponding fields of
// the global ResourceLimits for that single check (fields the rule does
// not mention keep their global values).
type RateLimitRule struct {
	// ID uniquely identifies the rule for add/remove
	ID string

	// Name is a human-readable label used in logs
	Name string

	// Pattern is a glob matched against the operation name
	// ("*" matches every operation)
	Pattern string

	// Limits holds per-field overrides keyed by the limit option name
	// (e.g. "max_requests_per_minute"). Decoded weakly, so integers of
	// any width are accepted.
	Limits map[string]any

	// Throttle optionally replaces the controller's throttle settings
	// for matching operations
	Throttle *ThrottleConfig

	// Enabled gates the rule without removing it
	Enabled bool

	// Priority orders evaluation; higher wins
	Priority int
}

// matches reports whether the rule applies to the operation.
func (r *RateLimitRule) matches(op Operation) bool {
	if !r.Enabled {
		return false
	}
	if r.Pattern == "" || r.Pattern == "*" {
		return true
	}
	ok, err := path.Match(r.Pattern, string(op))
	if err != nil {
		// Malformed pattern never matches
		return false
	}
	return ok
}

// apply overlays the rule's overrides onto a copy of the base limits.
func (r *RateLimitRule) apply(base ResourceLimits) (ResourceLimits, error) {
	if len(r.Limits) == 0 {
		return base, nil
	}

	effective := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &effective,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return base, fmt.Errorf("rule %s: building decoder: %w", r.ID, err)
	}
	if err := dec.Decode(r.Limits); err != nil {
		return base, fmt.Errorf("rule %s: decoding limit overrides: %w", r.ID, err)
	}
	return effective, nil
}

// ruleTable stores rules by ID and answers priority-ordered matches.
type ruleTable struct {
	mu    sync.RWMutex
	rules map[string]*RateLimitRule
}

func newRuleTable() *ruleTable {
	return &ruleTable{rules: make(map[string]*RateLimitRule)}
}

// add stores the rule, replacing any rule with the same ID.
func (t *ruleTable) add(r RateLimitRule) error {
	if r.ID == "" {
		return fmt.Errorf("rate limit rule requires an ID")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rule := r
	t.rules[r.ID] = &rule
	return nil
}

func (t *ruleTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rules[id]; !ok {
		return false
	}
	delete(t.rules, id)
	return true
}

// match returns the highest-priority enabled rule matching the
// operation, or nil when nothing matches. Equal priorities tie-break on
// rule ID so evaluation order is deterministic.
func (t *ruleTable) match(op Operation) *RateLimitRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	candidates := make([]*RateLimitRule, 0, len(t.rules))
	for _, r := range t.rules {
		if r.matches(op) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}

// list returns all rules in priority-descending order.
func (t *ruleTable) list() []RateLimitRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RateLimitRule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
