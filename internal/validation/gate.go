// Package validation decides whether a field value is eligible to be saved.
//
// A Gate is the single source of truth for that decision: the session runs
// Check before scheduling a save, and the same Gate maps validation failures
// returned by the store into the same Result shape with Interpret.
package validation

import (
	"sync"

	"github.com/iudanet/fieldsync/internal/syncerr"
)

// Rule inspects a value and returns a reason when the value is rejected.
type Rule func(value string) *syncerr.Reason

// Result is the outcome of a gate check. A Result without reasons is accepted.
type Result struct {
	Reasons []syncerr.Reason
}

// Accepted reports whether the value passed every rule.
func (r Result) Accepted() bool {
	return len(r.Reasons) == 0
}

// Gate is an ordered list of rules. A nil *Gate accepts every value.
type Gate struct {
	rules []Rule
}

// New creates a gate from rules, evaluated in order.
func New(rules ...Rule) *Gate {
	return &Gate{rules: rules}
}

// Check runs every rule against value. It has no side effects.
func (g *Gate) Check(value string) Result {
	if g == nil {
		return Result{}
	}

	var reasons []syncerr.Reason
	for _, rule := range g.rules {
		if reason := rule(value); reason != nil {
			reasons = append(reasons, *reason)
		}
	}

	return Result{Reasons: dedupe(reasons)}
}

// Interpret maps reasons returned by the store into a Result.
func (g *Gate) Interpret(reasons []syncerr.Reason) Result {
	if len(reasons) == 0 {
		// Сервер отклонил значение без пояснений
		reasons = []syncerr.Reason{{Code: "rejected", Message: "value rejected by the store"}}
	}
	return Result{Reasons: dedupe(reasons)}
}

// Err converts a rejected result into a *syncerr.ValidationError.
// It returns nil for an accepted result.
func (g *Gate) Err(field string, r Result) error {
	if r.Accepted() {
		return nil
	}
	return &syncerr.ValidationError{Field: field, Reasons: r.Reasons}
}

// dedupe убирает повторяющиеся причины по коду, сохраняя порядок
func dedupe(reasons []syncerr.Reason) []syncerr.Reason {
	if len(reasons) < 2 {
		return reasons
	}

	seen := make(map[string]bool, len(reasons))
	out := reasons[:0:0]
	for _, r := range reasons {
		key := r.Code
		if key == "" {
			key = r.Message
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Registry maps field IDs to gates. Fields without a registered gate use
// the fallback, which accepts everything unless replaced.
type Registry struct {
	gates    map[string]*Gate
	fallback *Gate
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]*Gate)}
}

// Register sets the gate for a field ID.
func (r *Registry) Register(fieldID string, gate *Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[fieldID] = gate
}

// SetFallback sets the gate used for unregistered fields.
func (r *Registry) SetFallback(gate *Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = gate
}

// For returns the gate for a field ID.
func (r *Registry) For(fieldID string) *Gate {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if g, ok := r.gates[fieldID]; ok {
		return g
	}
	return r.fallback
}
