package rules

import (
	"fmt"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Registry maps rule names to detection rules.
// The seven built-in red-flag rules are registered at construction time;
// operator-defined expression rules may be added afterwards. Lookups by
// unknown name are a normal outcome, not an error: the evaluator's
// contract is lookup-or-skip, so partial or mistyped selections never
// abort a screening run.
type Registry struct {
	mu    sync.RWMutex
	names []string
	rules map[string]domain.Rule
}

// NewRegistry creates a registry pre-loaded with the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{
		rules: make(map[string]domain.Rule),
	}
	for _, rule := range builtinRules() {
		r.names = append(r.names, rule.Name())
		r.rules[rule.Name()] = rule
	}
	return r
}

// Register adds a rule under its name.
// Registering over an existing name is rejected so that a custom rule can
// never shadow a built-in compliance predicate.
func (r *Registry) Register(rule domain.Rule) error {
	if rule == nil || rule.Name() == "" {
		return fmt.Errorf("rule with a non-empty name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.Name()]; exists {
		return fmt.Errorf("rule %q is already registered", rule.Name())
	}

	r.names = append(r.names, rule.Name())
	r.rules[rule.Name()] = rule
	return nil
}

// Get returns the rule registered under name.
func (r *Registry) Get(name string) (domain.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns all registered rule names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.names...)
}

// Count returns the number of registered rules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
