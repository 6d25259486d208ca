// Package registry holds declared scenarios, their steps and lifecycle hooks.
//
// Scenarios are declared up front through Registry.Given and its modifiers.
// Steps and hooks are declared while a scenario's body runs, through the Scope
// the runner passes to that body. Everything iterates in registration order.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Func is a step body or a lifecycle hook
type Func func(ctx context.Context) error

// Body declares the steps and hooks of a scenario through s
type Body func(ctx context.Context, s *Scope) error

// Flags are the selection modifiers of a scenario or step
type Flags struct {
	Skip   bool
	Only   bool
	Always bool
}

// Step is a single named check within a scenario
type Step struct {
	Name string
	Fn   Func
	Flags
}

// Scenario is a named group of steps plus lifecycle hooks
type Scenario struct {
	Name string
	Body Body
	Flags

	hooks [4]HookSet
	steps *OrderedMap[string, *Step]
}

func newScenario(name string, body Body, flags Flags) *Scenario {
	return &Scenario{
		Name:  name,
		Body:  body,
		Flags: flags,
		steps: NewOrderedMap[string, *Step](),
	}
}

// Hooks returns the hooks of the given kind in registration order
func (s *Scenario) Hooks(kind HookKind) []Func {
	return s.hooks[kind].Funcs()
}

// Steps returns the declared steps in registration order
func (s *Scenario) Steps() []*Step {
	out := make([]*Step, 0, s.steps.Len())
	for _, st := range s.steps.All() {
		out = append(out, st)
	}
	return out
}

// Registry is the ordered set of declared scenarios
type Registry struct {
	mu        sync.Mutex
	scenarios *OrderedMap[string, *Scenario]
}

// New creates an empty registry
func New() *Registry {
	return &Registry{scenarios: NewOrderedMap[string, *Scenario]()}
}

// Register inserts or replaces the scenario stored under name. A replaced
// scenario keeps the run position of its first registration; flags are not
// merged, the last registration wins.
func (r *Registry) Register(name string, body Body, flags Flags) {
	if body == nil {
		flags.Skip = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios.Set(name, newScenario(name, body, flags))
}

// Given declares a scenario
func (r *Registry) Given(name string, body Body) {
	r.Register(name, body, Flags{})
}

// GivenSkip declares a scenario that never runs
func (r *Registry) GivenSkip(name string) {
	r.Register(name, nil, Flags{Skip: true})
}

// GivenOnly declares a scenario that excludes every scenario not marked only
func (r *Registry) GivenOnly(name string, body Body) {
	r.Register(name, body, Flags{Only: true})
}

// GivenAlways declares a scenario that runs regardless of only and skip
func (r *Registry) GivenAlways(name string, body Body) {
	r.Register(name, body, Flags{Always: true})
}

// Scenario returns the scenario registered under name
func (r *Registry) Scenario(name string) (*Scenario, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenarios.Get(name)
}

// Scenarios returns every scenario in run order
func (r *Registry) Scenarios() []*Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Scenario, 0, r.scenarios.Len())
	for _, sc := range r.scenarios.All() {
		out = append(out, sc)
	}
	return out
}

// Len returns the number of registered scenarios
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenarios.Len()
}

// ErrScopeClosed is wrapped by every UsageError
var ErrScopeClosed = errors.New("registration scope is closed")

// UsageError reports a step or hook registered outside the body of the
// scenario it targets.
type UsageError struct {
	Scenario string
	Call     string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s called outside the body of scenario %q", e.Call, e.Scenario)
}

func (e *UsageError) Unwrap() error {
	return ErrScopeClosed
}
