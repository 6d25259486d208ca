package registry

import (
	"sync"
)

// Scope is the registration surface handed to a scenario body. It writes into
// that scenario only and is sealed once the body returns; any registration
// after that panics with a *UsageError.
type Scope struct {
	mu     sync.Mutex
	sc     *Scenario
	sealed bool
}

// NewScope opens a registration scope for sc
func NewScope(sc *Scenario) *Scope {
	return &Scope{sc: sc}
}

// Name returns the name of the scenario being declared
func (s *Scope) Name() string {
	return s.sc.Name
}

// Seal closes the scope
func (s *Scope) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Step inserts or replaces a step. A step without a body is a skipped
// placeholder.
func (s *Scope) Step(name string, fn Func, flags Flags) {
	if fn == nil {
		flags.Skip = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkOpen("step " + name)
	s.sc.steps.Set(name, &Step{Name: name, Fn: fn, Flags: flags})
}

// It declares a step
func (s *Scope) It(name string, fn Func) {
	s.Step(name, fn, Flags{})
}

// ItSkip declares a step that never runs
func (s *Scope) ItSkip(name string) {
	s.Step(name, nil, Flags{Skip: true})
}

// ItOnly declares a step that excludes its siblings not marked only
func (s *Scope) ItOnly(name string, fn Func) {
	s.Step(name, fn, Flags{Only: true})
}

// ItAlways declares a step that runs regardless of only and skip
func (s *Scope) ItAlways(name string, fn Func) {
	s.Step(name, fn, Flags{Always: true})
}

// Hook adds fn to the hook set of the given kind
func (s *Scope) Hook(kind HookKind, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkOpen(kind.String())
	s.sc.hooks[kind].Add(fn)
}

// Before runs fn once before the first step
func (s *Scope) Before(fn Func) { s.Hook(Before, fn) }

// After runs fn once after the last step
func (s *Scope) After(fn Func) { s.Hook(After, fn) }

// BeforeEach runs fn before every executed step
func (s *Scope) BeforeEach(fn Func) { s.Hook(BeforeEach, fn) }

// AfterEach runs fn after every executed step
func (s *Scope) AfterEach(fn Func) { s.Hook(AfterEach, fn) }

func (s *Scope) checkOpen(call string) {
	if s.sealed {
		panic(&UsageError{Scenario: s.sc.Name, Call: call})
	}
}
