package registry

import (
	"fmt"
	"unsafe"
)

// HookKind names one of the four lifecycle hook sets of a scenario
type HookKind int

const (
	Before HookKind = iota
	After
	BeforeEach
	AfterEach
)

func (k HookKind) String() string {
	switch k {
	case Before:
		return "before"
	case After:
		return "after"
	case BeforeEach:
		return "beforeEach"
	case AfterEach:
		return "afterEach"
	default:
		return fmt.Sprintf("HookKind(%d)", int(k))
	}
}

// HookSet is an insertion-ordered set of hook functions. Adding the same
// function value twice keeps only the first registration.
type HookSet struct {
	fns  []Func
	seen map[uintptr]struct{}
}

// Add appends fn unless the identical function value is already present.
// It reports whether fn was added.
func (h *HookSet) Add(fn Func) bool {
	if fn == nil {
		return false
	}
	if h.seen == nil {
		h.seen = make(map[uintptr]struct{})
	}
	key := funcKey(fn)
	if _, ok := h.seen[key]; ok {
		return false
	}
	h.seen[key] = struct{}{}
	h.fns = append(h.fns, fn)
	return true
}

// Len returns the number of hooks in the set
func (h *HookSet) Len() int {
	return len(h.fns)
}

// Funcs returns the hooks in registration order
func (h *HookSet) Funcs() []Func {
	out := make([]Func, len(h.fns))
	copy(out, h.fns)
	return out
}

// funcKey returns the address of the closure a func value points to. Two
// values share a key when they are the same closure instance, the same
// top-level function or the same func literal capturing nothing. Capturing
// closures created by separate evaluations never do.
// The set keeps every added func alive, so the address stays valid.
func funcKey(fn Func) uintptr {
	return *(*uintptr)(unsafe.Pointer(&fn))
}
