// Package selector decides which scenarios and steps run in a pass.
//
// Precedence: always beats everything; an entity's own skip flag beats only,
// and only excludes every entity without it.
// Scenarios and the steps of each scenario are resolved independently.
package selector

import "github.com/tomatool/walkthrough/internal/registry"

// Entry is one entity taking part in a resolution
type Entry[K comparable] struct {
	ID    K
	Flags registry.Flags
}

// Resolve returns the effective skip decision of every entry
func Resolve[K comparable](entries []Entry[K]) map[K]bool {
	only := make(map[K]struct{})
	always := make(map[K]struct{})
	for _, e := range entries {
		if e.Flags.Only {
			only[e.ID] = struct{}{}
		}
		if e.Flags.Always {
			always[e.ID] = struct{}{}
		}
	}

	skip := make(map[K]bool, len(entries))
	for _, e := range entries {
		skip[e.ID] = e.Flags.Skip
	}

	if len(only) > 0 {
		for id := range skip {
			if _, ok := only[id]; !ok {
				skip[id] = true
			}
		}
	}

	for id := range always {
		skip[id] = false
	}

	return skip
}

// Scenarios resolves a list of scenarios by name
func Scenarios(scs []*registry.Scenario) map[string]bool {
	entries := make([]Entry[string], 0, len(scs))
	for _, sc := range scs {
		entries = append(entries, Entry[string]{ID: sc.Name, Flags: sc.Flags})
	}
	return Resolve(entries)
}

// Steps resolves the steps of one scenario by name
func Steps(steps []*registry.Step) map[string]bool {
	entries := make([]Entry[string], 0, len(steps))
	for _, st := range steps {
		entries = append(entries, Entry[string]{ID: st.Name, Flags: st.Flags})
	}
	return Resolve(entries)
}
