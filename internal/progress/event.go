// Package progress carries structured progress notifications from the runner,
// the stepper and the system under test to a rendering Sink.
package progress

import (
	"sync"
	"time"
)

// Kind identifies the type of a progress event
type Kind string

const (
	KindScenario Kind = "scenario"
	KindStep     Kind = "step"
	KindPause    Kind = "pause"
	KindInstruct Kind = "instruct"
	KindUsage    Kind = "usage"
	KindDone     Kind = "done"

	// In-step events, numbered per step
	KindAction  Kind = "action"
	KindSkip    Kind = "skip"
	KindIgnore  Kind = "ignore"
	KindError   Kind = "error"
	KindEvent   Kind = "event"
	KindExt     Kind = "ext"
	KindLog     Kind = "log"
	KindComment Kind = "comment"
	KindBullets Kind = "bullets"
)

// Style is the tone a bullet dump is rendered with
type Style string

const (
	StyleSuccess Style = "success"
	StyleFail    Style = "fail"
	StyleInfo    Style = "info"
)

// Event is a single progress notification. Events are plain values; sinks
// decide how to render them.
type Event struct {
	Kind     Kind   `json:"kind"`
	Scenario string `json:"scenario,omitempty"`
	Step     string `json:"step,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Message  string `json:"message,omitempty"`
	Args     []any  `json:"args,omitempty"`

	// Ext events
	Scope string `json:"scope,omitempty"` // server, request, route
	From  string `json:"from,omitempty"`

	// Event and bullets payloads
	Tags   []string       `json:"tags,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Style  Style          `json:"style,omitempty"`

	ScenarioNo int           `json:"scenario_no,omitempty"`
	StepNo     int           `json:"step_no,omitempty"`
	EventNo    int           `json:"event_no,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Sink receives progress events
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// MultiSink forwards every event to each sink in order
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Recorder keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of the given kinds
func (r *Recorder) Filter(kinds ...Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
