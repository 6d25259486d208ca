package progress

import (
	"fmt"
	"sync"
	"time"
)

// Reporter stamps events with the run counters and forwards them to a Sink.
//
// The scenario and step counters are advanced only by the runner through
// ScenarioStarted, ScenarioSkipped, StepStarted and StepSkipped. The event
// counter restarts for every step and advances with each numbered in-step
// event. Counters never affect control flow.
type Reporter struct {
	sink  Sink
	start time.Time
	now   func() time.Time

	mu          sync.Mutex
	scenarioNo  int
	stepNo      int
	eventNo     int
	curScenario string
	curStep     string
}

// NewReporter creates a reporter writing to sink
func NewReporter(sink Sink) *Reporter {
	if sink == nil {
		sink = Discard
	}
	return &Reporter{sink: sink, start: time.Now(), now: time.Now}
}

// WithClock replaces the clock used for elapsed times
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	r.start = now()
	return r
}

// Counters returns the current scenario, step and event numbers
func (r *Reporter) Counters() (scenario, step, event int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenarioNo, r.stepNo, r.eventNo
}

func (r *Reporter) emit(ev Event, numbered bool) {
	r.mu.Lock()
	if numbered {
		r.eventNo++
	}
	ev.ScenarioNo = r.scenarioNo
	ev.StepNo = r.stepNo
	if numbered {
		ev.EventNo = r.eventNo
	}
	if ev.Scenario == "" {
		ev.Scenario = r.curScenario
	}
	if ev.Step == "" && ev.Kind != KindScenario {
		ev.Step = r.curStep
	}
	ev.Elapsed = r.now().Sub(r.start)
	r.mu.Unlock()

	r.sink.Emit(ev)
}

// ScenarioStarted reports a scenario about to run its hooks and steps
func (r *Reporter) ScenarioStarted(name string) {
	r.scenarioEvent(name, false)
}

// ScenarioSkipped reports a scenario excluded from this run
func (r *Reporter) ScenarioSkipped(name string) {
	r.scenarioEvent(name, true)
}

func (r *Reporter) scenarioEvent(name string, skipped bool) {
	r.mu.Lock()
	r.scenarioNo++
	r.stepNo = 0
	r.eventNo = 0
	r.curScenario = name
	r.curStep = ""
	r.mu.Unlock()

	r.emit(Event{Kind: KindScenario, Scenario: name, Skipped: skipped}, false)
}

// StepStarted reports a step about to run
func (r *Reporter) StepStarted(name string) {
	r.stepEvent(name, false)
}

// StepSkipped reports a step excluded from this run
func (r *Reporter) StepSkipped(name string) {
	r.stepEvent(name, true)
}

func (r *Reporter) stepEvent(name string, skipped bool) {
	r.mu.Lock()
	r.stepNo++
	r.curStep = name
	r.mu.Unlock()

	r.emit(Event{Kind: KindStep, Step: name, Skipped: skipped}, false)
}

// ResetEvents restarts the in-step event counter
func (r *Reporter) ResetEvents() {
	r.mu.Lock()
	r.eventNo = 0
	r.mu.Unlock()
}

// Paused reports that the gate is holding execution
func (r *Reporter) Paused(message string) {
	r.emit(Event{Kind: KindPause, Message: message}, false)
}

// Instruct prints an instruction for the operator
func (r *Reporter) Instruct(message string) {
	r.emit(Event{Kind: KindInstruct, Message: message}, false)
}

// Usage reports a misuse of the command line
func (r *Reporter) Usage(message string) {
	r.emit(Event{Kind: KindUsage, Message: message}, false)
}

// Done reports the end of the run
func (r *Reporter) Done(message string) {
	r.emit(Event{Kind: KindDone, Message: message}, false)
}

// Action reports something the scenario or the system under test did
func (r *Reporter) Action(message string, args ...any) {
	r.emit(Event{Kind: KindAction, Message: message, Args: args}, true)
}

// Skip reports an action that was skipped
func (r *Reporter) Skip(message string, args ...any) {
	r.emit(Event{Kind: KindSkip, Message: message, Args: args}, true)
}

// Ignore reports a lifecycle point that was deliberately bypassed. It does
// not advance the event counter.
func (r *Reporter) Ignore(message string, args ...any) {
	r.emit(Event{Kind: KindIgnore, Message: message, Args: args}, false)
}

// Err reports an error observed during a step
func (r *Reporter) Err(message string, args ...any) {
	r.emit(Event{Kind: KindError, Message: message, Args: args}, true)
}

// Event reports an event emitted by the system under test
func (r *Reporter) Event(name string, tags []string, fields map[string]any) {
	r.emit(Event{Kind: KindEvent, Message: name, Tags: tags, Fields: fields}, true)
}

// Ext reports that an extension point fired. scope is server, request or
// route; from names the route for route scoped points.
func (r *Reporter) Ext(scope, point, from string) {
	r.emit(Event{Kind: KindExt, Scope: scope, Message: point, From: from}, true)
}

// Log reports free form output. It does not advance the event counter.
func (r *Reporter) Log(message string, args ...any) {
	r.emit(Event{Kind: KindLog, Message: message, Args: args}, false)
}

// Comments reports one comment event per message
func (r *Reporter) Comments(messages ...string) {
	for _, m := range messages {
		r.emit(Event{Kind: KindComment, Message: m}, false)
	}
}

// Commentf reports a single formatted comment
func (r *Reporter) Commentf(format string, args ...any) {
	r.Comments(fmt.Sprintf(format, args...))
}

// Bullets reports a nested key/value dump
func (r *Reporter) Bullets(style Style, title string, fields map[string]any) {
	r.emit(Event{Kind: KindBullets, Style: style, Message: title, Fields: fields}, false)
}
