package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tomatool/walkthrough/internal/progress"
)

// EventPrefix starts every line written by the events sink
const EventPrefix = "WALK_EVENT:"

// EventSummary is the kind of the closing summary line
const EventSummary progress.Kind = "summary"

// Events writes every progress event as a JSON line for UI parsing
type Events struct {
	out io.Writer
	mu  sync.Mutex

	scenarioTotal   int
	scenarioSkipped int
	stepTotal       int
	stepSkipped     int
	errors          int
}

// NewEvents creates an events sink
func NewEvents(out io.Writer) *Events {
	return &Events{out: out}
}

type summary struct {
	Kind             progress.Kind `json:"kind"`
	Scenarios        int           `json:"scenarios"`
	ScenariosSkipped int           `json:"scenarios_skipped"`
	Steps            int           `json:"steps"`
	StepsSkipped     int           `json:"steps_skipped"`
	Errors           int           `json:"errors"`
}

func (e *Events) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(progress.Event{Kind: progress.KindError, Message: err.Error()})
	}
	fmt.Fprintf(e.out, "%s%s\n", EventPrefix, data)
}

// Emit writes ev and updates the counters
func (e *Events) Emit(ev progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case progress.KindScenario:
		e.scenarioTotal++
		if ev.Skipped {
			e.scenarioSkipped++
		}
	case progress.KindStep:
		e.stepTotal++
		if ev.Skipped {
			e.stepSkipped++
		}
	case progress.KindError:
		e.errors++
	}

	e.write(ev)
}

// Summary writes the closing summary line
func (e *Events) Summary() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.write(summary{
		Kind:             EventSummary,
		Scenarios:        e.scenarioTotal,
		ScenariosSkipped: e.scenarioSkipped,
		Steps:            e.stepTotal,
		StepsSkipped:     e.stepSkipped,
		Errors:           e.errors,
	})
}
