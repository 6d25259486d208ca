package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_Counters(t *testing.T) {
	rec := &Recorder{}
	r := NewReporter(rec)

	r.ScenarioSkipped("S0")
	r.ScenarioStarted("S1")
	r.StepStarted("a")
	r.Action("first")
	r.Ext("request", "onRequest", "")
	r.Log("not numbered")
	r.ResetEvents()
	r.StepSkipped("b")
	r.StepStarted("c")
	r.Action("again")
	r.ScenarioStarted("S2")
	r.StepStarted("d")

	evs := rec.Events()
	require.Len(t, evs, 11)

	assert.Equal(t, Event{Kind: KindScenario, Scenario: "S0", Skipped: true, ScenarioNo: 1}, withoutElapsed(evs[0]))
	assert.Equal(t, 2, evs[1].ScenarioNo)

	assert.Equal(t, "a", evs[3].Step)
	assert.Equal(t, 1, evs[3].EventNo)
	assert.Equal(t, 2, evs[4].EventNo)
	assert.Equal(t, 0, evs[5].EventNo)

	assert.Equal(t, 2, evs[6].StepNo)
	assert.True(t, evs[6].Skipped)
	assert.Equal(t, 3, evs[7].StepNo)
	assert.Equal(t, 1, evs[8].EventNo, "reset between steps")

	assert.Equal(t, 3, evs[9].ScenarioNo)
	assert.Empty(t, evs[9].Step)
	assert.Equal(t, 1, evs[10].StepNo, "step counter restarts per scenario")

	sc, st, ev := r.Counters()
	assert.Equal(t, 3, sc)
	assert.Equal(t, 1, st)
	assert.Equal(t, 0, ev)
}

func TestReporter_Elapsed(t *testing.T) {
	rec := &Recorder{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewReporter(rec).WithClock(func() time.Time { return now })

	now = now.Add(1500 * time.Millisecond)
	r.Paused("next")

	evs := rec.Filter(KindPause)
	require.Len(t, evs, 1)
	assert.Equal(t, 1500*time.Millisecond, evs[0].Elapsed)
	assert.Equal(t, "next", evs[0].Message)
}

func TestMultiSink(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	MultiSink{a, b}.Emit(Event{Kind: KindLog})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func withoutElapsed(ev Event) Event {
	ev.Elapsed = 0
	return ev
}
