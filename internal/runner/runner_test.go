package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/stepper"
)

type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	tr.calls = append(tr.calls, s)
	tr.mu.Unlock()
}

func (tr *trace) fn(s string) registry.Func {
	return func(ctx context.Context) error {
		tr.add(s)
		return nil
	}
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

type harness struct {
	reg      *registry.Registry
	stepper  *stepper.Stepper
	recorder *progress.Recorder
	reporter *progress.Reporter
	runner   *Runner
}

func newHarness(step bool, sinks ...progress.Sink) *harness {
	h := &harness{reg: registry.New(), recorder: &progress.Recorder{}}
	h.reporter = progress.NewReporter(append(progress.MultiSink{h.recorder}, sinks...))
	h.stepper = stepper.New(h.reporter, step)
	h.runner = New(h.reg, h.stepper, h.reporter)
	return h
}

type reported struct {
	Kind    progress.Kind
	Name    string
	Skipped bool
}

func (h *harness) reported() []reported {
	var out []reported
	for _, ev := range h.recorder.Filter(progress.KindScenario, progress.KindStep) {
		name := ev.Scenario
		if ev.Kind == progress.KindStep {
			name = ev.Step
		}
		out = append(out, reported{Kind: ev.Kind, Name: name, Skipped: ev.Skipped})
	}
	return out
}

func TestRun_RegistrationOrder(t *testing.T) {
	h := newHarness(false)
	tr := &trace{}

	h.reg.Given("S1", func(ctx context.Context, s *registry.Scope) error {
		tr.add("declare S1")
		s.It("a", tr.fn("S1.a"))
		s.It("b", tr.fn("S1.b"))
		return nil
	})
	h.reg.Given("S2", func(ctx context.Context, s *registry.Scope) error {
		tr.add("declare S2")
		s.It("c", tr.fn("S2.c"))
		return nil
	})

	assert.Empty(t, tr.get(), "bodies do not run at registration")

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"declare S1", "S1.a", "S1.b", "declare S2", "S2.c"}, tr.get())
	assert.Equal(t, []reported{
		{progress.KindScenario, "S1", false},
		{progress.KindStep, "a", false},
		{progress.KindStep, "b", false},
		{progress.KindScenario, "S2", false},
		{progress.KindStep, "c", false},
	}, h.reported())
	assert.Equal(t, Result{Scenarios: 2, Steps: 3}, res)
}

func TestRun_OnlyAndAlways(t *testing.T) {
	h := newHarness(false)
	tr := &trace{}

	body := func(name string) registry.Body {
		return func(ctx context.Context, s *registry.Scope) error {
			s.It("step", tr.fn(name))
			return nil
		}
	}

	h.reg.GivenOnly("S1", body("S1"))
	h.reg.Given("S2", body("S2"))
	h.reg.GivenAlways("S3", body("S3"))

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S3"}, tr.get())
	assert.Equal(t, []reported{
		{progress.KindScenario, "S1", false},
		{progress.KindStep, "step", false},
		{progress.KindScenario, "S2", true},
		{progress.KindScenario, "S3", false},
		{progress.KindStep, "step", false},
	}, h.reported())
	assert.Equal(t, 1, res.ScenariosSkipped)
}

func TestRun_SkippedScenarioBodyNeverRuns(t *testing.T) {
	h := newHarness(false)
	var declared atomic.Bool

	h.reg.Given("S1", func(ctx context.Context, s *registry.Scope) error {
		declared.Store(true)
		return nil
	})
	h.reg.GivenSkip("S1")

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, declared.Load())
}

func TestRun_LastRegistrationWins(t *testing.T) {
	h := newHarness(false)
	tr := &trace{}

	h.reg.GivenSkip("x")
	h.reg.GivenAlways("x", func(ctx context.Context, s *registry.Scope) error {
		s.It("runs", tr.fn("x"))
		return nil
	})
	h.reg.GivenOnly("y", func(ctx context.Context, s *registry.Scope) error { return nil })

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, tr.get())
}

func TestRun_HookBracketOrder(t *testing.T) {
	h := newHarness(false)
	tr := &trace{}

	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		before := tr.fn("before")
		s.Before(before)
		s.Before(before)
		s.After(tr.fn("after"))
		s.BeforeEach(tr.fn("beforeEach"))
		s.AfterEach(tr.fn("afterEach"))

		s.It("one", tr.fn("one"))
		s.ItSkip("skipped")
		s.It("two", tr.fn("two"))
		return nil
	})

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before",
		"beforeEach", "one", "afterEach",
		"beforeEach", "two", "afterEach",
		"after",
	}, tr.get())
	assert.Equal(t, 1, res.StepsSkipped)
}

func TestRun_StepSelection(t *testing.T) {
	h := newHarness(false)
	tr := &trace{}

	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		s.It("a", tr.fn("a"))
		s.ItOnly("b", tr.fn("b"))
		s.ItAlways("c", tr.fn("c"))
		s.It("d", tr.fn("d"))
		return nil
	})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, tr.get())
	assert.Equal(t, []reported{
		{progress.KindScenario, "S", false},
		{progress.KindStep, "a", true},
		{progress.KindStep, "b", false},
		{progress.KindStep, "c", false},
		{progress.KindStep, "d", true},
	}, h.reported())
}

func TestRun_PendingWorkSettlesBeforeNextStep(t *testing.T) {
	h := newHarness(false)
	var settled atomic.Bool
	var observed bool

	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		s.It("fires and forgets", func(ctx context.Context) error {
			h.stepper.Go("late response", func() {
				time.Sleep(50 * time.Millisecond)
				settled.Store(true)
			})
			return nil
		})
		s.It("observes", func(ctx context.Context) error {
			observed = settled.Load()
			return nil
		})
		return nil
	})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, observed)
}

func TestRun_PendingWorkSettlesBeforeAfterEach(t *testing.T) {
	h := newHarness(false)
	var settled atomic.Bool
	var observed bool

	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		s.AfterEach(func(ctx context.Context) error {
			observed = settled.Load()
			return nil
		})
		s.It("tracks", func(ctx context.Context) error {
			handle := h.stepper.Track("callback")
			time.AfterFunc(30*time.Millisecond, func() {
				settled.Store(true)
				handle.Done()
			})
			return nil
		})
		return nil
	})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, observed)
}

func TestRun_GateDisabledNeedsNoSignal(t *testing.T) {
	h := newHarness(false)
	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		s.It("a", func(ctx context.Context) error { return nil })
		s.It("b", func(ctx context.Context) error { return nil })
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.runner.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.recorder.Filter(progress.KindPause))
	assert.Empty(t, h.recorder.Filter(progress.KindDone))
}

func TestRun_SkipScenarioDuringStepMode(t *testing.T) {
	pauses := make(chan progress.Event, 32)
	h := newHarness(true, progress.SinkFunc(func(ev progress.Event) {
		if ev.Kind == progress.KindPause {
			pauses <- ev
		}
	}))
	ctrl := stepper.NewControl(h.stepper, nil)

	for _, name := range []string{"S1", "S2", "S3"} {
		h.reg.Given(name, func(ctx context.Context, s *registry.Scope) error {
			for i := 1; i <= 3; i++ {
				s.It(fmt.Sprintf("%s.%d", name, i), func(ctx context.Context) error { return nil })
			}
			return nil
		})
	}

	go func() {
		skipped := false
		for ev := range pauses {
			if ev.Scenario == "S2" && !skipped {
				skipped = true
				_ = ctrl.Apply(stepper.CommandSkip)
				continue
			}
			_ = ctrl.Apply(stepper.CommandAdvance)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := h.runner.Run(ctx)
	require.NoError(t, err)
	close(pauses)

	assert.Equal(t, 9, res.Steps)

	var got []string
	for _, ev := range h.recorder.Filter(progress.KindPause) {
		got = append(got, ev.Scenario+": "+ev.Message)
	}
	assert.Equal(t, []string{
		"S1: Next step: S1.1",
		"S1: Next step: S1.2",
		"S1: Next step: S1.3",
		"S2: Next step: S2.1",
		"S3: Next step: S3.1",
		"S3: Next step: S3.2",
		"S3: Next step: S3.3",
	}, got)
	assert.Len(t, h.recorder.Filter(progress.KindDone), 1)
}

func TestRun_ErrorsAbortTheRun(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		declare func(s *registry.Scope, tr *trace)
		body    error
		wantErr string
		want    []string
	}{
		{
			name: "step error",
			declare: func(s *registry.Scope, tr *trace) {
				s.After(tr.fn("after"))
				s.It("ok", tr.fn("ok"))
				s.It("fails", func(ctx context.Context) error { return boom })
				s.It("never", tr.fn("never"))
			},
			wantErr: `scenario "S1": step "fails": boom`,
			want:    []string{"ok"},
		},
		{
			name: "before hook error",
			declare: func(s *registry.Scope, tr *trace) {
				s.Before(func(ctx context.Context) error { return boom })
				s.It("never", tr.fn("never"))
			},
			wantErr: `scenario "S1": before hook: boom`,
		},
		{
			name: "afterEach hook error",
			declare: func(s *registry.Scope, tr *trace) {
				s.AfterEach(func(ctx context.Context) error { return boom })
				s.It("runs", tr.fn("runs"))
				s.It("never", tr.fn("never"))
			},
			wantErr: `scenario "S1": step "runs": afterEach hook: boom`,
			want:    []string{"runs"},
		},
		{
			name:    "body error",
			declare: func(s *registry.Scope, tr *trace) { s.It("never", tr.fn("never")) },
			body:    boom,
			wantErr: `scenario "S1": declaring: boom`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(false)
			tr := &trace{}

			h.reg.Given("S1", func(ctx context.Context, s *registry.Scope) error {
				tt.declare(s, tr)
				return tt.body
			})
			h.reg.Given("S2", func(ctx context.Context, s *registry.Scope) error {
				s.It("next scenario", tr.fn("S2"))
				return nil
			})

			_, err := h.runner.Run(context.Background())
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.want, tr.get())

			assert.NoError(t, h.stepper.Shutdown(), "stepper is not shut down after a failed run")
		})
	}
}

func TestRun_RegistrationAfterBodyPanics(t *testing.T) {
	h := newHarness(false)

	var leaked *registry.Scope
	h.reg.Given("S", func(ctx context.Context, s *registry.Scope) error {
		leaked = s
		s.It("registers late", func(ctx context.Context) error {
			leaked.It("late", func(ctx context.Context) error { return nil })
			return nil
		})
		return nil
	})

	assert.PanicsWithError(t, `step late called outside the body of scenario "S"`, func() {
		_, _ = h.runner.Run(context.Background())
	})
}

func TestRun_Twice(t *testing.T) {
	h := newHarness(false)
	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	_, err = h.runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

func TestRun_ConcurrentCallsRunOnce(t *testing.T) {
	h := newHarness(false)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.runner.Run(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ran, rejected int
	for err := range errs {
		if err == nil {
			ran++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyRan)
		rejected++
	}
	assert.Equal(t, 1, ran)
	assert.Equal(t, callers-1, rejected)
}

func TestRun_ContextCancelledBetweenScenarios(t *testing.T) {
	h := newHarness(false)
	ctx, cancel := context.WithCancel(context.Background())

	h.reg.Given("S1", func(ctx context.Context, s *registry.Scope) error {
		s.It("cancels", func(context.Context) error { cancel(); return nil })
		return nil
	})
	h.reg.Given("S2", func(ctx context.Context, s *registry.Scope) error {
		t.Error("S2 must not be declared")
		return nil
	})

	_, err := h.runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
