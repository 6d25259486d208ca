package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/selector"
)

// ErrAlreadyRan is returned when Run is called a second time
var ErrAlreadyRan = errors.New("runner: registry already executed")

// Result summarises a completed run
type Result struct {
	Scenarios        int
	ScenariosSkipped int
	Steps            int
	StepsSkipped     int
}

// Runner executes the scenarios of a registry in order
type Runner struct {
	registry *registry.Registry
	gate     Gate
	reporter Reporter
	ran      atomic.Bool
}

// New creates a runner over reg
func New(reg *registry.Registry, gate Gate, reporter Reporter) *Runner {
	return &Runner{
		registry: reg,
		gate:     gate,
		reporter: reporter,
	}
}

// Run executes every selected scenario. The first error returned by a
// scenario body, hook or step aborts the run and is returned as is, wrapped
// with the scenario and step it came from. The stepper is shut down only when
// every scenario completed.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	if !r.ran.CompareAndSwap(false, true) {
		return res, ErrAlreadyRan
	}

	scenarios := r.registry.Scenarios()
	skip := selector.Scenarios(scenarios)

	log.Debug().Int("scenarios", len(scenarios)).Msg("starting run")

	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if skip[sc.Name] {
			log.Debug().Str("scenario", sc.Name).Msg("skipping scenario")
			r.reporter.ScenarioSkipped(sc.Name)
			res.ScenariosSkipped++
			continue
		}

		if err := r.runScenario(ctx, sc, &res); err != nil {
			return res, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		res.Scenarios++
	}

	if err := r.gate.Shutdown(); err != nil {
		return res, fmt.Errorf("shutting down stepper: %w", err)
	}

	log.Debug().
		Int("scenarios", res.Scenarios).
		Int("steps", res.Steps).
		Msg("run complete")

	return res, nil
}

func (r *Runner) runScenario(ctx context.Context, sc *registry.Scenario, res *Result) error {
	scope := registry.NewScope(sc)
	defer scope.Seal()

	if sc.Body != nil {
		if err := sc.Body(ctx, scope); err != nil {
			return fmt.Errorf("declaring: %w", err)
		}
	}
	scope.Seal()

	r.reporter.ScenarioStarted(sc.Name)

	if err := runHooks(ctx, sc.Hooks(registry.Before)); err != nil {
		return fmt.Errorf("before hook: %w", err)
	}

	steps := sc.Steps()
	skip := selector.Steps(steps)

	for _, st := range steps {
		r.reporter.ResetEvents()

		if skip[st.Name] {
			r.reporter.StepSkipped(st.Name)
			res.StepsSkipped++
			continue
		}

		if err := r.runStep(ctx, sc, st); err != nil {
			return fmt.Errorf("step %q: %w", st.Name, err)
		}
		res.Steps++
	}

	if err := runHooks(ctx, sc.Hooks(registry.After)); err != nil {
		return fmt.Errorf("after hook: %w", err)
	}

	r.gate.ScenarioBoundary()
	return nil
}

func (r *Runner) runStep(ctx context.Context, sc *registry.Scenario, st *registry.Step) error {
	if err := r.gate.Next(ctx, "Next step: "+st.Name); err != nil {
		return err
	}

	r.reporter.StepStarted(st.Name)
	log.Debug().Str("scenario", sc.Name).Str("step", st.Name).Msg("running step")

	if err := runHooks(ctx, sc.Hooks(registry.BeforeEach)); err != nil {
		return fmt.Errorf("beforeEach hook: %w", err)
	}

	if st.Fn != nil {
		if err := st.Fn(ctx); err != nil {
			return err
		}
	}

	if err := r.gate.AwaitPending(ctx); err != nil {
		return fmt.Errorf("waiting for pending work: %w", err)
	}

	if err := runHooks(ctx, sc.Hooks(registry.AfterEach)); err != nil {
		return fmt.Errorf("afterEach hook: %w", err)
	}

	return nil
}

func runHooks(ctx context.Context, hooks []registry.Func) error {
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}
