package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tomatool/walkthrough/internal/config"
	"github.com/tomatool/walkthrough/internal/formatter"
	"github.com/tomatool/walkthrough/internal/logging"
	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/runlog"
	"github.com/tomatool/walkthrough/internal/runner"
	"github.com/tomatool/walkthrough/internal/scenarios"
	"github.com/tomatool/walkthrough/internal/seq"
	"github.com/tomatool/walkthrough/internal/stepper"
	"github.com/tomatool/walkthrough/internal/sut"
)

var errNoScenarios = errors.New("no scenarios provided")

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios against the demo server",
	ArgsUsage: "[scenario...|all]",
	Description: `Runs the named scenarios, or every scenario with "all" or "*". Without
arguments the scenarios listed in the config file are used. Flags override
the config file.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "config file path (optional)",
		},
		&cli.BoolFlag{
			Name:    "step",
			Aliases: []string{"s"},
			Usage:   "pause at every step and lifecycle point",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: pretty or events",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "diagnostic log level",
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "address the demo server listens on",
		},
		&cli.BoolFlag{
			Name:  "record",
			Usage: "keep the event and debug logs in a run directory",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "abort the run after this long",
		},
	},
	Action: runScenarios,
}

func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("step") {
		cfg.Settings.Step = c.Bool("step")
	}
	if c.IsSet("output") {
		cfg.Settings.Output = c.String("output")
	}
	if c.IsSet("log-level") {
		cfg.Settings.LogLevel = c.String("log-level")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("record") {
		cfg.Settings.Record = c.Bool("record")
	}
	if c.IsSet("timeout") {
		cfg.Settings.Timeout = c.Duration("timeout")
	}
	if c.Args().Present() {
		cfg.Scenarios = c.Args().Slice()
	}
}

// selectScenarios resolves the requested names against the catalog
func selectScenarios(cfg *config.Config) ([]string, error) {
	if cfg.RunAll() {
		return scenarios.Names(), nil
	}
	wanted := seq.Omit(cfg.Scenarios, "all", "*")
	if len(wanted) == 0 {
		return nil, errNoScenarios
	}
	if err := scenarios.Validate(wanted); err != nil {
		return nil, err
	}
	return wanted, nil
}

func runScenarios(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return err
	}
	applyRunFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	var run *runlog.Run
	if cfg.Settings.Record {
		run, err = runlog.Open(runlog.DefaultRoot).Create()
		if err != nil {
			return err
		}
	}

	logOpts := logging.Options{Level: cfg.Settings.LogLevel}
	if c.App.ErrWriter != os.Stderr {
		logOpts.Out = c.App.ErrWriter
	}
	if run != nil {
		logOpts.Dir = run.Dir
	}
	closeLog, err := logging.Setup(logOpts)
	if err != nil {
		return err
	}
	defer closeLog()

	sink, err := formatter.New(cfg.Settings.Output, c.App.Writer, formatter.Options{DumpDepth: cfg.Settings.Depth()})
	if err != nil {
		return err
	}
	sinks := progress.MultiSink{sink}
	if run != nil {
		events, err := run.Open("events")
		if err != nil {
			return fmt.Errorf("creating events log: %w", err)
		}
		defer events.Close()
		sinks = append(sinks, formatter.NewEvents(events))
		log.Info().Str("dir", run.Dir).Msg("recording run")
	}
	reporter := progress.NewReporter(sinks)

	names, err := selectScenarios(cfg)
	if err != nil {
		usage(reporter, err)
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Settings.Timeout)
		defer cancel()
	}

	gate := stepper.New(reporter, cfg.Settings.Step)
	store := sut.NewStore()
	env := &scenarios.Env{
		Server: sut.New(cfg.Server.Addr, store, gate, reporter),
		Store:  store,
		Report: reporter,
		Auth:   sut.Credentials{Name: cfg.Server.Auth.Name, Scope: cfg.Server.Auth.Scope},
	}
	defer cleanup(gate, env.Server)

	reg := registry.New()
	if err := scenarios.Register(reg, env, names); err != nil {
		return err
	}

	log.Debug().Strs("scenarios", names).Bool("step", cfg.Settings.Step).Msg("starting walkthrough")

	res, err := execute(ctx, reg, gate, reporter, c.App.Reader, cfg.Settings.Step)

	for _, s := range sinks {
		if sm, ok := s.(formatter.Summarizer); ok {
			sm.Summary()
		}
	}
	if cfg.Settings.Output == formatter.FormatPretty {
		printSummary(c.App.Writer, res, err)
	}

	if errors.Is(err, stepper.ErrOperatorExit) {
		return errors.New("stopped by operator")
	}
	return err
}

// execute runs the registry and, in step mode, listens for operator commands
// until the run is over
func execute(ctx context.Context, reg *registry.Registry, gate *stepper.Stepper, reporter *progress.Reporter, in io.Reader, step bool) (runner.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	listenCtx, stopListening := context.WithCancel(gctx)
	defer stopListening()

	var control *stepper.Control
	if step {
		control = stepper.NewControl(gate, in)
		control.Announce()
	}

	var res runner.Result
	g.Go(func() error {
		defer stopListening()
		var err error
		res, err = runner.New(reg, gate, reporter).Run(gctx)
		return err
	})

	if step {
		g.Go(func() error {
			err := control.Listen(listenCtx)
			switch {
			case err == nil:
				// Input ended; nobody is left to advance the gate
				gate.Disable()
				return nil
			case listenCtx.Err() != nil && errors.Is(err, listenCtx.Err()):
				return nil
			case errors.Is(err, stepper.ErrOperatorExit):
				gate.Disable()
			}
			return err
		})
	}

	err := g.Wait()
	return res, err
}

// cleanup releases anything still waiting on the gate and stops a server the
// Post hooks scenario never reached
func cleanup(gate *stepper.Stepper, srv *sut.Server) {
	gate.Disable()
	if !srv.Running() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("stopping server")
	}
}

func usage(reporter *progress.Reporter, err error) {
	reporter.Usage(err.Error())
	reporter.Instruct("Usage: walkthrough run [options] [scenario...|all]")
	reporter.Instruct("Options:")
	reporter.Instruct("  --step")
	reporter.Instruct("      Interactively step through the scenarios")
	reporter.Instruct("  all")
	reporter.Instruct("      Run all scenarios (overrides other names)")
	reporter.Instruct("Scenario options:")
	for _, name := range scenarios.Names() {
		reporter.Instruct("  " + name)
	}
}

func printSummary(out io.Writer, res runner.Result, err error) {
	line := fmt.Sprintf("%d scenarios (%d skipped), %d steps (%d skipped)",
		res.Scenarios, res.ScenariosSkipped, res.Steps, res.StepsSkipped)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("FAILED"), line)
		return
	}
	fmt.Fprintln(out, successStyle.Render("PASSED"), line)
}

