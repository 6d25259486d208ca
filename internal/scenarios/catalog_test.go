package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/runner"
	"github.com/tomatool/walkthrough/internal/stepper"
	"github.com/tomatool/walkthrough/internal/sut"
)

func newEnv(rep *progress.Reporter, gate *stepper.Stepper) *Env {
	store := sut.NewStore()
	return &Env{
		Server: sut.New("127.0.0.1:0", store, gate, rep),
		Store:  store,
		Report: rep,
		Auth:   sut.Credentials{Name: "john", Scope: []string{"admin"}},
	}
}

func runCatalog(t *testing.T, names []string) (runner.Result, *progress.Recorder, *Env) {
	t.Helper()

	rec := &progress.Recorder{}
	rep := progress.NewReporter(rec)
	gate := stepper.New(rep, false)
	env := newEnv(rep, gate)

	reg := registry.New()
	require.NoError(t, Register(reg, env, names))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := runner.New(reg, gate, rep).Run(ctx)
	t.Cleanup(func() {
		if env.Server.Running() {
			_ = env.Server.Stop(context.Background())
		}
	})
	require.NoError(t, err)
	return res, rec, env
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		unknown []string
	}{
		{"empty", nil, nil},
		{"known", []string{"auth", "validation"}, nil},
		{"flag style", []string{"--auth"}, nil},
		{"unknown", []string{"auth", "nope", "neither"}, []string{"nope", "neither"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.names)
			if tt.unknown == nil {
				assert.NoError(t, err)
				return
			}
			var uerr *UnknownError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.unknown, uerr.Names)
			assert.Equal(t, "unknown scenarios: nope, neither", err.Error())
		})
	}
}

func TestNames_MatchEntries(t *testing.T) {
	names := Names()
	entries := Entries()
	require.Len(t, entries, len(names))
	for i, e := range entries {
		assert.Equal(t, names[i], e.Name)
		assert.NotEmpty(t, e.Title)
		assert.NotEmpty(t, e.Description)
	}
}

func TestRegister_WrapsSelection(t *testing.T) {
	rep := progress.NewReporter(progress.Discard)
	env := newEnv(rep, stepper.New(rep, false))
	reg := registry.New()

	require.NoError(t, Register(reg, env, []string{"validation", "auth"}))

	var got []string
	for _, sc := range reg.Scenarios() {
		got = append(got, sc.Name)
	}
	assert.Equal(t, []string{PreHooks, "Route with auth and validation", "Route with auth", PostHooks}, got)

	pre, ok := reg.Scenario(PreHooks)
	require.True(t, ok)
	assert.True(t, pre.Flags.Always)
}

func TestRegister_Unknown(t *testing.T) {
	rep := progress.NewReporter(progress.Discard)
	reg := registry.New()
	err := Register(reg, newEnv(rep, stepper.New(rep, false)), []string{"nope"})
	assert.Error(t, err)
	assert.Zero(t, reg.Len())
}

func TestRun_OnlyHooks(t *testing.T) {
	res, rec, env := runCatalog(t, nil)

	assert.Equal(t, 2, res.Scenarios)
	assert.Equal(t, 2, res.Steps)
	assert.False(t, env.Server.Running())

	var actions []string
	for _, ev := range rec.Filter(progress.KindAction) {
		actions = append(actions, ev.Message)
	}
	assert.Equal(t, []string{"server started at", "server stopped"}, actions)
}

func TestRun_WholeCatalog(t *testing.T) {
	res, rec, env := runCatalog(t, Names())

	assert.Equal(t, len(Names())+2, res.Scenarios)
	assert.Zero(t, res.ScenariosSkipped)
	assert.False(t, env.Server.Running())
	assert.NotEmpty(t, rec.Filter(progress.KindBullets))
	assert.Len(t, rec.Filter(progress.KindDone), 0)
}

func TestRun_PostResponseWorkSettlesWithinStep(t *testing.T) {
	_, rec, _ := runCatalog(t, []string{"concurrent"})

	lastWork, postHooks := -1, -1
	for i, ev := range rec.Events() {
		switch {
		case ev.Kind == progress.KindComment && ev.Message == "post response work 3 of 3 finished":
			lastWork = i
		case ev.Kind == progress.KindScenario && ev.Scenario == PostHooks:
			postHooks = i
		}
	}
	require.NotEqual(t, -1, lastWork)
	require.NotEqual(t, -1, postHooks)
	assert.Less(t, lastWork, postHooks)
}

func TestRun_Lifecycle(t *testing.T) {
	_, rec, _ := runCatalog(t, []string{"lifecycle"})

	var comments []string
	for _, ev := range rec.Filter(progress.KindComment) {
		comments = append(comments, ev.Message)
	}
	assert.Contains(t, comments, "Route is not yet found")
	assert.Contains(t, comments, "Response was transmitted")

	var response map[string]any
	for _, ev := range rec.Filter(progress.KindBullets) {
		if ev.Message == "response transmitted" {
			response = ev.Fields
		}
	}
	require.NotNil(t, response)
	assert.Equal(t, "john", response["firstName"])
	assert.Equal(t, "doe", response["lastName"])
}

func TestRun_ServerExtensions(t *testing.T) {
	_, rec, _ := runCatalog(t, []string{"server-ext"})

	var errs []string
	for _, ev := range rec.Filter(progress.KindError) {
		errs = append(errs, ev.Message)
	}
	assert.Contains(t, errs, "start failed:")
}
