package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopBody(ctx context.Context, s *Scope) error { return nil }

func names(scs []*Scenario) []string {
	var out []string
	for _, sc := range scs {
		out = append(out, sc.Name)
	}
	return out
}

func TestRegistry_Order(t *testing.T) {
	r := New()
	r.Given("S1", noopBody)
	r.Given("S2", noopBody)
	r.Given("S3", noopBody)

	assert.Equal(t, []string{"S1", "S2", "S3"}, names(r.Scenarios()))
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_ReplaceKeepsSlot(t *testing.T) {
	r := New()
	r.Given("S1", noopBody)
	r.Given("S2", noopBody)
	r.GivenOnly("S1", noopBody)

	assert.Equal(t, []string{"S1", "S2"}, names(r.Scenarios()))

	sc, ok := r.Scenario("S1")
	require.True(t, ok)
	assert.True(t, sc.Only)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	tests := []struct {
		name    string
		declare func(r *Registry)
		want    Flags
	}{
		{
			name: "skip then always",
			declare: func(r *Registry) {
				r.GivenSkip("x")
				r.GivenAlways("x", noopBody)
			},
			want: Flags{Always: true},
		},
		{
			name: "always then skip",
			declare: func(r *Registry) {
				r.GivenAlways("x", noopBody)
				r.GivenSkip("x")
			},
			want: Flags{Skip: true},
		},
		{
			name: "only then plain",
			declare: func(r *Registry) {
				r.GivenOnly("x", noopBody)
				r.Given("x", noopBody)
			},
			want: Flags{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			tt.declare(r)

			sc, ok := r.Scenario("x")
			require.True(t, ok)
			assert.Equal(t, tt.want, sc.Flags)
		})
	}
}

func TestRegistry_NilBodyIsSkipped(t *testing.T) {
	r := New()
	r.Given("placeholder", nil)

	sc, _ := r.Scenario("placeholder")
	assert.True(t, sc.Skip)
}

func TestScope_Steps(t *testing.T) {
	sc := newScenario("S", noopBody, Flags{})
	s := NewScope(sc)

	fn := func(ctx context.Context) error { return nil }
	s.It("a", fn)
	s.ItSkip("b")
	s.ItOnly("c", fn)
	s.ItAlways("d", fn)
	s.It("a", nil)

	steps := sc.Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, "a", steps[0].Name)
	assert.True(t, steps[0].Skip, "replaced with a placeholder")
	assert.Nil(t, steps[0].Fn)
	assert.True(t, steps[1].Skip)
	assert.True(t, steps[2].Only)
	assert.True(t, steps[3].Always)
}

func TestScope_HooksDeduplicate(t *testing.T) {
	sc := newScenario("S", noopBody, Flags{})
	s := NewScope(sc)

	var calls []string
	first := func(ctx context.Context) error { calls = append(calls, "first"); return nil }
	second := func(ctx context.Context) error { calls = append(calls, "second"); return nil }

	s.Before(first)
	s.Before(second)
	s.Before(first)
	s.After(second)
	s.BeforeEach(first)
	s.AfterEach(second)
	s.AfterEach(second)

	require.Len(t, sc.Hooks(Before), 2)
	assert.Len(t, sc.Hooks(After), 1)
	assert.Len(t, sc.Hooks(BeforeEach), 1)
	assert.Len(t, sc.Hooks(AfterEach), 1)

	for _, h := range sc.Hooks(Before) {
		require.NoError(t, h(context.Background()))
	}
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestScope_DistinctClosuresAreKept(t *testing.T) {
	sc := newScenario("S", noopBody, Flags{})
	s := NewScope(sc)

	var got []int
	for i := 0; i < 3; i++ {
		s.Before(func(ctx context.Context) error { got = append(got, i); return nil })
	}

	assert.Len(t, sc.Hooks(Before), 3)
}

func TestScope_SealedPanics(t *testing.T) {
	sc := newScenario("S", noopBody, Flags{})
	s := NewScope(sc)
	s.Seal()

	defer func() {
		rec := recover()
		require.NotNil(t, rec)

		err, ok := rec.(error)
		require.True(t, ok)

		var usage *UsageError
		require.True(t, errors.As(err, &usage))
		assert.Equal(t, "S", usage.Scenario)
		assert.ErrorIs(t, err, ErrScopeClosed)
	}()

	s.It("late", func(ctx context.Context) error { return nil })
}

func TestScope_SealedHookPanics(t *testing.T) {
	sc := newScenario("S", noopBody, Flags{})
	s := NewScope(sc)
	s.Seal()

	assert.PanicsWithError(t, `afterEach called outside the body of scenario "S"`, func() {
		s.AfterEach(func(ctx context.Context) error { return nil })
	})
}

func TestOrderedMap(t *testing.T) {
	m := NewOrderedMap[string, int]()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, m.Keys())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.True(t, m.Has("a"))
	assert.False(t, m.Has("c"))

	var seen []string
	for k := range m.All() {
		seen = append(seen, k)
		break
	}
	assert.Equal(t, []string{"b"}, seen)
}
