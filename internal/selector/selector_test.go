package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tomatool/walkthrough/internal/registry"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry[string]
		want    map[string]bool
	}{
		{
			name:    "empty",
			entries: nil,
			want:    map[string]bool{},
		},
		{
			name: "no modifiers runs everything",
			entries: []Entry[string]{
				{ID: "a"}, {ID: "b"},
			},
			want: map[string]bool{"a": false, "b": false},
		},
		{
			name: "own skip flag",
			entries: []Entry[string]{
				{ID: "a"}, {ID: "b", Flags: registry.Flags{Skip: true}},
			},
			want: map[string]bool{"a": false, "b": true},
		},
		{
			name: "only excludes siblings",
			entries: []Entry[string]{
				{ID: "a", Flags: registry.Flags{Only: true}}, {ID: "b"}, {ID: "c"},
			},
			want: map[string]bool{"a": false, "b": true, "c": true},
		},
		{
			name: "always overrides only exclusion",
			entries: []Entry[string]{
				{ID: "S1", Flags: registry.Flags{Only: true}},
				{ID: "S2"},
				{ID: "S3", Flags: registry.Flags{Always: true}},
			},
			want: map[string]bool{"S1": false, "S2": true, "S3": false},
		},
		{
			name: "always overrides own skip",
			entries: []Entry[string]{
				{ID: "a", Flags: registry.Flags{Skip: true, Always: true}},
			},
			want: map[string]bool{"a": false},
		},
		{
			name: "own skip beats only",
			entries: []Entry[string]{
				{ID: "a", Flags: registry.Flags{Skip: true, Only: true}},
				{ID: "b"},
			},
			want: map[string]bool{"a": true, "b": true},
		},
		{
			name: "always alone does not exclude siblings",
			entries: []Entry[string]{
				{ID: "a", Flags: registry.Flags{Always: true}}, {ID: "b"},
			},
			want: map[string]bool{"a": false, "b": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.entries))
		})
	}
}

func TestScenariosAndSteps(t *testing.T) {
	body := func(ctx context.Context, s *registry.Scope) error { return nil }

	r := registry.New()
	r.GivenOnly("S1", body)
	r.Given("S2", body)
	r.GivenAlways("S3", body)

	assert.Equal(t, map[string]bool{"S1": false, "S2": true, "S3": false}, Scenarios(r.Scenarios()))

	steps := []*registry.Step{
		{Name: "a", Flags: registry.Flags{Only: true}},
		{Name: "b"},
	}
	assert.Equal(t, map[string]bool{"a": false, "b": true}, Steps(steps))
}
