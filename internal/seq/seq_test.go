package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsert(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		index int
		items []string
		want  []string
	}{
		{"front", []string{"b", "c"}, 0, []string{"a"}, []string{"a", "b", "c"}},
		{"middle", []string{"a", "d"}, 1, []string{"b", "c"}, []string{"a", "b", "c", "d"}},
		{"end", []string{"a"}, 1, []string{"b"}, []string{"a", "b"}},
		{"clamped high", []string{"a"}, 10, []string{"b"}, []string{"a", "b"}},
		{"clamped low", []string{"b"}, -3, []string{"a"}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]string(nil), tt.in...)
			assert.Equal(t, tt.want, Insert(in, tt.index, tt.items...))
			assert.Equal(t, tt.in, in, "input must not change")
		})
	}
}

func TestRemove(t *testing.T) {
	in := []int{1, 2, 3}
	assert.Equal(t, []int{1, 3}, Remove(in, 1))
	assert.Equal(t, []int{1, 2, 3}, Remove(in, 7))
	assert.Equal(t, []int{1, 2, 3}, in)
}

func TestPickOmit(t *testing.T) {
	args := []string{"--step", "routes", "all", "auth"}

	assert.Equal(t, []string{"routes", "auth"}, Omit(args, "--step", "all"))
	assert.Equal(t, []string{"--step", "all"}, Pick(args, "all", "--step"))
	assert.Equal(t, []string{"--step", "routes", "all", "auth"}, args)
}
