// Package seq has small helpers for ordered sequences used by scenario code.
// None of them modify their input.
package seq

import "slices"

// Insert returns a copy of s with items inserted before index i. The index is
// clamped to the bounds of s.
func Insert[T any](s []T, i int, items ...T) []T {
	i = max(0, min(i, len(s)))
	out := make([]T, 0, len(s)+len(items))
	out = append(out, s[:i]...)
	out = append(out, items...)
	return append(out, s[i:]...)
}

// Remove returns a copy of s without the element at index i. Out of range
// indexes return an unchanged copy.
func Remove[T any](s []T, i int) []T {
	out := slices.Clone(s)
	if i < 0 || i >= len(s) {
		return out
	}
	return slices.Delete(out, i, i+1)
}

// Pick returns the elements of s that are among items, in the order of s
func Pick[T comparable](s []T, items ...T) []T {
	return slices.DeleteFunc(slices.Clone(s), func(v T) bool {
		return !slices.Contains(items, v)
	})
}

// Omit returns the elements of s that are not among items, in the order of s
func Omit[T comparable](s []T, items ...T) []T {
	return slices.DeleteFunc(slices.Clone(s), func(v T) bool {
		return slices.Contains(items, v)
	})
}
