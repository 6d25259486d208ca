package stepper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitPending_Empty(t *testing.T) {
	s := New(nil, false)
	require.NoError(t, s.AwaitPending(context.Background()))
}

func TestAwaitPending_WaitsForTracked(t *testing.T) {
	s := New(nil, false)

	start := time.Now()
	s.Go("delayed", func() { time.Sleep(50 * time.Millisecond) })

	require.NoError(t, s.AwaitPending(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestAwaitPending_IgnoresLaterWork(t *testing.T) {
	s := New(nil, false)

	a := s.Track("A")

	done := make(chan error, 1)
	go func() { done <- s.AwaitPending(context.Background()) }()

	// Give the waiter time to take its snapshot before B exists.
	time.Sleep(20 * time.Millisecond)

	b := s.Track("B")
	b.Done()

	select {
	case err := <-done:
		t.Fatalf("await returned before A settled: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	a.Done()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("await did not return after A settled")
	}

	assert.Equal(t, 1, s.Pending(), "B is left for the next join")
	require.NoError(t, s.AwaitPending(context.Background()))
	assert.Equal(t, 0, s.Pending())
}

func TestAwaitPending_LaterWorkDoesNotBlock(t *testing.T) {
	s := New(nil, false)

	a := s.Track("A")
	done := make(chan error, 1)
	go func() { done <- s.AwaitPending(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	s.Track("never settles")
	a.Done()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("work tracked after the call blocked the join")
	}
}

func TestAwaitPending_ContextCancel(t *testing.T) {
	s := New(nil, false)
	s.Track("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.AwaitPending(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, s.Pending())
}

func TestHandle_DoneIdempotent(t *testing.T) {
	s := New(nil, false)
	h := s.Track("x")
	h.Done()
	h.Done()

	assert.Equal(t, "x", h.Label())
	select {
	case <-h.Settled():
	default:
		t.Fatal("handle not settled")
	}
}
