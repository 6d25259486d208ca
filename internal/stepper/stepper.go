// Package stepper implements the cooperative gate that lets an operator pause
// a run between steps, and the pending-work barrier the runner joins after
// every step.
package stepper

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrShutdown is returned by a second call to Shutdown
var ErrShutdown = errors.New("stepper already shut down")

// Notifier receives the stepper's operator facing messages
type Notifier interface {
	Paused(message string)
	Instruct(message string)
	Done(message string)
}

// Stepper gates execution when interactive mode is enabled and tracks
// out-of-band work started by steps.
type Stepper struct {
	notify Notifier

	mu       sync.Mutex
	enabled  bool
	engaged  bool
	shutdown bool
	queue    []*waiter
	restore  *bool

	pendingMu sync.Mutex
	pending   map[*Handle]struct{}
}

// New creates a stepper. With enabled set every Next call waits for Advance.
func New(notify Notifier, enabled bool) *Stepper {
	return &Stepper{
		notify:  notify,
		enabled: enabled,
		engaged: enabled,
		pending: make(map[*Handle]struct{}),
	}
}

// Enabled reports whether Next currently suspends
func (s *Stepper) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Engaged reports whether interactive mode was ever enabled
func (s *Stepper) Engaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engaged
}

// Waiting returns the number of callers suspended in Next
func (s *Stepper) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// waiter is a caller suspended in Next. A release claims a whole snapshot of
// the queue and links it into a chain: only the head is woken, and every
// waiter wakes its successor after it has resumed.
type waiter struct {
	ch      chan struct{}
	next    *waiter
	claimed bool
}

func (w *waiter) wake() {
	if w != nil {
		close(w.ch)
	}
}

// Next returns immediately when interactive mode is off. Otherwise it reports
// message and blocks until Advance, Disable or SkipScenario releases it.
// Concurrent callers are released in the order they arrived.
func (s *Stepper) Next(ctx context.Context, message string) error {
	return s.NextFunc(ctx, message, nil)
}

// NextFunc is Next, running resume once released and before the next queued
// caller is released. Resume callbacks of a release therefore run one at a
// time, in arrival order.
func (s *Stepper) NextFunc(ctx context.Context, message string, resume func()) error {
	s.mu.Lock()
	if !s.enabled || s.shutdown {
		s.mu.Unlock()
		if resume != nil {
			resume()
		}
		return nil
	}
	w := &waiter{ch: make(chan struct{})}
	s.queue = append(s.queue, w)
	s.mu.Unlock()

	if message != "" && s.notify != nil {
		s.notify.Paused(message)
	}

	select {
	case <-w.ch:
		if resume != nil {
			resume()
		}
		s.handOff(w)
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		claimed := w.claimed
		if !claimed {
			for i, q := range s.queue {
				if q == w {
					s.queue = append(s.queue[:i], s.queue[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()
		if claimed {
			// Part of a release chain: pass it on when our turn comes
			go func() {
				<-w.ch
				s.handOff(w)
			}()
		}
		return ctx.Err()
	}
}

func (s *Stepper) handOff(w *waiter) {
	s.mu.Lock()
	next := w.next
	w.next = nil
	s.mu.Unlock()
	next.wake()
}

// Advance releases the waiter at the head of the queue and keeps releasing,
// one by one in arrival order, until the queue as it stood when Advance was
// called is empty. Callers arriving afterwards wait for the next signal.
func (s *Stepper) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Stepper) releaseLocked() {
	queued := s.queue
	s.queue = nil
	if len(queued) == 0 {
		return
	}
	for i, w := range queued {
		w.claimed = true
		if i+1 < len(queued) {
			w.next = queued[i+1]
		}
	}
	queued[0].wake()
	log.Debug().Int("released", len(queued)).Msg("gate advanced")
}

// Disable turns interactive mode off for the rest of the run and releases
// every queued waiter.
func (s *Stepper) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = false
	s.restore = nil
	s.releaseLocked()
	log.Debug().Msg("step mode disabled")
}

// SkipScenario turns interactive mode off until the current scenario ends.
// ScenarioBoundary restores the mode that was active before the first skip.
func (s *Stepper) SkipScenario() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restore == nil {
		was := s.enabled
		s.restore = &was
	}
	s.enabled = false
	s.releaseLocked()
	log.Debug().Bool("restore", *s.restore).Msg("skipping current scenario")
}

// ScenarioBoundary is signalled by the runner when a scenario is finished
func (s *Stepper) ScenarioBoundary() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restore != nil {
		s.enabled = *s.restore
		s.restore = nil
	}
}

// Shutdown ends the stepper. It reports completion when interactive mode was
// ever engaged. Deciding what happens to the hosting process is left to the
// caller.
func (s *Stepper) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.shutdown = true
	s.enabled = false
	s.restore = nil
	s.releaseLocked()
	engaged := s.engaged
	s.mu.Unlock()

	if engaged && s.notify != nil {
		s.notify.Done("All tests completed")
	}
	return nil
}
