package stepper

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle is a unit of out-of-band work tracked by the stepper
type Handle struct {
	label string
	once  sync.Once
	done  chan struct{}
}

// Label returns the label the work was tracked with
func (h *Handle) Label() string {
	return h.label
}

// Done marks the work as settled. Calling it more than once is harmless.
func (h *Handle) Done() {
	h.once.Do(func() {
		close(h.done)
		log.Debug().Str("work", h.label).Msg("pending work settled")
	})
}

// Settled returns a channel closed once Done has been called
func (h *Handle) Settled() <-chan struct{} {
	return h.done
}

// Track registers a unit of work whose completion is signalled later through
// the returned handle.
func (s *Stepper) Track(label string) *Handle {
	h := &Handle{label: label, done: make(chan struct{})}

	s.pendingMu.Lock()
	s.pending[h] = struct{}{}
	s.pendingMu.Unlock()

	log.Debug().Str("work", label).Msg("tracking pending work")
	return h
}

// Go runs fn in its own goroutine as tracked work
func (s *Stepper) Go(label string, fn func()) *Handle {
	h := s.Track(label)
	go func() {
		defer h.Done()
		fn()
	}()
	return h
}

// Pending returns the number of tracked units not yet joined
func (s *Stepper) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// AwaitPending blocks until every unit tracked before the call has settled.
// Work tracked while waiting is left for the next call.
func (s *Stepper) AwaitPending(ctx context.Context) error {
	s.pendingMu.Lock()
	snapshot := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		snapshot = append(snapshot, h)
	}
	s.pendingMu.Unlock()

	for _, h := range snapshot {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.pendingMu.Lock()
	for _, h := range snapshot {
		delete(s.pending, h)
	}
	s.pendingMu.Unlock()

	return nil
}
