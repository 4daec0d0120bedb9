package pool

import (
	"sync/atomic"
	"time"
)

// idleSet holds the handles available for hand-out. The channel capacity
// is the pool's max size; since every queued handle is counted in total
// and total never exceeds max size, put never blocks.
type idleSet[R any] struct {
	ch      chan *Handle[R]
	done    <-chan struct{}
	waiting atomic.Int32
}

func newIdleSet[R any](capacity int, done <-chan struct{}) *idleSet[R] {
	return &idleSet[R]{
		ch:   make(chan *Handle[R], capacity),
		done: done,
	}
}

func (s *idleSet[R]) put(h *Handle[R]) {
	s.ch <- h
}

func (s *idleSet[R]) tryTake() (*Handle[R], bool) {
	select {
	case h := <-s.ch:
		return h, true
	default:
		return nil, false
	}
}

// take waits up to timeout for a handle. A non-positive timeout polls once.
// It gives up early when the done channel closes.
func (s *idleSet[R]) take(timeout time.Duration) (*Handle[R], bool) {
	if h, ok := s.tryTake(); ok || timeout <= 0 {
		return h, ok
	}

	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case h := <-s.ch:
		return h, true
	case <-t.C:
		return nil, false
	case <-s.done:
		return nil, false
	}
}

func (s *idleSet[R]) len() int {
	return len(s.ch)
}

// waiters is the number of callers blocked in take.
func (s *idleSet[R]) waiters() int {
	return int(s.waiting.Load())
}
