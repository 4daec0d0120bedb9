package pool

import (
	"context"
	"sync"
	"time"
)

// scheduler runs the pool's background tasks: the periodic housekeeper
// and one-shot background fills. Tasks get a context that is cancelled by
// stop, which then waits for them to return.
type scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func newScheduler() *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{ctx: ctx, cancel: cancel}
}

func (s *scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// every runs fn once per interval until stop.
func (s *scheduler) every(interval time.Duration, fn func(ctx context.Context)) bool {
	if !s.track() {
		return false
	}
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				fn(s.ctx)
			}
		}
	}()
	return true
}

// after runs fn once after delay unless stop comes first. It reports
// whether the task was scheduled.
func (s *scheduler) after(delay time.Duration, fn func(ctx context.Context)) bool {
	if !s.track() {
		return false
	}
	go func() {
		defer s.wg.Done()

		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-s.ctx.Done():
		case <-t.C:
			fn(s.ctx)
		}
	}()
	return true
}

func (s *scheduler) done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
