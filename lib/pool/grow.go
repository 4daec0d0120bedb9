package pool

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/resilience"
	"github.com/go-i2p/sessionpool/lib/session"
)

// backgroundFillDelay coalesces bursts of acquisitions into one fill pass.
const backgroundFillDelay = 25 * time.Millisecond

type growthStrategy int

const (
	// growOnlyIfEmpty runs inside Acquire before blocking.
	growOnlyIfEmpty growthStrategy = iota
	// growMaintainMinimum runs after each housekeeping sweep.
	growMaintainMinimum
	// growBackgroundFill runs on the scheduler after Acquire.
	growBackgroundFill
)

func (s growthStrategy) String() string {
	switch s {
	case growOnlyIfEmpty:
		return "only-if-empty"
	case growMaintainMinimum:
		return "maintain-minimum"
	case growBackgroundFill:
		return "background-fill"
	default:
		return "unknown"
	}
}

// addConnections grows the pool according to strategy. A zero deadline
// means the work is not on behalf of a waiting caller.
func (p *Pool[R]) addConnections(strategy growthStrategy, deadline time.Time) {
	created := 0

	switch strategy {
	case growOnlyIfEmpty:
		if p.counters.idle() != 0 {
			return
		}
		// The first creation always runs; the rest only while the
		// caller's deadline has not passed.
		for i := 0; i < p.cfg.Increment; i++ {
			if i > 0 && !deadline.IsZero() && time.Until(deadline) <= 0 {
				break
			}
			if !p.createOneHandle(deadline) {
				break
			}
			created++
		}

	case growMaintainMinimum:
		for i := 0; i < p.cfg.Increment && p.TotalCount() < p.cfg.MinSize; i++ {
			if !p.createOneHandle(deadline) {
				break
			}
			created++
		}

	case growBackgroundFill:
		for p.needsFill() {
			if !p.createOneHandle(deadline) {
				break
			}
			created++
		}
	}

	if created > 0 {
		log.WithField("strategy", strategy.String()).WithField("created", created).Debug("grew pool")
	}
}

func (p *Pool[R]) needsFill() bool {
	if p.closed.Load() || p.TotalCount() >= p.cfg.MaxSize {
		return false
	}
	return p.IdleCount() < p.cfg.Increment || p.WaitingCount() > 0
}

// scheduleBackgroundFill queues one fill pass if the idle set is empty and
// no pass is pending.
func (p *Pool[R]) scheduleBackgroundFill() {
	if p.closed.Load() || p.counters.idle() != 0 {
		return
	}
	if !p.counters.fillScheduled.CompareAndSwap(false, true) {
		return
	}

	scheduled := p.sched.after(backgroundFillDelay, func(context.Context) {
		defer p.counters.fillScheduled.Store(false)
		p.addConnections(growBackgroundFill, time.Time{})
	})
	if !scheduled {
		p.counters.fillScheduled.Store(false)
	}
}

// fillToMinimum is the synchronous warm-up run by New. It stops at the
// first creation that gives up.
func (p *Pool[R]) fillToMinimum() {
	for i := 0; i < p.cfg.MinSize && p.TotalCount() < p.cfg.MinSize; i++ {
		if !p.createOneHandle(time.Time{}) {
			total, _ := p.counters.snapshot()
			log.WithField("minSize", p.cfg.MinSize).
				WithField("total", total).
				Warn("could not open the minimum number of resources")
			return
		}
	}
}

// createOneHandle opens, validates and initializes one resource and puts
// it in the idle set. It reports false if the pool is full or closed, or
// if every attempt failed; failures are logged, never returned.
func (p *Pool[R]) createOneHandle(deadline time.Time) bool {
	if p.closed.Load() || !p.counters.reserve(p.cfg.MaxSize) {
		return false
	}

	retryCtx := p.sched.ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		retryCtx, cancel = context.WithDeadline(retryCtx, deadline)
		defer cancel()
	}

	var h *Handle[R]
	retry := resilience.RetryConfig{
		Attempts: p.cfg.CreationRetries + 1,
		Delay:    p.cfg.CreationRetryDelay,
	}
	attempts, err := resilience.Retry(retryCtx, retry, "open resource", func(int) error {
		ctx, cancel := p.operationContext(deadline)
		defer cancel()

		r, err := p.openResource(ctx)
		if err != nil {
			return err
		}
		h = newHandle(r, p.now())
		return nil
	})
	if err != nil {
		p.counters.addTotal(-1)
		log.WithField("attempts", attempts).
			WithError(apperrors.Wrap(apperrors.CodeCreationFailure, "could not add resource to pool", err)).
			Warn("giving up on resource creation")
		return false
	}

	if p.closed.Load() {
		p.counters.addTotal(-1)
		p.closeResource(h.resource)
		return false
	}

	p.counters.addIdle(1)
	p.idle.put(h)
	return true
}

// openResource runs one creation attempt. Any resource it fails to hand
// back is closed before returning.
func (p *Pool[R]) openResource(ctx context.Context) (R, error) {
	var zero R

	r, err := p.factory.Open(ctx)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", apperrors.ErrCreationFailed, err)
	}

	p.captureIsolation(ctx, r)

	if !p.isAlive(ctx, r) {
		p.closeResource(r)
		return zero, apperrors.ErrDeadResource
	}

	if p.cfg.InitAction != nil {
		if err := p.cfg.InitAction(ctx, r); err != nil {
			p.closeResource(r)
			return zero, fmt.Errorf("init action: %w", err)
		}
	}
	return r, nil
}

// captureIsolation records the first resource's isolation level as the
// session default when none was configured.
func (p *Pool[R]) captureIsolation(ctx context.Context, r R) {
	if p.cfg.Isolation != session.IsolationUnset || p.isolationCaptured.Load() {
		return
	}
	det, ok := p.factory.(IsolationDetector[R])
	if !ok {
		return
	}
	level, err := det.DefaultIsolation(ctx, r)
	if err != nil {
		log.WithError(err).Debug("could not read default isolation level")
		return
	}
	if p.isolationCaptured.CompareAndSwap(false, true) {
		p.isolation.Store(int32(level))
		log.WithField("isolation", level.String()).Debug("captured default isolation level")
	}
}
