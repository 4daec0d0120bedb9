package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/session"
)

// ErrPoolClosed is returned when operating on a closed pool.
var ErrPoolClosed = apperrors.ErrPoolClosed

// minOperationTimeout is the smallest budget given to a single probe or
// creation attempt, so a caller with an almost spent deadline still gets
// one real attempt.
const minOperationTimeout = time.Second

// TimeoutError is returned by Acquire when no live handle could be
// obtained in time. It matches errors.ErrTimeout with errors.Is.
type TimeoutError struct {
	// Timeout is the budget the caller asked for.
	Timeout time.Duration
	// Total and Idle are the pool counts when the caller gave up.
	Total int
	Idle  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pool: no resource available within %v (total=%d, idle=%d)", e.Timeout, e.Total, e.Idle)
}

// Unwrap lets errors.Is match apperrors.ErrTimeout.
func (e *TimeoutError) Unwrap() error {
	return apperrors.ErrTimeout
}

// Pool is a bounded pool of reusable resources.
type Pool[R any] struct {
	cfg     Config[R]
	factory Factory[R]

	counters counters
	idle     *idleSet[R]
	sched    *scheduler

	isolation         atomic.Int32
	isolationCaptured atomic.Bool

	closed atomic.Bool
	now    func() time.Time
}

// New creates a pool, starts its housekeeper if idle timeout or max
// lifetime is set, and opens handles up to cfg.MinSize. Failing to reach
// the minimum is logged, not returned; only an invalid configuration is
// an error.
func New[R any](factory Factory[R], cfg Config[R]) (*Pool[R], error) {
	return newPool(factory, cfg, time.Now)
}

func newPool[R any](factory Factory[R], cfg Config[R], now func() time.Time) (*Pool[R], error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: factory is required", apperrors.ErrPoolConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HousekeepingInterval <= 0 {
		cfg.HousekeepingInterval = DefaultConfig[R]().HousekeepingInterval
	}

	sched := newScheduler()
	p := &Pool[R]{
		cfg:     cfg,
		factory: factory,
		idle:    newIdleSet[R](cfg.MaxSize, sched.done()),
		sched:   sched,
		now:     now,
	}
	p.isolation.Store(int32(cfg.Isolation))

	if cfg.housekeeperEnabled() {
		p.sched.every(cfg.HousekeepingInterval, p.housekeep)
	}
	p.fillToMinimum()

	total, idle := p.counters.snapshot()
	log.WithField("minSize", cfg.MinSize).
		WithField("maxSize", cfg.MaxSize).
		WithField("total", total).
		WithField("idle", idle).
		Debug("pool created")
	return p, nil
}

// Acquire returns a validated handle that the caller owns until it calls
// Release. It waits at most timeout; a zero timeout makes a single
// non-blocking attempt. On failure it returns a *TimeoutError, or
// ErrPoolClosed once the pool is closed.
func (p *Pool[R]) Acquire(timeout time.Duration) (*Handle[R], error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	deadline := time.Now().Add(timeout)
	defer p.scheduleBackgroundFill()

	for {
		p.addConnections(growOnlyIfEmpty, deadline)

		h, ok := p.idle.take(time.Until(deadline))
		if !ok {
			break
		}
		p.counters.addIdle(-1)

		if p.expired(h.createdAt, p.cfg.MaxLifetime, p.now()) {
			p.destroy(h, "max lifetime exceeded")
		} else if p.prepare(h, deadline) {
			p.armLeakDetector(h)
			p.clearWarnings(h, deadline)
			return h, nil
		}

		if time.Until(deadline) <= 0 {
			break
		}
	}

	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	total, idle := p.counters.snapshot()
	log.WithField("timeout", timeout).
		WithField("total", total).
		WithField("idle", idle).
		Warn("timed out waiting for a pooled resource")
	return nil, &TimeoutError{Timeout: timeout, Total: total, Idle: idle}
}

// AcquireDefault is Acquire with Config.AcquireTimeout.
func (p *Pool[R]) AcquireDefault() (*Handle[R], error) {
	return p.Acquire(p.cfg.AcquireTimeout)
}

// prepare readies an idle handle for a new owner. It reports false after
// destroying a handle that could not be reset or failed its liveness check.
func (p *Pool[R]) prepare(h *Handle[R], deadline time.Time) bool {
	h.released.Store(false)

	ctx, cancel := p.operationContext(deadline)
	defer cancel()

	if err := p.factory.ApplySessionDefaults(ctx, h.resource, p.sessionDefaults()); err != nil {
		log.WithField("handle", h.ID()).WithError(err).Debug("failed to reset session")
		p.destroy(h, "session reset failed")
		return false
	}
	if !p.isAlive(ctx, h.resource) {
		p.destroy(h, apperrors.ErrDeadResource.Error())
		return false
	}
	return true
}

func (p *Pool[R]) clearWarnings(h *Handle[R], deadline time.Time) {
	wc, ok := p.factory.(WarningClearer[R])
	if !ok {
		return
	}
	ctx, cancel := p.operationContext(deadline)
	defer cancel()
	if err := wc.ClearWarnings(ctx, h.resource); err != nil {
		log.WithField("handle", h.ID()).WithError(err).Debug("failed to clear warnings")
	}
}

// Release gives a checked-out handle back. Broken handles are closed;
// others return to the idle set. Each handle must be released exactly
// once per Acquire.
func (p *Pool[R]) Release(h *Handle[R]) {
	if h == nil {
		return
	}

	p.disarmLeakDetector(h)
	h.released.Store(true)

	if h.Broken() {
		p.destroy(h, "marked broken")
		return
	}
	if p.closed.Load() {
		p.destroy(h, "pool closed")
		return
	}

	h.lastAccess = p.now()
	p.counters.addIdle(1)
	p.idle.put(h)

	// Close may have drained the idle set between the check above and the put.
	if p.closed.Load() {
		p.CloseIdle()
	}
}

// destroy closes a handle that is not in the idle set. Close errors are
// logged and dropped.
func (p *Pool[R]) destroy(h *Handle[R], reason string) {
	p.disarmLeakDetector(h)
	p.counters.addTotal(-1)
	log.WithField("handle", h.ID()).WithField("reason", reason).Debug("closing pooled resource")
	p.closeResource(h.resource)
}

func (p *Pool[R]) closeResource(r R) {
	if err := p.factory.Close(r); err != nil {
		log.WithError(err).Warn("failed to close resource")
	}
}

func (p *Pool[R]) expired(since time.Time, limit time.Duration, now time.Time) bool {
	return limit > 0 && now.Sub(since) > limit
}

// isAlive runs the configured liveness check. In probe mode, auto-commit
// is switched on for the probe and restored afterwards whatever the probe
// returned; a failed restore counts as a dead resource.
func (p *Pool[R]) isAlive(ctx context.Context, r R) bool {
	switch p.cfg.Liveness {
	case LivenessOff:
		return true
	case LivenessProbe:
	default:
		return p.factory.Probe(ctx, r)
	}

	defaults := p.sessionDefaults()
	mutated := false
	if !defaults.AutoCommit {
		probeSession := defaults
		probeSession.AutoCommit = true
		if err := p.factory.ApplySessionDefaults(ctx, r, probeSession); err != nil {
			log.WithError(err).Debug("failed to enable auto-commit for probe")
			return false
		}
		mutated = true
	}

	alive := true
	if err := p.cfg.ProbeAction(ctx, r); err != nil {
		log.WithError(err).Debug("probe action failed")
		alive = false
	}

	if mutated {
		if err := p.factory.ApplySessionDefaults(ctx, r, defaults); err != nil {
			log.WithError(err).Debug("failed to restore session after probe")
			return false
		}
	}
	return alive
}

func (p *Pool[R]) sessionDefaults() session.Defaults {
	return session.Defaults{
		AutoCommit: p.cfg.AutoCommit,
		Isolation:  session.IsolationLevel(p.isolation.Load()),
	}
}

// operationContext bounds one probe or creation attempt by the caller's
// deadline, or by the acquire timeout when there is none, but never below
// minOperationTimeout. It is cancelled when the pool closes.
func (p *Pool[R]) operationContext(deadline time.Time) (context.Context, context.CancelFunc) {
	budget := p.cfg.AcquireTimeout
	if !deadline.IsZero() {
		budget = time.Until(deadline)
	}
	return context.WithTimeout(p.sched.ctx, max(budget, minOperationTimeout))
}

// CloseIdle closes every handle currently idle and returns how many were
// closed. Checked-out handles are not affected.
func (p *Pool[R]) CloseIdle() int {
	n := 0
	for {
		h, ok := p.idle.tryTake()
		if !ok {
			break
		}
		p.counters.addIdle(-1)
		p.destroy(h, "idle handles closed")
		n++
	}
	if n > 0 {
		log.WithField("closed", n).Debug("closed idle resources")
	}
	return n
}

// Close stops background work and closes all idle handles. Handles still
// checked out are closed as they are released.
func (p *Pool[R]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPoolClosed
	}

	p.sched.stop()
	p.CloseIdle()

	log.Debug("pool closed")
	return nil
}

// TotalCount returns the number of live handles, including creations in
// flight.
func (p *Pool[R]) TotalCount() int {
	return p.counters.total()
}

// IdleCount returns the number of handles available for hand-out.
func (p *Pool[R]) IdleCount() int {
	return p.counters.idle()
}

// ActiveCount returns the number of handles not idle.
func (p *Pool[R]) ActiveCount() int {
	total, idle := p.counters.snapshot()
	return max(total-idle, 0)
}

// WaitingCount returns the number of callers blocked in Acquire.
func (p *Pool[R]) WaitingCount() int {
	return p.idle.waiters()
}

// Stats is a point-in-time view of the pool counts.
type Stats struct {
	// MaxSize is the configured maximum pool size.
	MaxSize int
	// Total is the number of live handles.
	Total int
	// Idle is the number of handles available for hand-out.
	Idle int
	// Active is the number of handles checked out or being created.
	Active int
	// Waiting is the number of callers blocked in Acquire.
	Waiting int
}

// Stats returns current pool statistics.
func (p *Pool[R]) Stats() Stats {
	total, idle := p.counters.snapshot()
	return Stats{
		MaxSize: p.cfg.MaxSize,
		Total:   total,
		Idle:    idle,
		Active:  max(total-idle, 0),
		Waiting: p.idle.waiters(),
	}
}
