// Package pool provides a generic pool of expensive, reusable sessions to
// external services, such as database connections.
//
// The pool supports:
//   - Minimum and maximum pool size with incremental growth
//   - Acquisition with a deadline, validating every handle before hand-out
//   - Idle timeout and maximum lifetime eviction by a periodic housekeeper
//   - Coalesced background refill when callers find the pool empty
//   - Bounded retry of resource creation
//   - Leak detection for handles held too long
//
// # Basic Usage
//
//	factory, err := pgfactory.New(pgfactory.Config{DSN: dsn})
//	if err != nil {
//	    return err
//	}
//
//	cfg := pool.DefaultConfig[*pgx.Conn]()
//	cfg.MinSize = 2
//	cfg.MaxSize = 10
//
//	p, err := pool.New[*pgx.Conn](factory, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	h, err := p.Acquire(5 * time.Second)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(h)
//
//	// Use h.Resource()...
//
// # Broken Resources
//
// A caller that sees a fatal I/O error on a resource marks the handle
// broken before releasing it; the pool then closes it instead of putting
// it back:
//
//	if err := use(h.Resource()); isFatal(err) {
//	    h.MarkBroken()
//	}
//	p.Release(h)
//
// # Liveness Checks
//
// Every handle is checked before it is handed out, either with the
// factory's native Probe (LivenessNative, the default) or by running
// Config.ProbeAction (LivenessProbe). Dead handles are closed and the
// acquisition retried within the same deadline.
//
// # Ownership
//
// A handle is either idle (owned by the pool), checked out (owned by
// exactly one caller) or destroyed. Releasing the same handle twice is a
// caller bug and is not detected.
package pool
