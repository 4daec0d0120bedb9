package pool

import (
	"context"
	"time"
)

// housekeep sweeps the handles idle at the start of the pass, closing
// those past the idle timeout or max lifetime, then tops the pool back up
// to its minimum size. Checked-out handles are never visited.
func (p *Pool[R]) housekeep(context.Context) {
	now := p.now()
	snapshot := p.idle.len()
	evicted := 0

	for i := 0; i < snapshot; i++ {
		h, ok := p.idle.tryTake()
		if !ok {
			break
		}
		p.counters.addIdle(-1)

		if reason := p.evictionReason(h, now); reason != "" {
			p.destroy(h, reason)
			evicted++
			continue
		}

		p.counters.addIdle(1)
		p.idle.put(h)
	}

	if evicted > 0 {
		total, idle := p.counters.snapshot()
		log.WithField("evicted", evicted).
			WithField("total", total).
			WithField("idle", idle).
			Debug("housekeeper evicted idle resources")
	}

	p.addConnections(growMaintainMinimum, time.Time{})
}

func (p *Pool[R]) evictionReason(h *Handle[R], now time.Time) string {
	switch {
	case p.expired(h.lastAccess, p.cfg.IdleTimeout, now):
		return "idle timeout exceeded"
	case p.expired(h.createdAt, p.cfg.MaxLifetime, now):
		return "max lifetime exceeded"
	default:
		return ""
	}
}
