package pool

import (
	"runtime/debug"
	"time"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
)

// LeakReport describes a handle held longer than the leak threshold.
type LeakReport struct {
	HandleID   string
	AcquiredAt time.Time
	HeldFor    time.Duration
	Threshold  time.Duration
	// Stack is the acquiring goroutine's stack.
	Stack []byte
}

func (p *Pool[R]) armLeakDetector(h *Handle[R]) {
	threshold := p.cfg.LeakDetectionThreshold
	if threshold <= 0 {
		return
	}

	id := h.ID()
	acquiredAt := time.Now()
	stack := debug.Stack()
	h.leak = time.AfterFunc(threshold, func() {
		p.reportLeak(LeakReport{
			HandleID:   id,
			AcquiredAt: acquiredAt,
			HeldFor:    time.Since(acquiredAt),
			Threshold:  threshold,
			Stack:      stack,
		})
	})
}

func (p *Pool[R]) disarmLeakDetector(h *Handle[R]) {
	if h.leak != nil {
		h.leak.Stop()
		h.leak = nil
	}
}

func (p *Pool[R]) reportLeak(r LeakReport) {
	if p.cfg.LeakHandler != nil {
		p.cfg.LeakHandler(r)
		return
	}
	log.WithField("handle", r.HandleID).
		WithField("heldFor", r.HeldFor).
		WithField("threshold", r.Threshold).
		WithField("stack", string(r.Stack)).
		WithError(apperrors.ErrLeak).
		Warn("resource held past leak detection threshold")
}
