package pool

import "sync/atomic"

// counters is the state shared between callers, background fills and the
// housekeeper. total counts live handles plus slots reserved by creations
// in flight, so concurrent growth cannot overshoot the max size.
//
// total and idle share one word (total in the high half, idle in the low
// half) so every read sees both from the same instant.
type counters struct {
	word          atomic.Uint64
	fillScheduled atomic.Bool
}

const idleMask = 1<<32 - 1

func unpack(w uint64) (total, idle int) {
	return int(uint32(w >> 32)), int(uint32(w & idleMask))
}

// addIdle adjusts idle by d. Callers never take idle below zero.
func (c *counters) addIdle(d int) {
	c.word.Add(uint64(int64(d)))
}

// addTotal adjusts total by d. Callers never take total below zero.
func (c *counters) addTotal(d int) {
	c.word.Add(uint64(int64(d) << 32))
}

func (c *counters) total() int {
	t, _ := unpack(c.word.Load())
	return t
}

func (c *counters) idle() int {
	_, i := unpack(c.word.Load())
	return i
}

// reserve claims one slot if total is below limit.
func (c *counters) reserve(limit int) bool {
	for {
		w := c.word.Load()
		if t, _ := unpack(w); t >= limit {
			return false
		}
		if c.word.CompareAndSwap(w, w+1<<32) {
			return true
		}
	}
}

// snapshot returns total and idle as of a single instant. Handles leave
// idle before they leave total, so idle <= total always holds here.
func (c *counters) snapshot() (total, idle int) {
	return unpack(c.word.Load())
}
