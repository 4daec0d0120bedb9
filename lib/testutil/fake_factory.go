// Package testutil provides testing utilities for sessionpool tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/sessionpool/lib/session"
)

// ErrFakeOpen is returned by FakeFactory.Open when a failure is injected.
var ErrFakeOpen = errors.New("testutil: injected open failure")

// FakeConn is an in-memory stand-in for an external session.
type FakeConn struct {
	ID int

	mu         sync.Mutex
	closed     bool
	dead       bool
	autoCommit bool
	isolation  session.IsolationLevel
	warnings   int
	inits      int
}

// Kill makes every later liveness probe on the connection fail.
func (c *FakeConn) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

// IsClosed reports whether the factory has closed the connection.
func (c *FakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Session returns the session parameters last applied to the connection.
func (c *FakeConn) Session() session.Defaults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session.Defaults{AutoCommit: c.autoCommit, Isolation: c.isolation}
}

// AddWarning records a pending warning on the connection.
func (c *FakeConn) AddWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings++
}

// Warnings returns the number of uncleared warnings.
func (c *FakeConn) Warnings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warnings
}

// MarkInitialized counts a post-create initialization run.
func (c *FakeConn) MarkInitialized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits++
}

// Inits returns how many times MarkInitialized was called.
func (c *FakeConn) Inits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits
}

func (c *FakeConn) isDead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead || c.closed
}

// FakeFactory is a concurrency-safe factory of FakeConns with hooks for
// injecting failures. The zero value is not usable; call NewFakeFactory.
type FakeFactory struct {
	// FailOpens makes the next N calls to Open fail.
	FailOpens atomic.Int64
	// FailAll makes every call to Open fail.
	FailAll atomic.Bool
	// DeadOnArrival makes newly opened connections fail their probes.
	DeadOnArrival atomic.Bool
	// FailApply makes ApplySessionDefaults fail.
	FailApply atomic.Bool
	// FailClose makes Close return an error (the connection is still closed).
	FailClose atomic.Bool
	// OpenDelay is slept inside Open, honoring ctx.
	OpenDelay time.Duration
	// Isolation is reported by DefaultIsolation.
	Isolation session.IsolationLevel

	opens   atomic.Int64
	closes  atomic.Int64
	probes  atomic.Int64
	applies atomic.Int64
	nextID  atomic.Int64

	mu    sync.Mutex
	conns []*FakeConn
}

// NewFakeFactory returns a factory that opens healthy connections which
// report read committed as their default isolation.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{Isolation: session.IsolationReadCommitted}
}

// Open creates a new FakeConn.
func (f *FakeFactory) Open(ctx context.Context) (*FakeConn, error) {
	f.opens.Add(1)

	if f.OpenDelay > 0 {
		t := time.NewTimer(f.OpenDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if f.FailAll.Load() {
		return nil, ErrFakeOpen
	}
	for {
		n := f.FailOpens.Load()
		if n <= 0 {
			break
		}
		if f.FailOpens.CompareAndSwap(n, n-1) {
			return nil, ErrFakeOpen
		}
	}

	c := &FakeConn{
		ID:         int(f.nextID.Add(1)),
		dead:       f.DeadOnArrival.Load(),
		autoCommit: true,
		isolation:  f.Isolation,
	}
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	return c, nil
}

// Close marks the connection closed.
func (f *FakeFactory) Close(c *FakeConn) error {
	f.closes.Add(1)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if f.FailClose.Load() {
		return errors.New("testutil: injected close failure")
	}
	return nil
}

// Probe reports whether the connection is alive.
func (f *FakeFactory) Probe(ctx context.Context, c *FakeConn) bool {
	f.probes.Add(1)
	if ctx.Err() != nil {
		return false
	}
	return !c.isDead()
}

// ApplySessionDefaults stores d on the connection.
func (f *FakeFactory) ApplySessionDefaults(_ context.Context, c *FakeConn, d session.Defaults) error {
	f.applies.Add(1)
	if f.FailApply.Load() {
		return errors.New("testutil: injected apply failure")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoCommit = d.AutoCommit
	if d.Isolation != session.IsolationUnset {
		c.isolation = d.Isolation
	}
	return nil
}

// DefaultIsolation reports the factory's configured isolation level.
func (f *FakeFactory) DefaultIsolation(_ context.Context, c *FakeConn) (session.IsolationLevel, error) {
	return c.Session().Isolation, nil
}

// ClearWarnings drops pending warnings on the connection.
func (f *FakeFactory) ClearWarnings(_ context.Context, c *FakeConn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = 0
	return nil
}

// Opens returns the number of Open calls, successful or not.
func (f *FakeFactory) Opens() int { return int(f.opens.Load()) }

// Closes returns the number of Close calls.
func (f *FakeFactory) Closes() int { return int(f.closes.Load()) }

// Probes returns the number of Probe calls.
func (f *FakeFactory) Probes() int { return int(f.probes.Load()) }

// Applies returns the number of ApplySessionDefaults calls.
func (f *FakeFactory) Applies() int { return int(f.applies.Load()) }

// Conns returns every connection opened so far, in order.
func (f *FakeFactory) Conns() []*FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeConn, len(f.conns))
	copy(out, f.conns)
	return out
}

// Live returns the number of opened connections not yet closed.
func (f *FakeFactory) Live() int {
	n := 0
	for _, c := range f.Conns() {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}
