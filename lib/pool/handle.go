package pool

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handle wraps one raw resource with the pool's bookkeeping. It owns the
// resource for its whole life.
type Handle[R any] struct {
	id        uuid.UUID
	resource  R
	createdAt time.Time

	// Written only by the current owner; ownership moves through the idle
	// set channel, which orders the accesses.
	lastAccess time.Time
	leak       *time.Timer

	broken   atomic.Bool
	released atomic.Bool
}

func newHandle[R any](r R, now time.Time) *Handle[R] {
	return &Handle[R]{
		id:         uuid.New(),
		resource:   r,
		createdAt:  now,
		lastAccess: now,
	}
}

// ID returns an identifier unique to this handle, used in diagnostics.
func (h *Handle[R]) ID() string {
	return h.id.String()
}

// Resource returns the wrapped resource. It must not be used after the
// handle has been released.
func (h *Handle[R]) Resource() R {
	return h.resource
}

// MarkBroken flags the resource as unusable. Release then closes it
// instead of returning it to the pool.
func (h *Handle[R]) MarkBroken() {
	h.broken.Store(true)
}

// Broken reports whether MarkBroken was called.
func (h *Handle[R]) Broken() bool {
	return h.broken.Load()
}

// Released reports whether the handle has been given back since it was
// last acquired.
func (h *Handle[R]) Released() bool {
	return h.released.Load()
}

// CreatedAt returns when the resource was opened.
func (h *Handle[R]) CreatedAt() time.Time {
	return h.createdAt
}

// LastAccess returns when the handle was last released.
func (h *Handle[R]) LastAccess() time.Time {
	return h.lastAccess
}
