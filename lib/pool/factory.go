package pool

import (
	"context"

	"github.com/go-i2p/sessionpool/lib/session"
)

// Factory opens and closes the raw resources the pool manages.
type Factory[R any] interface {
	// Open creates a new resource.
	Open(ctx context.Context) (R, error)
	// Close releases a resource for good.
	Close(r R) error
	// Probe is the native liveness check used by LivenessNative.
	Probe(ctx context.Context, r R) bool
	// ApplySessionDefaults restores auto-commit and isolation on r.
	// An IsolationUnset level leaves the resource's isolation unchanged.
	ApplySessionDefaults(ctx context.Context, r R, d session.Defaults) error
}

// IsolationDetector is implemented by factories that can report a
// resource's default isolation level. The pool uses it once, on the first
// successful creation, when Config.Isolation is IsolationUnset.
type IsolationDetector[R any] interface {
	DefaultIsolation(ctx context.Context, r R) (session.IsolationLevel, error)
}

// WarningClearer is implemented by factories whose resources accumulate
// warnings that should not leak from one borrower to the next.
type WarningClearer[R any] interface {
	ClearWarnings(ctx context.Context, r R) error
}
