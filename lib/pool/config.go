package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/session"
)

// LivenessMode selects how a handle is checked before hand-out.
type LivenessMode int

const (
	// LivenessNative asks the factory's Probe.
	LivenessNative LivenessMode = iota
	// LivenessProbe runs Config.ProbeAction.
	LivenessProbe
	// LivenessOff skips the check.
	LivenessOff
)

func (m LivenessMode) String() string {
	switch m {
	case LivenessNative:
		return "native"
	case LivenessProbe:
		return "probe"
	case LivenessOff:
		return "off"
	default:
		return fmt.Sprintf("liveness(%d)", int(m))
	}
}

// ParseLivenessMode accepts "native", "probe" or "off". An empty string is
// LivenessNative.
func ParseLivenessMode(s string) (LivenessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return LivenessNative, nil
	case "probe":
		return LivenessProbe, nil
	case "off", "none":
		return LivenessOff, nil
	default:
		return LivenessNative, fmt.Errorf("%w: unknown liveness mode %q", apperrors.ErrPoolConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m LivenessMode) MarshalText() ([]byte, error) {
	switch m {
	case LivenessNative, LivenessProbe, LivenessOff:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown liveness mode %d", apperrors.ErrPoolConfig, int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *LivenessMode) UnmarshalText(text []byte) error {
	parsed, err := ParseLivenessMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Action is a caller-supplied operation run against a raw resource.
type Action[R any] func(ctx context.Context, r R) error

// Config configures the pool. It is copied by New and never changes
// afterwards. A zero duration disables the feature it controls.
type Config[R any] struct {
	// MinSize is the number of handles the pool tries to keep open.
	// Default: 0
	MinSize int
	// MaxSize is the hard limit on open handles.
	// Default: 10
	MaxSize int
	// AcquireTimeout is used by AcquireDefault and bounds each creation
	// attempt made in the background.
	// Default: 30 seconds
	AcquireTimeout time.Duration
	// IdleTimeout is how long a handle may sit idle before the
	// housekeeper closes it.
	// Default: 10 minutes
	IdleTimeout time.Duration
	// MaxLifetime is the age after which a handle is retired.
	// Default: 30 minutes
	MaxLifetime time.Duration
	// Increment is how many handles a single growth pass may create.
	// Default: 1
	Increment int
	// CreationRetries is the number of extra attempts after a failed
	// creation.
	// Default: 2
	CreationRetries int
	// CreationRetryDelay is the pause between creation attempts.
	// Default: 500 milliseconds
	CreationRetryDelay time.Duration
	// LeakDetectionThreshold is how long a handle may be held before a
	// leak is reported.
	// Default: 0 (disabled)
	LeakDetectionThreshold time.Duration
	// AutoCommit is the session auto-commit mode restored on every acquire.
	// Default: true
	AutoCommit bool
	// Isolation is the session isolation level restored on every acquire.
	// IsolationUnset captures the level reported by the first resource.
	// Default: IsolationUnset
	Isolation session.IsolationLevel
	// Liveness selects how handles are validated.
	// Default: LivenessNative
	Liveness LivenessMode
	// ProbeAction is run by LivenessProbe; required in that mode.
	ProbeAction Action[R]
	// InitAction, if set, runs once on every newly created resource.
	InitAction Action[R]
	// HousekeepingInterval is the period of the eviction sweep.
	// Default: 30 seconds
	HousekeepingInterval time.Duration
	// LeakHandler receives leak reports. If nil, leaks are logged.
	LeakHandler func(LeakReport)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig[R any]() Config[R] {
	return Config[R]{
		MinSize:              0,
		MaxSize:              10,
		AcquireTimeout:       30 * time.Second,
		IdleTimeout:          10 * time.Minute,
		MaxLifetime:          30 * time.Minute,
		Increment:            1,
		CreationRetries:      2,
		CreationRetryDelay:   500 * time.Millisecond,
		AutoCommit:           true,
		Isolation:            session.IsolationUnset,
		Liveness:             LivenessNative,
		HousekeepingInterval: 30 * time.Second,
	}
}

// Validate checks the configuration for errors. Every returned error wraps
// errors.ErrPoolConfig.
func (c *Config[R]) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: max size must be at least 1", apperrors.ErrPoolConfig)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("%w: min size must not be negative", apperrors.ErrPoolConfig)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: min size %d exceeds max size %d", apperrors.ErrPoolConfig, c.MinSize, c.MaxSize)
	}
	if c.Increment < 1 {
		return fmt.Errorf("%w: increment must be at least 1", apperrors.ErrPoolConfig)
	}
	if c.CreationRetries < 0 {
		return fmt.Errorf("%w: creation retries must not be negative", apperrors.ErrPoolConfig)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"acquire timeout", c.AcquireTimeout},
		{"idle timeout", c.IdleTimeout},
		{"max lifetime", c.MaxLifetime},
		{"creation retry delay", c.CreationRetryDelay},
		{"leak detection threshold", c.LeakDetectionThreshold},
		{"housekeeping interval", c.HousekeepingInterval},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%w: %s must not be negative", apperrors.ErrPoolConfig, d.name)
		}
	}

	if !c.Isolation.Valid() {
		return fmt.Errorf("%w: unknown isolation level %d", apperrors.ErrPoolConfig, int(c.Isolation))
	}
	switch c.Liveness {
	case LivenessNative, LivenessOff:
	case LivenessProbe:
		if c.ProbeAction == nil {
			return fmt.Errorf("%w: probe liveness requires a probe action", apperrors.ErrPoolConfig)
		}
	default:
		return fmt.Errorf("%w: unknown liveness mode %d", apperrors.ErrPoolConfig, int(c.Liveness))
	}
	return nil
}

func (c *Config[R]) housekeeperEnabled() bool {
	return c.IdleTimeout > 0 || c.MaxLifetime > 0
}
