// Package config loads and saves the TOML configuration shared by the
// sessionpool tools: pool sizing and timeouts, the PostgreSQL connection,
// and the load generator settings.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/pool"
	"github.com/go-i2p/sessionpool/lib/session"
)

// Default configuration values
const (
	DefaultDSN            = "postgres://localhost:5432/postgres"
	DefaultConnectTimeout = 5 * time.Second
	DefaultCloseTimeout   = 5 * time.Second
	DefaultProbeQuery     = "SELECT 1"
	DefaultWorkers        = 8
	DefaultBenchDuration  = 10 * time.Second
	DefaultHold           = 5 * time.Millisecond
)

// Duration is a time.Duration written as a string ("30s", "10m") in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// File is the on-disk configuration.
type File struct {
	Pool     PoolSection     `toml:"pool"`
	Postgres PostgresSection `toml:"postgres"`
	Bench    BenchSection    `toml:"bench"`
}

// PoolSection mirrors the scalar settings of pool.Config. Isolation uses
// the SQL spelling ("read committed") and an empty value captures the
// server default. Liveness is "native", "probe" or "off".
type PoolSection struct {
	MinSize                int                    `toml:"min_size"`
	MaxSize                int                    `toml:"max_size"`
	AcquireTimeout         Duration               `toml:"acquire_timeout"`
	IdleTimeout            Duration               `toml:"idle_timeout"`
	MaxLifetime            Duration               `toml:"max_lifetime"`
	Increment              int                    `toml:"increment"`
	CreationRetries        int                    `toml:"creation_retries"`
	CreationRetryDelay     Duration               `toml:"creation_retry_delay"`
	LeakDetectionThreshold Duration               `toml:"leak_detection_threshold"`
	HousekeepingInterval   Duration               `toml:"housekeeping_interval"`
	AutoCommit             bool                   `toml:"auto_commit"`
	Isolation              session.IsolationLevel `toml:"isolation"`
	Liveness               pool.LivenessMode      `toml:"liveness"`
}

// PostgresSection configures the pgx connection factory.
type PostgresSection struct {
	// DSN is a libpq connection string or URL
	DSN            string   `toml:"dsn"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	CloseTimeout   Duration `toml:"close_timeout"`
	// ProbeQuery is run when pool.liveness is "probe"
	ProbeQuery      string `toml:"probe_query"`
	ApplicationName string `toml:"application_name,omitempty"`
}

// BenchSection configures the poolbench load generator.
type BenchSection struct {
	Workers  int      `toml:"workers"`
	Duration Duration `toml:"duration"`
	// Rate is the total acquisitions per second; 0 means unlimited
	Rate float64 `toml:"rate"`
	// Hold is how long each worker keeps a handle
	Hold Duration `toml:"hold"`
}

// DefaultPool returns a PoolSection carrying pool.DefaultConfig's values.
func DefaultPool() PoolSection {
	d := pool.DefaultConfig[struct{}]()
	return PoolSection{
		MinSize:                d.MinSize,
		MaxSize:                d.MaxSize,
		AcquireTimeout:         Duration(d.AcquireTimeout),
		IdleTimeout:            Duration(d.IdleTimeout),
		MaxLifetime:            Duration(d.MaxLifetime),
		Increment:              d.Increment,
		CreationRetries:        d.CreationRetries,
		CreationRetryDelay:     Duration(d.CreationRetryDelay),
		LeakDetectionThreshold: Duration(d.LeakDetectionThreshold),
		HousekeepingInterval:   Duration(d.HousekeepingInterval),
		AutoCommit:             d.AutoCommit,
		Isolation:              d.Isolation,
		Liveness:               d.Liveness,
	}
}

// DefaultConfig returns a File with sensible defaults.
func DefaultConfig() *File {
	return &File{
		Pool: DefaultPool(),
		Postgres: PostgresSection{
			DSN:            DefaultDSN,
			ConnectTimeout: Duration(DefaultConnectTimeout),
			CloseTimeout:   Duration(DefaultCloseTimeout),
			ProbeQuery:     DefaultProbeQuery,
		},
		Bench: BenchSection{
			Workers:  DefaultWorkers,
			Duration: Duration(DefaultBenchDuration),
			Hold:     Duration(DefaultHold),
		},
	}
}

// Load reads configuration from a TOML file.
// If the file doesn't exist, it returns the default configuration.
func Load(path string) (*File, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %w", apperrors.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func Save(cfg *File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors. Pool settings are checked
// by pool.Config.Validate itself.
func (f *File) Validate() error {
	pc := pool.DefaultConfig[struct{}]()
	ApplyPool(f.Pool, &pc)
	if pc.Liveness == pool.LivenessProbe {
		if f.Postgres.ProbeQuery == "" {
			return fmt.Errorf("%w: postgres.probe_query is required when pool.liveness is probe", apperrors.ErrConfiguration)
		}
		pc.ProbeAction = func(context.Context, struct{}) error { return nil }
	}
	if err := pc.Validate(); err != nil {
		return err
	}

	if f.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres.dsn is required", apperrors.ErrConfiguration)
	}
	if f.Postgres.ConnectTimeout < 0 || f.Postgres.CloseTimeout < 0 {
		return fmt.Errorf("%w: postgres timeouts must not be negative", apperrors.ErrConfiguration)
	}
	if f.Bench.Workers < 1 {
		return fmt.Errorf("%w: bench.workers must be at least 1", apperrors.ErrConfiguration)
	}
	if f.Bench.Duration <= 0 {
		return fmt.Errorf("%w: bench.duration must be positive", apperrors.ErrConfiguration)
	}
	if f.Bench.Rate < 0 || f.Bench.Hold < 0 {
		return fmt.Errorf("%w: bench.rate and bench.hold must not be negative", apperrors.ErrConfiguration)
	}
	return nil
}

// ApplyPool copies the scalar settings of s onto cfg. Actions and the leak
// handler are left untouched.
func ApplyPool[R any](s PoolSection, cfg *pool.Config[R]) {
	cfg.MinSize = s.MinSize
	cfg.MaxSize = s.MaxSize
	cfg.AcquireTimeout = s.AcquireTimeout.Std()
	cfg.IdleTimeout = s.IdleTimeout.Std()
	cfg.MaxLifetime = s.MaxLifetime.Std()
	cfg.Increment = s.Increment
	cfg.CreationRetries = s.CreationRetries
	cfg.CreationRetryDelay = s.CreationRetryDelay.Std()
	cfg.LeakDetectionThreshold = s.LeakDetectionThreshold.Std()
	cfg.HousekeepingInterval = s.HousekeepingInterval.Std()
	cfg.AutoCommit = s.AutoCommit
	cfg.Isolation = s.Isolation
	cfg.Liveness = s.Liveness
}
