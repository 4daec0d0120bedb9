// Package pgfactory opens PostgreSQL sessions for the pool using pgx.
//
// PostgreSQL sessions are always in auto-commit mode outside an explicit
// transaction, so the only session default the factory can restore is the
// transaction isolation level. Asking for auto-commit off is rejected.
package pgfactory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/pool"
	"github.com/go-i2p/sessionpool/lib/session"
)

const defaultCloseTimeout = 5 * time.Second

// Config holds the connection settings.
type Config struct {
	// DSN is a libpq connection string or URL.
	DSN string
	// ConnectTimeout overrides any connect_timeout in the DSN when set.
	ConnectTimeout time.Duration
	// CloseTimeout bounds the graceful termination message sent on Close.
	CloseTimeout time.Duration
	// ApplicationName is reported to the server when set.
	ApplicationName string
}

// Factory implements pool.Factory and pool.IsolationDetector for
// *pgx.Conn.
type Factory struct {
	connConfig   *pgx.ConnConfig
	closeTimeout time.Duration
}

var (
	_ pool.Factory[*pgx.Conn]           = (*Factory)(nil)
	_ pool.IsolationDetector[*pgx.Conn] = (*Factory)(nil)
)

// New parses the DSN once; every Open dials a copy of the parsed config.
func New(cfg Config) (*Factory, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: dsn is required", apperrors.ErrConfiguration)
	}

	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing dsn: %w", apperrors.ErrConfiguration, err)
	}
	if cfg.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		connConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	closeTimeout := cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = defaultCloseTimeout
	}

	return &Factory{connConfig: connConfig, closeTimeout: closeTimeout}, nil
}

// Open dials a new session.
func (f *Factory) Open(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, f.connConfig.Copy())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", f.connConfig.Host, err)
	}
	log.WithField("host", f.connConfig.Host).
		WithField("database", f.connConfig.Database).
		WithField("pid", conn.PgConn().PID()).
		Debug("opened postgres session")
	return conn, nil
}

// Close terminates the session.
func (f *Factory) Close(conn *pgx.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.closeTimeout)
	defer cancel()
	return conn.Close(ctx)
}

// Probe pings the server.
func (f *Factory) Probe(ctx context.Context, conn *pgx.Conn) bool {
	if conn.IsClosed() {
		return false
	}
	if err := conn.Ping(ctx); err != nil {
		log.WithField("pid", conn.PgConn().PID()).WithError(err).Debug("ping failed")
		return false
	}
	return true
}

// ApplySessionDefaults sets the session's default transaction isolation.
func (f *Factory) ApplySessionDefaults(ctx context.Context, conn *pgx.Conn, d session.Defaults) error {
	if err := CheckDefaults(d); err != nil {
		return err
	}
	if d.Isolation == session.IsolationUnset {
		return nil
	}

	level, err := isolationSQL(d.Isolation)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL "+level); err != nil {
		return fmt.Errorf("setting isolation level %s: %w", d.Isolation, err)
	}
	return nil
}

// DefaultIsolation reads the session's current isolation level.
func (f *Factory) DefaultIsolation(ctx context.Context, conn *pgx.Conn) (session.IsolationLevel, error) {
	var level string
	if err := conn.QueryRow(ctx, "SHOW transaction_isolation").Scan(&level); err != nil {
		return session.IsolationUnset, fmt.Errorf("reading isolation level: %w", err)
	}
	return session.ParseIsolationLevel(level)
}

// CheckDefaults reports whether d can be applied to a PostgreSQL session.
func CheckDefaults(d session.Defaults) error {
	if !d.AutoCommit {
		return fmt.Errorf("%w: postgres sessions cannot disable auto-commit", apperrors.ErrInvalidInput)
	}
	if !d.Isolation.Valid() {
		return fmt.Errorf("%w: unknown isolation level %d", apperrors.ErrInvalidInput, int(d.Isolation))
	}
	return nil
}

// ProbeQuery returns a probe action that runs sql and discards the result.
func ProbeQuery(sql string) pool.Action[*pgx.Conn] {
	return func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, sql)
		return err
	}
}

func isolationSQL(l session.IsolationLevel) (string, error) {
	if l == session.IsolationUnset || !l.Valid() {
		return "", fmt.Errorf("%w: no SQL for isolation level %s", apperrors.ErrInvalidInput, l)
	}
	return strings.ToUpper(l.String()), nil
}
