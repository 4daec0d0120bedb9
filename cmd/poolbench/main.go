// poolbench drives a session pool against a PostgreSQL server and reports
// how acquisitions behaved under load.
//
// Usage:
//
//	poolbench [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "poolbench.toml")
//	-dsn string
//	    PostgreSQL connection string (overrides config)
//	-workers int
//	    Concurrent borrowers (overrides config)
//	-duration duration
//	    How long to run (overrides config)
//	-rate float
//	    Total acquisitions per second, 0 for unlimited (overrides config)
//	-hold duration
//	    How long each borrower keeps a session (overrides config)
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/go-i2p/sessionpool/lib/config"
	apperrors "github.com/go-i2p/sessionpool/lib/errors"
	"github.com/go-i2p/sessionpool/lib/pgfactory"
	"github.com/go-i2p/sessionpool/lib/pool"
	"github.com/go-i2p/sessionpool/lib/session"
	"github.com/go-i2p/sessionpool/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// overrides are the command-line values that replace config file settings.
type overrides struct {
	dsn      string
	workers  int
	duration time.Duration
	rate     float64
	hold     time.Duration
	set      map[string]bool
}

func (o overrides) apply(cfg *config.File) {
	if o.set["dsn"] {
		cfg.Postgres.DSN = o.dsn
	}
	if o.set["workers"] {
		cfg.Bench.Workers = o.workers
	}
	if o.set["duration"] {
		cfg.Bench.Duration = config.Duration(o.duration)
	}
	if o.set["rate"] {
		cfg.Bench.Rate = o.rate
	}
	if o.set["hold"] {
		cfg.Bench.Hold = config.Duration(o.hold)
	}
}

func run(args []string) int {
	fs := flag.NewFlagSet("poolbench", flag.ContinueOnError)

	var ov overrides
	configPath := fs.String("config", "poolbench.toml", "Path to configuration file")
	fs.StringVar(&ov.dsn, "dsn", "", "PostgreSQL connection string (overrides config)")
	fs.IntVar(&ov.workers, "workers", 0, "Concurrent borrowers (overrides config)")
	fs.DurationVar(&ov.duration, "duration", 0, "How long to run (overrides config)")
	fs.Float64Var(&ov.rate, "rate", 0, "Total acquisitions per second, 0 for unlimited (overrides config)")
	fs.DurationVar(&ov.hold, "hold", 0, "How long each borrower keeps a session (overrides config)")
	verbose := fs.Bool("v", false, "Enable verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "poolbench - session pool load generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  poolbench [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Println(version.Banner("poolbench"))
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		if apperrors.IsConfiguration(err) {
			logger.Error("invalid config file", "path", *configPath, "error", err)
		} else {
			logger.Error("failed to load config", "error", err)
		}
		return 1
	}

	ov.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { ov.set[f.Name] = true })
	ov.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid settings", "error", err)
		return 1
	}

	p, err := newPool(cfg, logger)
	if err != nil {
		logger.Error("failed to create pool", "error", err)
		return 1
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Bench.Duration.Std())
	defer cancel()

	logger.Info("poolbench started",
		"version", version.Full(),
		"workers", cfg.Bench.Workers,
		"duration", cfg.Bench.Duration,
		"rate", cfg.Bench.Rate,
		"minSize", cfg.Pool.MinSize,
		"maxSize", cfg.Pool.MaxSize)

	start := time.Now()
	res, err := runBench(ctx, p, cfg.Bench, logger)
	elapsed := time.Since(start)

	stats := p.Stats()
	logger.Info("poolbench finished",
		"elapsed", elapsed.Round(time.Millisecond),
		"acquired", res.acquired.Load(),
		"timeouts", res.timeouts.Load(),
		"failed", res.failed.Load(),
		"perSecond", fmt.Sprintf("%.1f", float64(res.acquired.Load())/elapsed.Seconds()),
		"total", stats.Total,
		"idle", stats.Idle,
		"active", stats.Active,
		"waiting", stats.Waiting)

	if err != nil {
		logger.Error("benchmark aborted", "code", apperrors.FromSentinel(err).Code, "error", err)
		return 1
	}
	return 0
}

func newPool(cfg *config.File, logger *slog.Logger) (*pool.Pool[*pgx.Conn], error) {
	if err := pgfactory.CheckDefaults(session.Defaults{
		AutoCommit: cfg.Pool.AutoCommit,
		Isolation:  cfg.Pool.Isolation,
	}); err != nil {
		return nil, err
	}

	factory, err := pgfactory.New(pgfactory.Config{
		DSN:             cfg.Postgres.DSN,
		ConnectTimeout:  cfg.Postgres.ConnectTimeout.Std(),
		CloseTimeout:    cfg.Postgres.CloseTimeout.Std(),
		ApplicationName: cfg.Postgres.ApplicationName,
	})
	if err != nil {
		return nil, err
	}

	pc := pool.DefaultConfig[*pgx.Conn]()
	config.ApplyPool(cfg.Pool, &pc)
	if pc.Liveness == pool.LivenessProbe {
		pc.ProbeAction = pgfactory.ProbeQuery(cfg.Postgres.ProbeQuery)
	}
	pc.LeakHandler = func(r pool.LeakReport) {
		logger.Warn("session held past leak threshold",
			"handle", r.HandleID,
			"heldFor", r.HeldFor,
			"threshold", r.Threshold)
		logger.Debug("leaked session acquired at", "stack", string(r.Stack))
	}

	return pool.New[*pgx.Conn](factory, pc)
}

type results struct {
	acquired atomic.Int64
	timeouts atomic.Int64
	failed   atomic.Int64
}

// runBench runs the workers until ctx is done. Recoverable acquire failures
// and query failures are counted; anything else, such as a closed pool,
// stops the run early.
func runBench(ctx context.Context, p *pool.Pool[*pgx.Conn], bench config.BenchSection, logger *slog.Logger) (*results, error) {
	limit := rate.Inf
	if bench.Rate > 0 {
		limit = rate.Limit(bench.Rate)
	}
	limiter := rate.NewLimiter(limit, bench.Workers)

	res := &results{}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < bench.Workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}

				h, err := p.AcquireDefault()
				if err != nil {
					if !apperrors.IsRecoverable(err) {
						return err
					}
					if apperrors.IsTimeout(err) {
						res.timeouts.Add(1)
					}
					logger.Debug("acquire failed", "worker", worker, "code", apperrors.Code(err), "error", err)
					continue
				}
				res.acquired.Add(1)

				if _, err := h.Resource().Exec(ctx, "SELECT 1"); err != nil && ctx.Err() == nil {
					res.failed.Add(1)
					h.MarkBroken()
					logger.Debug("query failed", "worker", worker, "handle", h.ID(), "error", err)
				}

				if bench.Hold > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(bench.Hold.Std()):
					}
				}
				p.Release(h)
			}
		})
	}

	return res, g.Wait()
}
