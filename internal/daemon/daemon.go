package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/api"
	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/app/dispatch"
	"github.com/mathquest/mathquest/internal/app/sweep"
	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/health"
	"github.com/mathquest/mathquest/internal/infra/postgres"
	"github.com/mathquest/mathquest/internal/infra/redisbus"
	"github.com/mathquest/mathquest/internal/infra/sqlite"
	"github.com/mathquest/mathquest/internal/logging"
)

// Store is what the daemon needs from an attempt store backend.
type Store interface {
	domain.AttemptStore
	domain.BadgeSource
	domain.ActivitySource
	domain.Pinger
	Close() error
}

// OpenStore opens the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store: dsn: %w", domain.ErrMissingField)
		}
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = cfg.DSN
		if cfg.MaxConns > 0 {
			pgCfg.MaxConns = int32(cfg.MaxConns)
		}
		s, err := postgres.Open(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDriver, cfg.Driver)
	}
}

// Daemon is the core MathQuest runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Logger     *zap.Logger
	Store      Store
	Engine     *achievement.Engine
	Evaluator  *achievement.Evaluator
	Server     *api.Server
	Health     *health.Checker
	Bus        *redisbus.Bus
	Dispatcher *dispatch.Dispatcher
	Sweeper    *sweep.Sweeper
	cancel     context.CancelFunc
	// background tracks goroutines that use the store or bus.
	background sync.WaitGroup
}

// New loads configuration and creates a Daemon with all services wired.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return NewWithConfig(ctx, cfg, logger)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config, logger *zap.Logger) (*Daemon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	engine := achievement.NewEngine(store, logger.Named("engine"),
		achievement.WithStreakOverfetch(cfg.Engine.StreakOverfetch),
		achievement.WithStreakScanLimit(cfg.Engine.StreakScanLimit),
	)
	evaluator := achievement.NewEvaluator(engine, store, logger.Named("evaluator"))

	d := &Daemon{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Engine:    engine,
		Evaluator: evaluator,
	}

	checks := []health.Check{health.PingCheck("store", store)}

	if cfg.Redis.Enabled {
		busCfg := redisbus.DefaultConfig()
		busCfg.Addr = cfg.Redis.Addr
		busCfg.Password = cfg.Redis.Password
		busCfg.DB = cfg.Redis.DB
		d.Bus = redisbus.New(busCfg)

		dispCfg := dispatch.DefaultConfig()
		if cfg.Redis.AttemptsChannel != "" {
			dispCfg.AttemptsChannel = cfg.Redis.AttemptsChannel
		}
		if cfg.Redis.ResultsChannel != "" {
			dispCfg.ResultsChannel = cfg.Redis.ResultsChannel
		}
		if cfg.Redis.Workers > 0 {
			dispCfg.Workers = cfg.Redis.Workers
		}
		d.Dispatcher = dispatch.New(d.Bus, evaluator, dispCfg, logger)
		checks = append(checks, health.PingCheck("redis", d.Bus))
	}

	if cfg.Sweep.Enabled {
		d.Sweeper = sweep.New(store, evaluator, sweep.Config{
			Interval: parseDuration(cfg.Sweep.Interval, time.Hour),
			Lookback: parseDuration(cfg.Sweep.Lookback, 48*time.Hour),
		}, logger.Named("sweep"))
	}

	d.Health = health.NewChecker(health.DefaultInterval, logger.Named("health"), checks...)

	d.Server = api.NewServer(engine, evaluator, logger.Named("api"))
	d.Server.SetHealth(d.Health)
	if cfg.Telemetry.Metrics {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// Addr returns the configured listen address.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
}

// Serve starts the HTTP server and background services, and blocks until
// shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	d.background.Add(1)
	go func() {
		defer d.background.Done()
		d.Health.Run(ctx)
	}()

	if d.Sweeper != nil {
		if err := d.Sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start sweep: %w", err)
		}
	}

	if d.Dispatcher != nil {
		d.background.Add(1)
		go func() {
			defer d.background.Done()
			if err := d.Dispatcher.Run(ctx); err != nil {
				d.Logger.Error("dispatcher stopped", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         d.Addr(),
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		cancel()
		if d.Sweeper != nil {
			d.Sweeper.Stop()
		}
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Logger.Info("mathquest serving",
		zap.String("addr", d.Addr()),
		zap.String("store", d.Config.Store.Driver),
		zap.Bool("redis", d.Bus != nil),
		zap.Bool("sweep", d.Sweeper != nil),
		zap.Bool("metrics", d.Config.Telemetry.Metrics))

	err := httpServer.ListenAndServe()
	if err != http.ErrServerClosed {
		cancel()
		<-done
		d.background.Wait()
		return err
	}
	<-done
	d.background.Wait()
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Sweeper != nil {
		d.Sweeper.Stop()
	}
	d.background.Wait()
	if d.Bus != nil {
		_ = d.Bus.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	_ = d.Logger.Sync()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
