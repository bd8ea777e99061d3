// Package bootstrap wires configuration into a ready engine: profile
// store, feedback sinks, metrics and optional backing stores.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-coins/api"
	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/engine"
	"github.com/aluiziolira/go-scrape-coins/feedback"
	"github.com/aluiziolira/go-scrape-coins/profiles"
	"github.com/aluiziolira/go-scrape-coins/scraper"
	"github.com/aluiziolira/go-scrape-coins/storage"
)

// App holds the long-lived collaborators of one process.
type App struct {
	Config   *config.Config
	Engine   *engine.Engine
	Registry *profiles.Registry
	Metrics  *scraper.Metrics

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Setup connects the configured stores and builds the engine. Postgres and
// a profiles file are required when configured; Redis is optional and is
// skipped with a warning when unreachable.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	app := &App{
		Config:  cfg,
		Metrics: scraper.NewMetrics(),
	}

	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.pool = pool
	}
	if cfg.RedisAddr != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Warn("redis not available, performance counters disabled", slog.Any("error", err))
		} else {
			app.redis = rdb
		}
	}

	app.Registry = profiles.NewRegistry(app.profileStore())
	if err := app.Registry.Reload(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	sink, err := app.sink()
	if err != nil {
		app.closeStores()
		return nil, err
	}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Registry: app.Registry,
		Sink:     sink,
		Metrics:  app.Metrics,
	})
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.Engine = eng

	slog.Info("engine ready",
		slog.Int("profiles", app.Registry.Len()),
		slog.Bool("postgres", app.pool != nil),
		slog.Bool("redis", app.redis != nil),
		slog.Bool("pace_domains", cfg.PaceDomains),
	)
	return app, nil
}

func (a *App) profileStore() profiles.Store {
	switch {
	case a.Config.ProfilesFile != "":
		return profiles.YAMLStore{Path: a.Config.ProfilesFile}
	case a.pool != nil:
		return profiles.NewPostgresStore(a.pool)
	default:
		return nil
	}
}

func (a *App) sink() (feedback.Sink, error) {
	metricsSink, err := feedback.NewMetricsSink(a.Metrics.Registry)
	if err != nil {
		return nil, err
	}
	sinks := feedback.MultiSink{feedback.LogSink{}, metricsSink}
	if a.pool != nil {
		sinks = append(sinks, feedback.NewPostgresSink(a.pool))
	}
	if a.redis != nil {
		sinks = append(sinks, feedback.NewRedisSink(a.redis))
	}
	return sinks, nil
}

// HealthChecks returns a check per connected backing store.
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	if a.redis != nil {
		rdb := a.redis
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}

// Close flushes pending reports and releases store connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil {
		if err := a.Engine.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush performance reports: %w", err))
		}
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.redis != nil {
		err = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return err
}

// NewLogger builds the process logger: text on a terminal, JSON otherwise.
func NewLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
