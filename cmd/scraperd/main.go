package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-coins/api"
	"github.com/aluiziolira/go-scrape-coins/bootstrap"
	"github.com/aluiziolira/go-scrape-coins/config"
)

func main() {
	cfg := config.DefaultConfig()
	if err := cfg.FromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Default attempts per request")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.DurationVar(&cfg.ScrapeTimeout, "scrape-timeout", cfg.ScrapeTimeout, "Per-scrape deadline")
	flag.BoolVar(&cfg.PaceDomains, "pace", cfg.PaceDomains, "Space requests to the same domain across scrapes")
	flag.StringVar(&cfg.ProfilesFile, "profiles", cfg.ProfilesFile, "YAML file of source profiles")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL for profiles and performance events")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for performance counters")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	logger, level := bootstrap.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := run(cfg); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ReportTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			slog.Error("close app", slog.Any("error", err))
		}
	}()

	go reloadOnHangup(ctx, app)

	server := api.NewServer(cfg, app.Engine, app.Metrics.Registry, app.HealthChecks())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ScrapeTimeout+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// reloadOnHangup swaps in a fresh profile snapshot on SIGHUP. In-flight
// scrapes keep the profile they resolved.
func reloadOnHangup(ctx context.Context, app *bootstrap.App) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := app.Registry.Reload(reloadCtx); err != nil {
				slog.Error("profile reload failed, keeping previous profiles", slog.Any("error", err))
			}
			cancel()
		}
	}
}
