package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-coins/bootstrap"
	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/engine"
	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/pipeline"
	"github.com/aluiziolira/go-scrape-coins/scraper"
)

func main() {
	cfg := config.DefaultConfig()
	if err := cfg.FromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	input := flag.String("input", "-", "JSONL file of scrape requests (- for stdin)")
	flag.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "Number of concurrent scrapes")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Default attempts per request")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.DurationVar(&cfg.ScrapeTimeout, "scrape-timeout", cfg.ScrapeTimeout, "Per-scrape deadline")
	flag.BoolVar(&cfg.PaceDomains, "pace", cfg.PaceDomains, "Space requests to the same domain across scrapes")
	flag.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	flag.StringVar(&cfg.ProfilesFile, "profiles", cfg.ProfilesFile, "YAML file of source profiles")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL for profiles and performance events")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for performance counters")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := bootstrap.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := run(cfg, *input); err != nil {
		slog.Error("batch scrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, input string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	requests, err := readRequests(input)
	if err != nil {
		return err
	}
	slog.Info("starting batch",
		slog.Int("requests", len(requests)),
		slog.Int("workers", cfg.Parallelism),
	)

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

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, app.Metrics)

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result := runBatch(ctx, app.Engine, p, requests, cfg.Parallelism)

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	outputs := []string{cfg.OutputFile}
	if dual, ok := writer.(*pipeline.DualWriter); ok {
		outputs = dual.Paths()
	}
	printSummary(result, outputs, p.GetMetrics())
	return nil
}

// runBatch scrapes every request with at most parallelism in flight and
// feeds one record per finished scrape into p. Cancelled scrapes produce
// no record.
func runBatch(ctx context.Context, eng *engine.Engine, p *pipeline.Pipeline, requests []models.ScrapeRequest, parallelism int) *models.BatchResult {
	result := &models.BatchResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, req := range requests {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			resp, err := eng.Scrape(gctx, req)
			if resp == nil {
				// cancelled
				return nil
			}

			mu.Lock()
			result.RequestCount++
			if err == nil {
				result.SuccessCount++
			} else {
				result.FailureCount++
				result.ErrorsByType[errorType(err)]++
			}
			mu.Unlock()

			if perr := p.Process(engine.NewRecord(req, resp, err, time.Now())); perr != nil {
				slog.Warn("record dropped", slog.Any("error", perr))
			}
			return nil
		})
	}
	_ = g.Wait()

	result.EndTime = time.Now()
	return result
}

func errorType(err error) string {
	var failed *engine.ScrapeFailedError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &failed):
		return scraper.ErrorType(failed.Err)
	default:
		return "other"
	}
}

func readRequests(path string) ([]models.ScrapeRequest, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeRequests(r)
}

// decodeRequests reads one JSON request per line; blank lines and lines
// starting with # are skipped.
func decodeRequests(r io.Reader) ([]models.ScrapeRequest, error) {
	var requests []models.ScrapeRequest
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var req models.ScrapeRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("input line %d: %w", line, err)
		}
		requests = append(requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return requests, nil
}

func startMetricsServer(addr string, m *scraper.Metrics) *http.Server {
	if addr == "" || m == nil {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}

func printSummary(result *models.BatchResult, outputs []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Batch complete")

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.SuccessCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Failures:      %d\n", result.FailureCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Records:       %d\n", written)
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output:        %s\n", strings.Join(outputs, ", "))
	fmt.Println(separator)
}
