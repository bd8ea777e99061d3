// Package engine wires the profile registry, URL builder, retry controller,
// extractor and feedback reporter into one sequential scrape invocation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/feedback"
	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/parser"
	"github.com/aluiziolira/go-scrape-coins/profiles"
	"github.com/aluiziolira/go-scrape-coins/scraper"
	"github.com/aluiziolira/go-scrape-coins/search"
)

// Options are the collaborators of an Engine. Only Config is required.
type Options struct {
	Config     *config.Config
	Registry   *profiles.Registry
	Sink       feedback.Sink
	Metrics    *scraper.Metrics
	Identities scraper.IdentityPool
	// Transport replaces the dispatcher's HTTP transport; used by tests.
	Transport http.RoundTripper
	// Fetcher replaces the dispatcher entirely.
	Fetcher scraper.Fetcher
}

// Engine runs scrape invocations. It holds no per-scrape state and is safe
// for concurrent use.
type Engine struct {
	cfg        *config.Config
	registry   *profiles.Registry
	controller *scraper.Controller
	reporter   *feedback.Reporter
	metrics    *scraper.Metrics
	now        func() time.Time
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	registry := opts.Registry
	if registry == nil {
		registry = profiles.NewRegistry(nil)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		var pacer *scraper.Pacer
		if opts.Config.PaceDomains {
			pacer = scraper.NewPacer(func(host string) time.Duration {
				p := registry.Resolve(host)
				return p.MinRequestInterval()
			})
		}
		fetcher = scraper.NewDispatcher(scraper.DispatcherOptions{
			Timeout:     opts.Config.Timeout,
			MaxBodySize: opts.Config.MaxBodySize,
			Transport:   opts.Transport,
			Pacer:       pacer,
			Metrics:     opts.Metrics,
		})
	}

	return &Engine{
		cfg:        opts.Config,
		registry:   registry,
		controller: scraper.NewController(fetcher, opts.Identities, opts.Metrics),
		reporter:   feedback.NewReporter(opts.Sink, opts.Config.ReportTimeout),
		metrics:    opts.Metrics,
		now:        time.Now,
	}, nil
}

// Registry returns the profile registry used for resolution.
func (e *Engine) Registry() *profiles.Registry {
	return e.registry
}

// Reporter returns the performance feedback reporter.
func (e *Engine) Reporter() *feedback.Reporter {
	return e.reporter
}

// Close waits for in-flight performance reports.
func (e *Engine) Close(ctx context.Context) error {
	return e.reporter.Close(ctx)
}

// Validate checks the client-supplied fields of req.
func Validate(req models.ScrapeRequest) error {
	target := strings.TrimSpace(req.TargetURL)
	if target == "" {
		return fmt.Errorf("%w: targetUrl is required", ErrInvalidRequest)
	}
	if req.CoinQuery == nil {
		return fmt.Errorf("%w: coinQuery is required", ErrInvalidRequest)
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: targetUrl %q is not an absolute http(s) URL", ErrInvalidRequest, target)
	}
	if req.MaxRetries != nil && *req.MaxRetries > config.MaxAttemptsLimit {
		return fmt.Errorf("%w: maxRetries must be at most %d", ErrInvalidRequest, config.MaxAttemptsLimit)
	}
	return nil
}

// Scrape runs one invocation: validate, resolve profile, build URL, retry
// loop, extract, report. The returned response is always well formed unless
// the caller's ctx was cancelled, in which case it is nil and nothing is
// reported. Running out of ScrapeTimeout counts as an exhausted scrape.
// A non-nil error wraps ErrInvalidRequest, *ScrapeFailedError or ctx.Err().
func (e *Engine) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResponse, error) {
	if err := Validate(req); err != nil {
		e.metrics.IncScrape("invalid")
		return ErrorResponse(CodeInvalidRequest, err.Error()), err
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ScrapeTimeout)
	defer cancel()

	start := e.now()
	target := strings.TrimSpace(req.TargetURL)
	query := *req.CoinQuery
	domain := profiles.NormalizeDomain(target)
	profile := e.registry.Resolve(domain)
	searchURL := search.BuildURL(target, query, profile)

	scrapeID := uuid.NewString()
	log := slog.With(
		slog.String("scrape_id", scrapeID),
		slog.String("domain", domain),
	)
	if profile.RequiresRendering {
		log.Debug("source usually requires rendering; results may be incomplete")
	}

	maxAttempts := e.cfg.MaxRetries
	if req.MaxRetries != nil {
		maxAttempts = *req.MaxRetries
	}

	outcome := e.controller.Scrape(ctx, searchURL, profile, maxAttempts)
	if err := parent.Err(); err != nil {
		e.metrics.IncScrape("cancelled")
		log.Info("scrape cancelled", slog.Any("error", err))
		return nil, fmt.Errorf("scrape %s: %w", scrapeID, err)
	}
	if !outcome.Success && ctx.Err() != nil {
		outcome.Err = fmt.Errorf("%w after %s: %w", ErrScrapeDeadline, e.cfg.ScrapeTimeout, outcome.Err)
	}

	extraction := parser.Empty()
	if outcome.Success {
		extraction = parser.ExtractWithHints(outcome.Body, query, profile.FieldHints)
	}
	elapsed := e.now().Sub(start)

	if err := e.reporter.Report(parent, domain, outcome.Success, elapsed.Milliseconds()); err != nil {
		log.Debug("performance report skipped", slog.Any("error", err))
	}

	retries := outcome.AttemptsUsed - 1
	if retries < 0 {
		retries = 0
	}
	resp := &models.ScrapeResponse{
		Success: outcome.Success,
		Data: &models.ScrapeData{
			DataPoints:   extraction.DataPoints(),
			Prices:       extraction.Prices,
			Descriptions: extraction.Descriptions,
			Confidence:   extraction.Confidence,
		},
		Metadata: &models.ScrapeMetadata{
			ScrapeID:         scrapeID,
			SourceURL:        searchURL,
			ProcessingTimeMs: elapsed.Milliseconds(),
			UserAgentUsed:    outcome.IdentityUsed.UserAgent,
			RetryCount:       retries,
			DataPointsFound:  extraction.DataPoints(),
			Timestamp:        e.now().UTC(),
		},
	}

	if !outcome.Success {
		e.metrics.IncScrape("failure")
		failure := &ScrapeFailedError{URL: searchURL, Attempts: outcome.AttemptsUsed, Err: outcome.Err}
		resp.Error = CodeScrapeFailed
		resp.Message = errorMessage(outcome.Err)
		log.Warn("scrape failed",
			slog.Int("attempts", outcome.AttemptsUsed),
			slog.String("error_type", scraper.ErrorType(outcome.Err)),
		)
		return resp, failure
	}

	e.metrics.IncScrape("success")
	e.metrics.ObserveExtraction(len(extraction.Prices), extraction.Confidence)
	log.Info("scrape completed",
		slog.Int("attempts", outcome.AttemptsUsed),
		slog.Int("prices", len(extraction.Prices)),
		slog.Int("descriptions", len(extraction.Descriptions)),
		slog.Float64("confidence", extraction.Confidence),
		slog.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// ErrorResponse builds a failure body without data.
func ErrorResponse(code, message string) *models.ScrapeResponse {
	return &models.ScrapeResponse{
		Success: false,
		Error:   code,
		Message: message,
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "all attempts failed"
	}
	return err.Error()
}
