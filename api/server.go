// Package api exposes the scrape engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/models"
)

// Scraper runs one scrape invocation.
type Scraper interface {
	Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResponse, error)
}

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	scraper    Scraper
	gatherer   prometheus.Gatherer
	checks     map[string]HealthCheck
}

// NewServer builds the router. gatherer may be nil to serve the default
// registry; checks may be nil.
func NewServer(cfg *config.Config, s Scraper, gatherer prometheus.Gatherer, checks map[string]HealthCheck) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	srv := &Server{
		config:   cfg,
		scraper:  s,
		gatherer: gatherer,
		checks:   checks,
	}
	srv.router = srv.setupRouter()
	return srv
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.requestTimeout() + 5*time.Second,
	}
	slog.Info("http server listening", slog.String("addr", s.config.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestTimeout() time.Duration {
	return s.config.ScrapeTimeout + 5*time.Second
}
