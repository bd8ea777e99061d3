package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/storage"
)

// PostgresSink appends observations to source_performance_events.
type PostgresSink struct {
	db storage.DB
}

// NewPostgresSink wraps db.
func NewPostgresSink(db storage.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

const insertObservation = `INSERT INTO source_performance_events (domain, success, response_time_ms, observed_at) VALUES ($1, $2, $3, $4)`

// Record inserts one row.
func (s *PostgresSink) Record(ctx context.Context, obs models.Observation) error {
	if _, err := s.db.Exec(ctx, insertObservation, obs.Domain, obs.Success, obs.ResponseTimeMs, obs.ObservedAt); err != nil {
		return fmt.Errorf("insert performance event for %s: %w", obs.Domain, err)
	}
	return nil
}

// Default Redis key layout.
const (
	DefaultRedisPrefix = "scraper:source"
	DefaultRedisStream = "scraper:performance"
	DefaultStreamLen   = 10000
)

// RedisSink keeps per-domain counters in a hash and appends every
// observation to a capped stream.
type RedisSink struct {
	client    redis.Cmdable
	prefix    string
	stream    string
	streamLen int64
}

// NewRedisSink uses the default key layout.
func NewRedisSink(client redis.Cmdable) *RedisSink {
	return &RedisSink{
		client:    client,
		prefix:    DefaultRedisPrefix,
		stream:    DefaultRedisStream,
		streamLen: DefaultStreamLen,
	}
}

// CounterKey is the hash holding counters for domain.
func (s *RedisSink) CounterKey(domain string) string {
	return s.prefix + ":" + domain
}

// Record updates the counters and appends to the stream in one transaction.
func (s *RedisSink) Record(ctx context.Context, obs models.Observation) error {
	outcome := "failure"
	if obs.Success {
		outcome = "success"
	}
	key := s.CounterKey(obs.Domain)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, outcome, 1)
		pipe.HIncrBy(ctx, key, "response_time_ms_total", obs.ResponseTimeMs)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.streamLen,
			Approx: true,
			Values: map[string]any{
				"domain":           obs.Domain,
				"success":          strconv.FormatBool(obs.Success),
				"response_time_ms": obs.ResponseTimeMs,
				"observed_at":      obs.ObservedAt.UnixMilli(),
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis performance record for %s: %w", obs.Domain, err)
	}
	return nil
}

// MetricsSink exposes observations as Prometheus series.
type MetricsSink struct {
	observations *prometheus.CounterVec
	responseTime *prometheus.HistogramVec
}

// NewMetricsSink registers its collectors on reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_source_observations_total",
				Help: "Scrape outcomes reported per source domain.",
			},
			[]string{"domain", "outcome"},
		),
		responseTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_source_response_seconds",
				Help:    "End-to-end scrape time per source domain.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"domain"},
		),
	}
	for _, c := range []prometheus.Collector{s.observations, s.responseTime} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register source metrics: %w", err)
		}
	}
	return s, nil
}

// Record never fails.
func (s *MetricsSink) Record(_ context.Context, obs models.Observation) error {
	outcome := "failure"
	if obs.Success {
		outcome = "success"
	}
	s.observations.WithLabelValues(obs.Domain, outcome).Inc()
	s.responseTime.WithLabelValues(obs.Domain).Observe(float64(obs.ResponseTimeMs) / 1000)
	return nil
}

// LogSink writes observations to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Record logs obs at debug level.
func (s LogSink) Record(ctx context.Context, obs models.Observation) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "source observation",
		slog.String("domain", obs.Domain),
		slog.Bool("success", obs.Success),
		slog.Int64("response_time_ms", obs.ResponseTimeMs),
	)
	return nil
}

// MultiSink fans an observation out to every sink. All sinks are tried; the
// errors are joined.
type MultiSink []Sink

// Record delivers obs to each sink in order.
func (m MultiSink) Record(ctx context.Context, obs models.Observation) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
