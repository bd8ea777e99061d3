package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	BotDefenseTotal  prometheus.Counter
	ScrapesTotal     *prometheus.CounterVec
	PricesFoundTotal prometheus.Counter
	ConfidenceScores prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts made after a failed attempt.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of failed attempts by type.",
		},
		[]string{"error_type"},
	)
	botDefense := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_bot_defense_total",
			Help: "Responses rejected because they looked like an anti-bot page.",
		},
	)
	scrapes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_scrapes_total",
			Help: "Top-level scrape invocations by outcome.",
		},
		[]string{"outcome"},
	)
	prices := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_prices_extracted_total",
			Help: "Total number of plausible prices extracted.",
		},
	)
	confidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_extraction_confidence",
			Help:    "Confidence score of successful extractions.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, botDefense, scrapes, prices, confidence)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		BotDefenseTotal:  botDefense,
		ScrapesTotal:     scrapes,
		PricesFoundTotal: prices,
		ConfidenceScores: confidence,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncBotDefense counts a rejected anti-bot response.
func (m *Metrics) IncBotDefense() {
	if m == nil {
		return
	}
	m.BotDefenseTotal.Inc()
}

// IncScrape counts a finished scrape invocation.
func (m *Metrics) IncScrape(outcome string) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records the size and confidence of an extraction.
func (m *Metrics) ObserveExtraction(prices int, confidence float64) {
	if m == nil {
		return
	}
	m.PricesFoundTotal.Add(float64(prices))
	m.ConfidenceScores.Observe(confidence)
}
