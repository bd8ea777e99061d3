package engine

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/profiles"
	"github.com/aluiziolira/go-scrape-coins/scraper"
)

const (
	testTarget  = "https://coins.test/search"
	testPattern = `=~^https://coins\.test/search`
	goodPage    = `<html><head><title>France 1900 20 Francs gold rooster</title></head>
<body><p>$310.00</p><p>$295.50</p><p>sold for $305</p></body></html>`
)

type memorySink struct {
	mu      sync.Mutex
	got     []models.Observation
	err     error
	release chan struct{}
}

func (s *memorySink) Record(_ context.Context, obs models.Observation) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, obs)
	return s.err
}

func (s *memorySink) observations() []models.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Observation(nil), s.got...)
}

func intPtr(v int) *int { return &v }

func testRequest() models.ScrapeRequest {
	return models.ScrapeRequest{
		TargetURL: testTarget,
		CoinQuery: &models.CoinQuery{Country: "France", Year: intPtr(1900), Denomination: "20 Francs"},
	}
}

func newTestEngine(t *testing.T, transport http.RoundTripper, sink *memorySink) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timeout = time.Second
	cfg.ScrapeTimeout = 5 * time.Second
	return newTestEngineWithConfig(t, transport, sink, cfg)
}

func newTestEngineWithConfig(t *testing.T, transport http.RoundTripper, sink *memorySink, cfg *config.Config) *Engine {
	t.Helper()
	registry := profiles.NewRegistry(profiles.StaticStore{{
		Domain:               "coins.test",
		Category:             models.CategoryAuctionHouse,
		MinRequestIntervalMs: 1,
	}})
	if err := registry.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	opts := Options{
		Config:    cfg,
		Registry:  registry,
		Transport: transport,
		Metrics:   scraper.NewMetrics(),
	}
	if sink != nil {
		opts.Sink = sink
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestScrapeSuccess(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.NewStringResponder(http.StatusOK, goodPage))

	sink := &memorySink{}
	e := newTestEngine(t, transport, sink)

	resp, err := e.Scrape(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Fatalf("unexpected failure response %+v", resp)
	}
	if got, want := resp.Data.Prices, []float64{310, 295.5, 305}; len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("prices = %v, want %v", got, want)
	}
	if resp.Data.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", resp.Data.Confidence)
	}
	if resp.Data.DataPoints != 4 || resp.Metadata.DataPointsFound != 4 {
		t.Errorf("data points = %d/%d, want 4", resp.Data.DataPoints, resp.Metadata.DataPointsFound)
	}
	if !strings.Contains(resp.Metadata.SourceURL, "q=France+1900+20+Francs") {
		t.Errorf("source url = %q, want built search term", resp.Metadata.SourceURL)
	}
	if resp.Metadata.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", resp.Metadata.RetryCount)
	}
	if resp.Metadata.UserAgentUsed != scraper.DefaultIdentities().At(0).UserAgent {
		t.Errorf("user agent = %q", resp.Metadata.UserAgentUsed)
	}
	if resp.Metadata.ScrapeID == "" {
		t.Error("scrape id should be set")
	}

	_ = e.Close(context.Background())
	obs := sink.observations()
	if len(obs) != 1 || obs[0].Domain != "coins.test" || !obs[0].Success {
		t.Errorf("observations = %+v, want one success for coins.test", obs)
	}
}

func TestScrapeInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  models.ScrapeRequest
	}{
		{"missing target", models.ScrapeRequest{CoinQuery: &models.CoinQuery{Country: "France"}}},
		{"missing query", models.ScrapeRequest{TargetURL: testTarget}},
		{"relative target", models.ScrapeRequest{TargetURL: "/search", CoinQuery: &models.CoinQuery{}}},
		{"retries above limit", models.ScrapeRequest{TargetURL: testTarget, CoinQuery: &models.CoinQuery{}, MaxRetries: intPtr(config.MaxAttemptsLimit + 1)}},
		{"huge retries", models.ScrapeRequest{TargetURL: testTarget, CoinQuery: &models.CoinQuery{}, MaxRetries: intPtr(1 << 62)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			sink := &memorySink{}
			e := newTestEngine(t, transport, sink)

			resp, err := e.Scrape(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("error = %v, want ErrInvalidRequest", err)
			}
			if resp == nil || resp.Success || resp.Error != CodeInvalidRequest || resp.Message == "" {
				t.Errorf("response = %+v, want invalid_request", resp)
			}
			_ = e.Close(context.Background())
			if n := transport.GetTotalCallCount(); n != 0 {
				t.Errorf("network calls = %d, want 0", n)
			}
			if n := len(sink.observations()); n != 0 {
				t.Errorf("observations = %d, want 0", n)
			}
		})
	}
}

func TestScrapeUnreachableDomain(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.NewErrorResponder(errors.New("dial tcp: lookup coins.test: no such host")))

	sink := &memorySink{}
	e := newTestEngine(t, transport, sink)

	resp, err := e.Scrape(context.Background(), testRequest())
	var failed *ScrapeFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *ScrapeFailedError", err)
	}
	if failed.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", failed.Attempts)
	}
	var te *scraper.TransportError
	if !errors.As(err, &te) {
		t.Errorf("error chain should carry the last transport error: %v", err)
	}
	if n := transport.GetTotalCallCount(); n != 3 {
		t.Errorf("network calls = %d, want 3", n)
	}

	if resp == nil || resp.Success || resp.Error != CodeScrapeFailed || resp.Message == "" {
		t.Fatalf("response = %+v, want scrape_failed", resp)
	}
	if len(resp.Data.Prices) != 0 || len(resp.Data.Descriptions) != 0 || resp.Data.Confidence != 0 {
		t.Errorf("data = %+v, want empty extraction with zero confidence", resp.Data)
	}
	if resp.Metadata.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", resp.Metadata.RetryCount)
	}

	_ = e.Close(context.Background())
	obs := sink.observations()
	if len(obs) != 1 || obs[0].Success {
		t.Errorf("observations = %+v, want one failure", obs)
	}
}

func TestScrapeRetriesPastBotDefense(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.ResponderFromMultipleResponses([]*http.Response{
		httpmock.NewStringResponse(http.StatusOK, "<title>Please solve the CAPTCHA</title>"),
		httpmock.NewStringResponse(http.StatusOK, goodPage),
	}))

	e := newTestEngine(t, transport, nil)
	resp, err := e.Scrape(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if resp.Metadata.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", resp.Metadata.RetryCount)
	}
	if resp.Metadata.UserAgentUsed != scraper.DefaultIdentities().At(1).UserAgent {
		t.Errorf("user agent = %q, want second identity", resp.Metadata.UserAgentUsed)
	}
}

func TestScrapeMaxRetriesOverride(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	e := newTestEngine(t, transport, nil)
	req := testRequest()
	req.MaxRetries = intPtr(1)

	_, err := e.Scrape(context.Background(), req)
	var failed *ScrapeFailedError
	if !errors.As(err, &failed) || failed.Attempts != 1 {
		t.Fatalf("error = %v, want failure after 1 attempt", err)
	}
	if n := transport.GetTotalCallCount(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestScrapeCancelled(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.NewStringResponder(http.StatusOK, goodPage))

	sink := &memorySink{}
	e := newTestEngine(t, transport, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := e.Scrape(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if resp != nil {
		t.Errorf("response = %+v, want nil on cancellation", resp)
	}
	_ = e.Close(context.Background())
	if n := len(sink.observations()); n != 0 {
		t.Errorf("observations = %d, want 0", n)
	}
}

func TestScrapeDeadlineIsReportedAsFailure(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	cfg := config.DefaultConfig()
	cfg.Timeout = 150 * time.Millisecond
	cfg.ScrapeTimeout = 200 * time.Millisecond
	sink := &memorySink{}
	e := newTestEngineWithConfig(t, transport, sink, cfg)

	req := testRequest()
	req.MaxRetries = intPtr(config.MaxAttemptsLimit)
	resp, err := e.Scrape(context.Background(), req)

	var failed *ScrapeFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *ScrapeFailedError", err)
	}
	if !errors.Is(err, ErrScrapeDeadline) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want ErrScrapeDeadline wrapping the deadline", err)
	}
	if resp == nil || resp.Success || resp.Error != CodeScrapeFailed || resp.Metadata == nil || resp.Data == nil {
		t.Fatalf("response = %+v, want a well formed scrape_failed body", resp)
	}
	if resp.Data.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", resp.Data.Confidence)
	}

	_ = e.Close(context.Background())
	obs := sink.observations()
	if len(obs) != 1 || obs[0].Success || obs[0].Domain != "coins.test" {
		t.Errorf("observations = %+v, want one failure for coins.test", obs)
	}
}

func TestScrapeSinkOutageDoesNotAffectResult(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testPattern, httpmock.NewStringResponder(http.StatusOK, goodPage))

	healthy := newTestEngine(t, transport, &memorySink{})
	baseline, err := healthy.Scrape(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("baseline Scrape() error = %v", err)
	}

	broken := &memorySink{err: errors.New("sink unavailable"), release: make(chan struct{})}
	e := newTestEngine(t, transport, broken)

	start := time.Now()
	resp, err := e.Scrape(context.Background(), testRequest())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Scrape took %s while sink was blocked", elapsed)
	}
	if !resp.Success || math.Abs(resp.Data.Confidence-baseline.Data.Confidence) > 1e-9 ||
		len(resp.Data.Prices) != len(baseline.Data.Prices) || len(resp.Data.Descriptions) != len(baseline.Data.Descriptions) {
		t.Errorf("response %+v differs from baseline %+v", resp.Data, baseline.Data)
	}

	close(broken.release)
	_ = e.Close(context.Background())
	if e.Reporter().Failed() != 1 {
		t.Errorf("failed reports = %d, want 1", e.Reporter().Failed())
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without config should fail")
	}
	cfg := config.DefaultConfig()
	cfg.Timeout = cfg.ScrapeTimeout
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Error("New() with invalid config should fail")
	}
}
