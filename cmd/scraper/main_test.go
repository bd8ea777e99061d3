package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/engine"
	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/pipeline"
	"github.com/aluiziolira/go-scrape-coins/profiles"
)

type memoryWriter struct {
	mu      sync.Mutex
	records []*models.ScrapeRecord
}

func (w *memoryWriter) Write(records []*models.ScrapeRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	return nil
}

func (w *memoryWriter) Close() error    { return nil }
func (w *memoryWriter) Validate() error { return nil }

func TestDecodeRequests(t *testing.T) {
	input := `# comment
{"targetUrl":"https://www.ebay.com/sch/i.html","coinQuery":{"country":"USA","year":"1921","name":"Morgan Dollar"}}

{"targetUrl":"https://coins.ha.com/c/search-results.zx","coinQuery":{"country":"France","year":1900},"maxRetries":2}
`
	requests, err := decodeRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodeRequests() error = %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if y := requests[0].CoinQuery.Year; y == nil || *y != 1921 {
		t.Errorf("first year = %v, want 1921", y)
	}
	if requests[1].MaxRetries == nil || *requests[1].MaxRetries != 2 {
		t.Errorf("second maxRetries = %v, want 2", requests[1].MaxRetries)
	}
}

func TestDecodeRequestsReportsLine(t *testing.T) {
	_, err := decodeRequests(strings.NewReader("{\"targetUrl\":\"https://x.test\"}\n{broken\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error = %v, want line 2", err)
	}
}

func TestRunBatch(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~^https://good\.test/`, httpmock.NewStringResponder(http.StatusOK,
		`<title>USA 1921 Morgan silver dollar</title><p>$45.00</p>`))
	transport.RegisterResponder("GET", `=~^https://down\.test/`, httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	registry := profiles.NewRegistry(profiles.StaticStore{
		{Domain: "good.test", Category: models.CategoryMarketplace, MinRequestIntervalMs: 1},
		{Domain: "down.test", Category: models.CategoryMarketplace, MinRequestIntervalMs: 1},
	})
	if err := registry.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Timeout = time.Second
	cfg.ScrapeTimeout = 5 * time.Second
	eng, err := engine.New(engine.Options{Config: cfg, Registry: registry, Transport: transport})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	writer := &memoryWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	query := &models.CoinQuery{Country: "USA", Year: intPtr(1921)}
	requests := []models.ScrapeRequest{
		{TargetURL: "https://good.test/search", CoinQuery: query},
		{TargetURL: "https://good.test/search", CoinQuery: query},
		{TargetURL: "https://down.test/search", CoinQuery: query, MaxRetries: intPtr(2)},
		{TargetURL: "https://good.test/search"},
	}

	result := runBatch(context.Background(), eng, p, requests, 2)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if result.RequestCount != 4 || result.SuccessCount != 2 || result.FailureCount != 2 {
		t.Errorf("result = %+v", result)
	}
	if result.ErrorsByType["not_found"] != 1 || result.ErrorsByType["invalid_request"] != 1 {
		t.Errorf("errors by type = %v", result.ErrorsByType)
	}

	// the duplicate good.test request is filtered by the pipeline
	if len(writer.records) != 3 {
		t.Fatalf("written records = %d, want 3", len(writer.records))
	}
	for _, r := range writer.records {
		switch {
		case r.Domain == "good.test" && r.Success:
			if len(r.Prices) != 1 || r.Prices[0] != 45 {
				t.Errorf("good record = %+v", r)
			}
		case r.Domain == "good.test":
			if !strings.Contains(r.Error, "coinQuery is required") || r.Attempts != 0 {
				t.Errorf("invalid record = %+v", r)
			}
		case r.Domain == "down.test":
			if r.Success || r.Attempts != 2 || r.Error == "" {
				t.Errorf("down record = %+v", r)
			}
		default:
			t.Errorf("unexpected record %+v", r)
		}
	}
}

func TestRunBatchCancelled(t *testing.T) {
	cfg := config.DefaultConfig()
	eng, err := engine.New(engine.Options{Config: cfg, Transport: httpmock.NewMockTransport()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	writer := &memoryWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := runBatch(ctx, eng, p, []models.ScrapeRequest{
		{TargetURL: "https://good.test/search", CoinQuery: &models.CoinQuery{}},
	}, 1)
	_ = p.Close()

	if result.RequestCount != 0 || len(writer.records) != 0 {
		t.Errorf("cancelled batch produced output: %+v, %d records", result, len(writer.records))
	}
}

func intPtr(v int) *int { return &v }
