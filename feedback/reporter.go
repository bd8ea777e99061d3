// Package feedback reports per-scrape performance observations to the
// source-reliability store without ever blocking or failing a scrape.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// ErrReporterClosed is returned by Report after Close.
var ErrReporterClosed = errors.New("reporter closed")

// Sink stores one observation. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, obs models.Observation) error
}

// Reporter delivers observations to a Sink on a detached goroutine.
type Reporter struct {
	sink    Sink
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewReporter returns a Reporter bounded by timeout per delivery. A nil sink
// discards observations.
func NewReporter(sink Sink, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reporter{
		sink:    sink,
		timeout: timeout,
		now:     time.Now,
	}
}

// Report records one observation for domain. It returns immediately; the
// sink's outcome is logged and counted but never surfaced to the caller.
// Nothing is reported once ctx is done.
func (r *Reporter) Report(ctx context.Context, domain string, success bool, responseTimeMs int64) error {
	if r == nil || r.sink == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	obs := models.Observation{
		Domain:         domain,
		Success:        success,
		ResponseTimeMs: responseTimeMs,
		ObservedAt:     r.now().UTC(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReporterClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.sink.Record(deliverCtx, obs); err != nil {
			r.failed.Add(1)
			slog.Warn("performance report failed",
				slog.String("domain", obs.Domain),
				slog.Bool("success", obs.Success),
				slog.Any("error", err),
			)
			return
		}
		r.delivered.Add(1)
	}()
	return nil
}

// Close stops accepting reports and waits for in-flight deliveries or ctx.
func (r *Reporter) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delivered returns the number of observations the sink accepted.
func (r *Reporter) Delivered() int64 { return r.delivered.Load() }

// Failed returns the number of observations the sink rejected.
func (r *Reporter) Failed() int64 { return r.failed.Load() }
