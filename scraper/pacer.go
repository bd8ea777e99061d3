package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntervalFunc returns the minimum spacing for requests to host.
type IntervalFunc func(host string) time.Duration

// Pacer spaces requests to the same host across concurrent scrapes. It is
// the only state shared between invocations besides the performance feed.
type Pacer struct {
	interval IntervalFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer returns a pacer using interval to size each host's limiter.
func NewPacer(interval IntervalFunc) *Pacer {
	return &Pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context, host string) error {
	if p == nil || host == "" {
		return nil
	}
	limiter := p.limiter(host)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (p *Pacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[host]; ok {
		return l
	}
	var every time.Duration
	if p.interval != nil {
		every = p.interval(host)
	}
	if every <= 0 {
		p.limiters[host] = nil
		return nil
	}
	l := rate.NewLimiter(rate.Every(every), 1)
	p.limiters[host] = l
	return l
}
