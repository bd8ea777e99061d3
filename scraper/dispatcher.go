package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/aluiziolira/go-scrape-coins/models"
)

const defaultMaxBodySize = 10 * 1024 * 1024

// RawResponse is a successful (2xx) fetch.
type RawResponse struct {
	URL        string
	StatusCode int
	Body       string
	Headers    http.Header
	Duration   time.Duration
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Timeout     time.Duration
	MaxBodySize int
	Transport   http.RoundTripper
	Pacer       *Pacer
	Metrics     *Metrics
}

// Dispatcher performs single GET requests through a colly collector. It
// never retries.
type Dispatcher struct {
	timeout     time.Duration
	maxBodySize int
	transport   http.RoundTripper
	pacer       *Pacer
	metrics     *Metrics
}

// NewDispatcher builds a dispatcher. A nil Transport uses a pooled default.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.Transport == nil {
		opts.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return &Dispatcher{
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		transport:   opts.Transport,
		pacer:       opts.Pacer,
		metrics:     opts.Metrics,
	}
}

// Timeout returns the per-request timeout.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// FetchOnce issues one GET for target using identity's header bundle. Any
// failure, including a non-2xx status, is returned as *TransportError. If ctx
// is done the context error is returned unwrapped.
func (d *Dispatcher) FetchOnce(ctx context.Context, target string, identity models.Identity) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pacer != nil {
		if err := d.pacer.Wait(ctx, hostOf(target)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, newTransportError(target, 0, err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(identity.UserAgent),
		colly.MaxBodySize(d.maxBodySize),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(d.timeout)
	c.WithTransport(&contextTransport{ctx: reqCtx, base: d.transport})

	var (
		resp     *RawResponse
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			fetchErr = newTransportError(target, r.StatusCode, nil)
			return
		}
		headers := http.Header{}
		if r.Headers != nil {
			headers = *r.Headers
		}
		body := r.Body
		if strings.Contains(strings.ToLower(headers.Get("Content-Encoding")), "deflate") {
			decoded, err := inflate(body, d.maxBodySize)
			if err != nil {
				fetchErr = newTransportError(target, r.StatusCode, fmt.Errorf("decode deflate body: %w", err))
				return
			}
			body = decoded
		}
		resp = &RawResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       string(body),
			Headers:    headers,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = newTransportError(target, status, err)
	})

	d.metrics.IncRequest("started")
	start := time.Now()
	if err := c.Request(http.MethodGet, target, nil, nil, headerFor(identity)); err != nil && fetchErr == nil {
		fetchErr = newTransportError(target, 0, err)
	}
	elapsed := time.Since(start)
	d.metrics.ObserveDuration(elapsed)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		d.metrics.IncRequest("failed")
		slog.Debug("fetch failed",
			slog.String("url", target),
			slog.String("identity", identity.Name),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", fetchErr),
		)
		return nil, fetchErr
	}
	if resp == nil {
		d.metrics.IncRequest("failed")
		return nil, newTransportError(target, 0, fmt.Errorf("no response"))
	}

	d.metrics.IncRequest("succeeded")
	resp.Duration = elapsed
	return resp, nil
}

// contextTransport binds every round trip to the dispatcher call's context so
// cancellation and the per-request deadline reach the connection.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// inflate decodes a deflate body. Servers send both zlib-wrapped and raw
// streams under that encoding. colly only decodes gzip.
func inflate(body []byte, limit int) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, int64(limit)))
	}
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	return io.ReadAll(io.LimitReader(fr, int64(limit)))
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
