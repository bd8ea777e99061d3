package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "dns failure", err: &net.DNSError{Err: "no such host", Name: "nowhere.example"}, statusCode: 0, expected: "connection"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "unavailable", err: nil, statusCode: http.StatusServiceUnavailable, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "server_error"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
		{name: "bot defense", err: fmt.Errorf("%w: matched captcha", ErrBotDefense), statusCode: 0, expected: "bot_defense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestTransportErrorClasses(t *testing.T) {
	tests := []struct {
		status      int
		rateLimited bool
		retryable   bool
		label       string
	}{
		{status: 0, retryable: true, label: "other"},
		{status: http.StatusTooManyRequests, rateLimited: true, retryable: true, label: "rate_limited"},
		{status: http.StatusServiceUnavailable, rateLimited: true, retryable: true, label: "rate_limited"},
		{status: http.StatusInternalServerError, retryable: true, label: "server_error"},
		{status: http.StatusNotFound, label: "not_found"},
		{status: http.StatusGone, label: "status"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			var cause error
			if tt.status == 0 {
				cause = errors.New("eof")
			}
			te := newTransportError("http://dealer.example", tt.status, cause)
			if te.RateLimited() != tt.rateLimited {
				t.Fatalf("RateLimited() = %v", te.RateLimited())
			}
			if te.Retryable() != tt.retryable {
				t.Fatalf("Retryable() = %v", te.Retryable())
			}
			if got := ErrorType(te); got != tt.label {
				t.Fatalf("ErrorType() = %q, want %q", got, tt.label)
			}
		})
	}
}
