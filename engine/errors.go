package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks client input errors. No network activity happens
// for a request that fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrScrapeDeadline marks a scrape that ran out of its own time budget
// before a clean response arrived. It is reported like any exhausted scrape.
var ErrScrapeDeadline = errors.New("scrape deadline exceeded")

// Wire error codes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeScrapeFailed   = "scrape_failed"
)

// ScrapeFailedError reports that every attempt against a source failed. It
// is the only scrape-level failure callers see.
type ScrapeFailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ScrapeFailedError) Error() string {
	return fmt.Sprintf("scrape %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *ScrapeFailedError) Unwrap() error {
	return e.Err
}
