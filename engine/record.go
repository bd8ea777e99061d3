package engine

import (
	"errors"
	"time"

	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/profiles"
)

// RequestKey identifies a request for de-duplication: the normalised
// domain plus the query key.
func RequestKey(req models.ScrapeRequest) string {
	key := profiles.NormalizeDomain(req.TargetURL)
	if req.CoinQuery != nil {
		key += "#" + req.CoinQuery.Key()
	}
	return key
}

// NewRecord flattens the result of Scrape into a batch row.
func NewRecord(req models.ScrapeRequest, resp *models.ScrapeResponse, err error, at time.Time) *models.ScrapeRecord {
	record := &models.ScrapeRecord{
		Key:          RequestKey(req),
		TargetURL:    req.TargetURL,
		Domain:       profiles.NormalizeDomain(req.TargetURL),
		Prices:       []float64{},
		Descriptions: []string{},
		ScrapedAt:    at.UTC(),
	}
	if err != nil {
		record.Error = err.Error()
	}
	var failed *ScrapeFailedError
	if errors.As(err, &failed) {
		record.Attempts = failed.Attempts
	}
	if resp == nil {
		return record
	}
	record.Success = resp.Success
	if resp.Metadata != nil {
		record.SourceURL = resp.Metadata.SourceURL
		record.Attempts = resp.Metadata.RetryCount + 1
	}
	if resp.Success && resp.Data != nil {
		record.Prices = resp.Data.Prices
		record.Descriptions = resp.Data.Descriptions
		record.Confidence = resp.Data.Confidence
	}
	return record
}
