// Package parser extracts and validates price and description signals from
// arbitrary HTML using tolerant pattern matching.
package parser

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// Bounds applied to extracted values.
const (
	MaxPrice          = 1_000_000.0
	MaxPrices         = 10
	MaxDescriptions   = 10
	MinDescriptionLen = 10
	MaxDescriptionLen = 200
)

var (
	nonNumeric = regexp.MustCompile(`[^0-9.]`)
	tags       = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizePrice strips everything but digits and the decimal point and
// parses the rest. ok is false for unparseable or implausible values.
func NormalizePrice(raw string) (float64, bool) {
	digits := nonNumeric.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return value, PlausiblePrice(value)
}

// PlausiblePrice reports whether v lies in the open interval (0, MaxPrice).
func PlausiblePrice(v float64) bool {
	return v > 0 && v < MaxPrice && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CleanText decodes entities, strips tags and collapses whitespace. Tags
// that only appear once entities are decoded are stripped too.
func CleanText(raw string) string {
	text := tags.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = tags.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ValidDescription reports whether s has an acceptable length.
func ValidDescription(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= MinDescriptionLen && n <= MaxDescriptionLen
}

// ValidateRecord ensures a batch record is internally consistent.
func ValidateRecord(r *models.ScrapeRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("record missing key")
	}
	if strings.TrimSpace(r.TargetURL) == "" {
		return fmt.Errorf("record missing target url for %s", r.Key)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("record %s confidence %v out of range", r.Key, r.Confidence)
	}
	if !r.Success && (len(r.Prices) > 0 || len(r.Descriptions) > 0) {
		return fmt.Errorf("failed record %s carries extracted data", r.Key)
	}
	for _, p := range r.Prices {
		if !PlausiblePrice(p) {
			return fmt.Errorf("record %s has implausible price %v", r.Key, p)
		}
	}
	return nil
}
