package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// priceMatchers run in order; encounter order across matchers is preserved.
var priceMatchers = []*regexp.Regexp{
	regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`),                                         // dollar
	regexp.MustCompile(`(?i)\bUSD\s?\$?\s?\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s?USD\b`), // explicit USD
	regexp.MustCompile(`€\s?\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s?€`),                   // euro
	regexp.MustCompile(`£\s?\d[\d,]*(?:\.\d+)?`),                                          // pound
	regexp.MustCompile(`(?i)price:\s*[$€£]?\s*\d[\d,]*(?:\.\d+)?`),                        // "Price:" prefix
	regexp.MustCompile(`(?i)sold\s+for\s*[$€£]?\s*\d[\d,]*(?:\.\d+)?`),                    // "sold for"
}

var descriptionMatchers = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`),
	regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`),
	regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`),
}

// Confidence weights.
const (
	baseConfidence      = 0.2
	anyPriceWeight      = 0.3
	manyPricesWeight    = 0.2
	manyPricesThreshold = 3
	descriptionWeight   = 0.2
	corroborationWeight = 0.3
)

// Empty is the result for a scrape that produced no content.
func Empty() models.ExtractionResult {
	return models.ExtractionResult{
		Prices:       []float64{},
		Descriptions: []string{},
		Confidence:   0,
	}
}

// Extract pulls candidate prices and descriptions out of body and scores
// them against query. It is deterministic and never fails.
func Extract(body string, query models.CoinQuery) models.ExtractionResult {
	prices := ExtractPrices(body)
	descriptions := ExtractDescriptions(body)
	return models.ExtractionResult{
		Prices:       prices,
		Descriptions: descriptions,
		Confidence:   Confidence(prices, descriptions, query),
	}
}

// ExtractPrices returns up to MaxPrices distinct plausible prices.
func ExtractPrices(body string) []float64 {
	prices := make([]float64, 0, MaxPrices)
	seen := make(map[float64]struct{})
	for _, re := range priceMatchers {
		for _, match := range re.FindAllString(body, -1) {
			if len(prices) >= MaxPrices {
				return prices
			}
			value, ok := NormalizePrice(match)
			if !ok {
				continue
			}
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			prices = append(prices, value)
		}
	}
	return prices
}

// ExtractDescriptions returns up to MaxDescriptions distinct cleaned snippets
// from the title and top-level headings.
func ExtractDescriptions(body string) []string {
	descriptions := make([]string, 0, MaxDescriptions)
	seen := make(map[string]struct{})
	for _, re := range descriptionMatchers {
		for _, match := range re.FindAllStringSubmatch(body, -1) {
			if len(descriptions) >= MaxDescriptions {
				return descriptions
			}
			text := CleanText(match[1])
			if !ValidDescription(text) {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			descriptions = append(descriptions, text)
		}
	}
	return descriptions
}

// Confidence scores extracted values. Textual corroboration against the
// query carries the largest single weight.
func Confidence(prices []float64, descriptions []string, query models.CoinQuery) float64 {
	score := baseConfidence
	if len(prices) > 0 {
		score += anyPriceWeight
	}
	if len(prices) >= manyPricesThreshold {
		score += manyPricesWeight
	}
	if len(descriptions) > 0 {
		score += descriptionWeight
	}
	if corroborates(descriptions, query) {
		score += corroborationWeight
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*100) / 100
}

func corroborates(descriptions []string, query models.CoinQuery) bool {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return false
	}
	for _, d := range descriptions {
		lower := strings.ToLower(d)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func queryTerms(query models.CoinQuery) []string {
	var terms []string
	for _, t := range []string{query.Country, query.YearString(), query.Denomination} {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "unknown" {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}
