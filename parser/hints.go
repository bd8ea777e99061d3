package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// ExtractWithHints runs Extract and then, for fields that came back empty,
// consults the profile's CSS selector hints. Hints never override values the
// pattern pass already found.
func ExtractWithHints(body string, query models.CoinQuery, hints map[models.Field][]string) models.ExtractionResult {
	result := Extract(body, query)
	if len(hints) == 0 || (len(result.Prices) > 0 && len(result.Descriptions) > 0) {
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return result
	}

	if len(result.Prices) == 0 {
		result.Prices = hintedPrices(doc, hints[models.FieldPrice])
	}
	if len(result.Descriptions) == 0 {
		selectors := append(append([]string{}, hints[models.FieldTitle]...), hints[models.FieldDescription]...)
		result.Descriptions = hintedDescriptions(doc, selectors)
	}
	result.Confidence = Confidence(result.Prices, result.Descriptions, query)
	return result
}

func hintedPrices(doc *goquery.Document, selectors []string) []float64 {
	prices := make([]float64, 0, MaxPrices)
	seen := make(map[float64]struct{})
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			candidates := ExtractPrices(text)
			if len(candidates) == 0 {
				if v, ok := NormalizePrice(text); ok {
					candidates = []float64{v}
				}
			}
			for _, v := range candidates {
				if _, dup := seen[v]; dup {
					continue
				}
				seen[v] = struct{}{}
				prices = append(prices, v)
				if len(prices) >= MaxPrices {
					return false
				}
			}
			return true
		})
		if len(prices) >= MaxPrices {
			break
		}
	}
	return prices
}

func hintedDescriptions(doc *goquery.Document, selectors []string) []string {
	descriptions := make([]string, 0, MaxDescriptions)
	seen := make(map[string]struct{})
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := CleanText(s.Text())
			if !ValidDescription(text) {
				return true
			}
			if _, dup := seen[text]; dup {
				return true
			}
			seen[text] = struct{}{}
			descriptions = append(descriptions, text)
			return len(descriptions) < MaxDescriptions
		})
		if len(descriptions) >= MaxDescriptions {
			break
		}
	}
	return descriptions
}
