// Package search turns coin queries into domain-appropriate search URLs.
package search

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// FallbackTerm is used when a query has no usable fields.
const FallbackTerm = "coin"

// Template describes the query string a family of sites expects.
type Template struct {
	Param string // search parameter name
	Extra string // appended verbatim after the search parameter
}

var (
	auctionTemplate = Template{Param: "q", Extra: "category=coins"}
	plainTemplate   = Template{Param: "q"}
)

// domainTemplates is matched in order against the lower-cased base URL host.
// Keys containing a dot must match whole labels; the rest match anywhere.
var domainTemplates = []struct {
	key      string
	template Template
}{
	{"ha.com", auctionTemplate},
	{"heritage", auctionTemplate},
	{"stacksbowers", auctionTemplate},
	{"greatcollections", auctionTemplate},
	{"catawiki", auctionTemplate},
	{"ebay", plainTemplate},
	{"vcoins", plainTemplate},
	{"apmex", plainTemplate},
	{"numista", plainTemplate},
}

// categoryTemplates applies when no domain key matched.
var categoryTemplates = map[models.Category]Template{
	models.CategoryAuctionHouse: auctionTemplate,
	models.CategoryMarketplace:  plainTemplate,
	models.CategoryDatabase:     plainTemplate,
}

var noiseWords = regexp.MustCompile(`(?i)\b(coin|currency|money)\b`)

// BuildTerm composes the human readable search term for q.
func BuildTerm(q models.CoinQuery) string {
	parts := make([]string, 0, 4)
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" || strings.EqualFold(s, "unknown") {
			return
		}
		parts = append(parts, s)
	}

	add(q.Country)
	add(q.YearString())
	add(q.Denomination)
	add(noiseWords.ReplaceAllString(q.Name, " "))

	if len(parts) == 0 {
		add(q.FreeText)
	}
	if len(parts) == 0 {
		return FallbackTerm
	}
	return strings.Join(parts, " ")
}

// TemplateFor picks the query template for baseURL, falling back to the
// profile's category and then to the generic template.
func TemplateFor(baseURL string, profile models.SourceProfile) Template {
	host := strings.ToLower(baseURL)
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	for _, entry := range domainTemplates {
		if hostMatches(host, entry.key) {
			return entry.template
		}
	}
	if t, ok := categoryTemplates[profile.Category]; ok {
		return t
	}
	return plainTemplate
}

func hostMatches(host, key string) bool {
	if strings.Contains(key, ".") {
		return host == key || strings.HasSuffix(host, "."+key)
	}
	return strings.Contains(host, key)
}

// BuildURL returns the search URL for query on baseURL. It never fails and
// never returns an empty string.
func BuildURL(baseURL string, query models.CoinQuery, profile models.SourceProfile) string {
	tmpl := TemplateFor(baseURL, profile)
	params := tmpl.Param + "=" + url.QueryEscape(BuildTerm(query))
	if tmpl.Extra != "" {
		params += "&" + tmpl.Extra
	}

	base := strings.TrimSpace(baseURL)
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	switch {
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		return base + params
	case strings.Contains(base, "?"):
		return base + "&" + params
	default:
		return base + "?" + params
	}
}
