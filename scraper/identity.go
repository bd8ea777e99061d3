package scraper

import (
	"net/http"

	"github.com/aluiziolira/go-scrape-coins/models"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	safariUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0"
	edgeUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0"
	linuxUA   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// IdentityPool is a fixed rotation of browser identities. Rotation is by
// attempt index so a given attempt always uses the same identity.
type IdentityPool []models.Identity

// At returns identity i mod len(p).
func (p IdentityPool) At(i int) models.Identity {
	if len(p) == 0 {
		return models.Identity{}
	}
	if i < 0 {
		i = -i
	}
	return p[i%len(p)]
}

// DefaultIdentities returns the built-in pool. Each entry is a header bundle
// a real browser of that family sends on a top-level navigation.
func DefaultIdentities() IdentityPool {
	navigate := map[string]string{
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Connection":                "keep-alive",
		"DNT":                       "1",
	}
	with := func(base map[string]string, extra map[string]string) map[string]string {
		out := make(map[string]string, len(base)+len(extra))
		for k, v := range base {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	return IdentityPool{
		{
			Name:      "chrome-windows",
			UserAgent: chromeUA,
			Headers: with(navigate, map[string]string{
				"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language":    "en-US,en;q=0.9",
				"Accept-Encoding":    "gzip",
				"Cache-Control":      "max-age=0",
				"Sec-Ch-Ua":          `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
				"Sec-Ch-Ua-Mobile":   "?0",
				"Sec-Ch-Ua-Platform": `"Windows"`,
			}),
		},
		{
			Name:      "safari-macos",
			UserAgent: safariUA,
			Headers: with(navigate, map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"Accept-Language": "en-GB,en;q=0.9",
				"Accept-Encoding": "gzip",
				"Cache-Control":   "no-cache",
			}),
		},
		{
			Name:      "firefox-windows",
			UserAgent: firefoxUA,
			Headers: with(navigate, map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				"Accept-Language": "en-US,en;q=0.5",
				"Accept-Encoding": "gzip",
				"Cache-Control":   "no-cache",
			}),
		},
		{
			Name:      "edge-windows",
			UserAgent: edgeUA,
			Headers: with(navigate, map[string]string{
				"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language":    "en-US,en;q=0.9,de;q=0.7",
				"Accept-Encoding":    "gzip",
				"Cache-Control":      "max-age=0",
				"Sec-Ch-Ua":          `"Chromium";v="124", "Microsoft Edge";v="124", "Not-A.Brand";v="99"`,
				"Sec-Ch-Ua-Mobile":   "?0",
				"Sec-Ch-Ua-Platform": `"Windows"`,
			}),
		},
		{
			Name:      "chrome-linux",
			UserAgent: linuxUA,
			Headers: with(navigate, map[string]string{
				"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language":    "en-US,en;q=0.8",
				"Accept-Encoding":    "gzip",
				"Cache-Control":      "max-age=0",
				"Sec-Ch-Ua":          `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
				"Sec-Ch-Ua-Mobile":   "?0",
				"Sec-Ch-Ua-Platform": `"Linux"`,
			}),
		},
	}
}

func headerFor(id models.Identity) http.Header {
	h := make(http.Header, len(id.Headers)+1)
	for k, v := range id.Headers {
		h.Set(k, v)
	}
	if id.UserAgent != "" {
		h.Set("User-Agent", id.UserAgent)
	}
	return h
}
