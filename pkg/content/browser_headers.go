package content

import (
	"math/rand"
	"net/http"
)

// acceptLanguages covers the language mixes of the crawled publications'
// readership, Spanish-first
var acceptLanguages = []string{
	"es-ES,es;q=0.9,en;q=0.8",
	"es-419,es;q=0.9,en;q=0.8",
	"es-US,es;q=0.9,en;q=0.8",
	"en-US,en;q=0.9,es;q=0.8",
}

// addBrowserHeaders adds common browser headers to the request with some
// randomization; several publications block obvious bots
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	// randomized language
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // non-cryptographic randomness is fine for header variation

	// modern browsers send Sec-Fetch-* headers on navigation
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")

	// dnt - 30% chance
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		req.Header.Set("DNT", "1")
	}

	req.Header.Set("Connection", "keep-alive")
}
