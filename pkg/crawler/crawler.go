package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/acorn-news/cubafeed/pkg/domain"
	"github.com/acorn-news/cubafeed/pkg/source"
)

// Fetcher retrieves crawl documents and raw bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// BlobStore receives fetched image bytes and returns an opaque URI
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// FallbackExtractor extracts body text when a source selector yields nothing
type FallbackExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Policy holds the global acceptance rules applied to every source.
type Policy struct {
	FreshnessWindow time.Duration // reject articles older than this
	MinContentLen   int           // reject shorter extractions as non-articles
	MaxVisits       int           // hard cap on documents visited per run
}

// DefaultPolicy mirrors the production crawl rules: 72h freshness, 100 char
// minimum content, 50 visited documents per run.
func DefaultPolicy() Policy {
	return Policy{
		FreshnessWindow: 72 * time.Hour,
		MinContentLen:   100,
		MaxVisits:       50,
	}
}

// Crawler drives one source adapter through a crawl run. The run is strictly
// depth-1: links are expanded only from the source's start URLs, never from
// article pages. A crawler instance is not safe for concurrent runs; each
// source gets its own.
type Crawler struct {
	adapter  source.Adapter
	fetcher  Fetcher
	blob     BlobStore
	fallback FallbackExtractor
	policy   Policy
	now      func() time.Time
}

// New creates a crawler for one source. Blob store and fallback extractor
// are optional.
func New(adapter source.Adapter, fetcher Fetcher, blob BlobStore, fallback FallbackExtractor, policy Policy) *Crawler {
	if policy.FreshnessWindow == 0 {
		policy.FreshnessWindow = 72 * time.Hour
	}
	if policy.MinContentLen == 0 {
		policy.MinContentLen = 100
	}
	if policy.MaxVisits == 0 {
		policy.MaxVisits = 50
	}
	return &Crawler{
		adapter:  adapter,
		fetcher:  fetcher,
		blob:     blob,
		fallback: fallback,
		policy:   policy,
		now:      time.Now,
	}
}

// task is one pending visit: a URL to fetch, or a pre-expanded syndication
// entry that needs no fetch.
type task struct {
	url string
	doc *source.Document
}

// Run executes one crawl and returns the run's output batch. Per-document
// failures are logged and skipped; the run fails only when none of the
// source's start URLs is reachable.
func (c *Crawler) Run(ctx context.Context) ([]domain.Candidate, error) {
	now := c.now()
	starts := c.adapter.StartURLs()

	startSet := make(map[string]bool, len(starts))
	queue := make([]task, 0, len(starts))
	for _, u := range starts {
		startSet[u] = true
		queue = append(queue, task{url: u})
	}

	visited := make(map[string]bool) // run-local seen set
	visits := 0
	startReached := false
	var lastStartErr error
	var batch []domain.Candidate

	for len(queue) > 0 && visits < c.policy.MaxVisits {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}

		t := queue[0]
		queue = queue[1:]

		var doc *source.Document
		switch {
		case t.doc != nil:
			doc = t.doc
		default:
			if visited[t.url] {
				continue
			}
			visited[t.url] = true
			visits++

			res, err := c.fetcher.Fetch(ctx, t.url)
			if err != nil {
				if startSet[t.url] {
					lastStartErr = err
				}
				lgr.Printf("[WARN] %s: fetch failed for %s: %v", c.adapter.Name(), t.url, err)
				continue
			}
			if startSet[t.url] {
				startReached = true
			}

			if res.Entries != nil {
				// a feed is a listing; its entries are the one-level expansion
				if startSet[t.url] {
					for _, entry := range res.Entries {
						queue = append(queue, task{url: entry.URL, doc: entry})
					}
				}
				continue
			}
			doc = res.Page
		}

		if doc == nil {
			continue
		}
		if t.doc != nil {
			if visited[doc.URL] {
				continue
			}
			visited[doc.URL] = true
			visits++
		}

		if cand, ok := c.visit(ctx, doc, now); ok {
			batch = append(batch, cand)
		}

		// expand links only from the start pages, keeping the crawl depth-1
		if doc.Page != nil && (startSet[doc.URL] || startSet[doc.URL+"/"]) {
			for _, link := range c.pageLinks(doc) {
				if !visited[link] {
					queue = append(queue, task{url: link})
				}
			}
		}
	}

	if !startReached {
		return nil, fmt.Errorf("source %s unreachable: %w", c.adapter.Name(), lastStartErr)
	}

	lgr.Printf("[INFO] %s: crawl run produced %d candidates from %d visits", c.adapter.Name(), len(batch), visits)
	return batch, nil
}

// visit applies the extraction contract and acceptance policy to a single
// document.
func (c *Crawler) visit(ctx context.Context, doc *source.Document, now time.Time) (domain.Candidate, bool) {
	if !c.adapter.IsURLValid(doc.URL) {
		return domain.Candidate{}, false
	}

	published := source.NormalizeDate(c.adapter.ExtractDate(doc), now)
	if published.IsZero() {
		lgr.Printf("[WARN] %s: could not extract date from %s", c.adapter.Name(), doc.URL)
		return domain.Candidate{}, false
	}
	if now.Sub(published) >= c.policy.FreshnessWindow {
		lgr.Printf("[DEBUG] %s: article too old, skipping %s", c.adapter.Name(), doc.URL)
		return domain.Candidate{}, false
	}

	content := c.adapter.ExtractContent(doc)
	if content == "" && doc.Page != nil && c.fallback != nil {
		extracted, err := c.fallback.Extract(ctx, doc.URL)
		if err != nil {
			lgr.Printf("[DEBUG] %s: fallback extraction failed for %s: %v", c.adapter.Name(), doc.URL, err)
		} else {
			content = extracted
		}
	}
	// too little text means a login wall or an index page, not an article
	if len(content) < c.policy.MinContentLen {
		return domain.Candidate{}, false
	}

	return domain.Candidate{
		Title:        doc.Title(),
		URL:          doc.URL,
		Source:       c.adapter.Name(),
		Published:    published,
		DiscoveredAt: now,
		Snippet:      source.Snippet(content, source.SnippetWords),
		ImageURL:     c.storeImage(ctx, doc),
		Tags:         doc.Tags(),
	}, true
}

// storeImage downloads the document's primary image and forwards the bytes
// to the blob store. Any failure is non-fatal: the candidate simply carries
// no image.
func (c *Crawler) storeImage(ctx context.Context, doc *source.Document) string {
	imgURL := c.adapter.ExtractImage(doc)
	if imgURL == "" || c.blob == nil {
		return ""
	}

	resolved := resolveURL(doc.URL, imgURL)
	data, err := c.fetcher.FetchBytes(ctx, resolved)
	if err != nil {
		lgr.Printf("[WARN] %s: image download failed for %s: %v", c.adapter.Name(), resolved, err)
		return ""
	}

	path := fmt.Sprintf("images/%s/%d", c.adapter.Name(), rand.Intn(1000000)+1) //nolint:gosec // image names don't need cryptographic randomness
	uri, err := c.blob.Put(ctx, path, data)
	if err != nil {
		lgr.Printf("[WARN] %s: image upload failed for %s: %v", c.adapter.Name(), resolved, err)
		return ""
	}
	return uri
}

// pageLinks collects article links from a listing page, filtered through the
// adapter's URL validation.
func (c *Crawler) pageLinks(doc *source.Document) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Page.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveURL(doc.URL, href)
		if seen[resolved] || !c.adapter.IsURLValid(resolved) {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

// resolveURL resolves a possibly relative reference against the page URL.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
