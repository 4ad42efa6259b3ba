package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/acorn-news/cubafeed/pkg/source"
)

// FetchResult is one fetched document: either a rendered HTML page or a
// syndication feed expanded into entry documents.
type FetchResult struct {
	Page    *source.Document
	Entries []*source.Document
}

// HTTPFetcher retrieves crawl documents over HTTP and sniffs whether the
// response is a syndication feed or an HTML page.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a bounded per-request timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves a URL and returns either an HTML page document or the
// expanded entries of a syndication feed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	text := string(body)
	if isFeedContent(text) {
		feed, err := gofeed.NewParser().ParseString(text)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", url, err)
		}
		entries := make([]*source.Document, 0, len(feed.Items))
		for _, item := range feed.Items {
			if item.Link == "" {
				continue
			}
			entries = append(entries, &source.Document{URL: item.Link, Entry: item})
		}
		return &FetchResult{Entries: entries}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", url, err)
	}
	return &FetchResult{Page: &source.Document{URL: url, Page: doc}}, nil
}

// FetchBytes retrieves raw bytes, used for image downloads.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return body, nil
}

// isFeedContent reports whether a response body looks like RSS/Atom XML
// rather than an HTML page.
func isFeedContent(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<?xml") ||
		strings.HasPrefix(trimmed, "<rss") ||
		strings.HasPrefix(trimmed, "<feed")
}
