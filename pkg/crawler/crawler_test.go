package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acorn-news/cubafeed/pkg/domain"
	"github.com/acorn-news/cubafeed/pkg/source"
)

// fakeAdapter is a configurable page-crawl adapter for one test source.
type fakeAdapter struct {
	starts  []string
	invalid map[string]bool
	dates   map[string]time.Time
	content map[string]string
	images  map[string]string
}

func (f *fakeAdapter) Name() domain.Source { return domain.SourceAdnCuba }
func (f *fakeAdapter) StartURLs() []string { return f.starts }
func (f *fakeAdapter) IsURLValid(url string) bool {
	return !f.invalid[url]
}
func (f *fakeAdapter) ExtractDate(doc *source.Document) time.Time { return f.dates[doc.URL] }
func (f *fakeAdapter) ExtractContent(doc *source.Document) string { return f.content[doc.URL] }
func (f *fakeAdapter) ExtractImage(doc *source.Document) string   { return f.images[doc.URL] }

// fakeFetcher serves canned fetch results by URL.
type fakeFetcher struct {
	pages   map[string]string // url -> html
	feeds   map[string][]*gofeed.Item
	errs    map[string]error
	images  map[string][]byte
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*FetchResult, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if items, ok := f.feeds[url]; ok {
		entries := make([]*source.Document, 0, len(items))
		for _, item := range items {
			entries = append(entries, &source.Document{URL: item.Link, Entry: item})
		}
		return &FetchResult{Entries: entries}, nil
	}
	if html, ok := f.pages[url]; ok {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, err
		}
		return &FetchResult{Page: &source.Document{URL: url, Page: doc}}, nil
	}
	return nil, fmt.Errorf("no canned response for %s", url)
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, error) {
	if data, ok := f.images[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no image for %s", url)
}

type fakeBlob struct {
	puts map[string][]byte
	err  error
}

func (f *fakeBlob) Put(_ context.Context, path string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[path] = data
	return "blob://" + path, nil
}

type fallbackFunc func(ctx context.Context, url string) (string, error)

func (f fallbackFunc) Extract(ctx context.Context, url string) (string, error) { return f(ctx, url) }

const start = "https://adncuba.com/es"

func listingHTML(links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, l := range links {
		sb.WriteString(`<a href="` + l + `">link</a>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func longText(words int) string {
	return strings.TrimSpace(strings.Repeat("palabra ", words))
}

func TestCrawler_Run_PageCrawl(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	article := "https://adncuba.com/es/noticias/apagones"

	adapter := &fakeAdapter{
		starts:  []string{start},
		invalid: map[string]bool{start: true}, // the listing itself is not an article
		dates:   map[string]time.Time{article: now.Add(-2 * time.Hour)},
		content: map[string]string{article: longText(120)},
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		start:   listingHTML("/es/noticias/apagones"),
		article: "<html><head><title>Apagones | ADN</title></head><body></body></html>",
	}}

	c := New(adapter, fetcher, nil, nil, Policy{})
	c.now = func() time.Time { return now }

	batch, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)

	cand := batch[0]
	assert.Equal(t, "Apagones", cand.Title)
	assert.Equal(t, article, cand.URL)
	assert.Equal(t, domain.SourceAdnCuba, cand.Source)
	assert.Equal(t, now.Add(-2*time.Hour), cand.Published)
	assert.Equal(t, now, cand.DiscoveredAt)
	assert.NotEmpty(t, cand.Snippet)
	assert.LessOrEqual(t, len(strings.Fields(cand.Snippet)), source.SnippetWords)
}

func TestCrawler_Run_FeedCrawl(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	published := now.Add(-3 * time.Hour)

	adapter := &fakeAdapter{
		starts: []string{start},
		dates: map[string]time.Time{
			"https://adncuba.com/a": published,
			"https://adncuba.com/b": published,
		},
		content: map[string]string{
			"https://adncuba.com/a": longText(60),
			"https://adncuba.com/b": longText(60),
		},
	}
	fetcher := &fakeFetcher{feeds: map[string][]*gofeed.Item{
		start: {
			{Link: "https://adncuba.com/a", Title: "uno"},
			{Link: "https://adncuba.com/b", Title: "dos"},
		},
	}}

	c := New(adapter, fetcher, nil, nil, Policy{})
	c.now = func() time.Time { return now }

	batch, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "uno", batch[0].Title)
	assert.Equal(t, "dos", batch[1].Title)

	// entries come pre-fetched; only the feed itself hits the network
	assert.Equal(t, []string{start}, fetcher.fetched)
}

func TestCrawler_Run_DepthOne(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	level1 := "https://adncuba.com/es/noticias/primero"
	level2 := "https://adncuba.com/es/noticias/segundo"

	adapter := &fakeAdapter{
		starts:  []string{start},
		invalid: map[string]bool{start: true},
		dates:   map[string]time.Time{level1: now.Add(-time.Hour), level2: now.Add(-time.Hour)},
		content: map[string]string{level1: longText(60), level2: longText(60)},
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		start:  listingHTML(level1),
		level1: listingHTML(level2), // article page links further, must not be followed
		level2: "<html></html>",
	}}

	c := New(adapter, fetcher, nil, nil, Policy{})
	c.now = func() time.Time { return now }

	batch, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, level1, batch[0].URL)
	assert.NotContains(t, fetcher.fetched, level2)
}

func TestCrawler_Run_Policy(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("stale article rejected", func(t *testing.T) {
		stale := "https://adncuba.com/es/noticias/viejo"
		adapter := &fakeAdapter{
			starts:  []string{start},
			invalid: map[string]bool{start: true},
			dates:   map[string]time.Time{stale: now.Add(-80 * time.Hour)},
			content: map[string]string{stale: longText(60)},
		}
		fetcher := &fakeFetcher{pages: map[string]string{
			start: listingHTML(stale),
			stale: "<html></html>",
		}}

		c := New(adapter, fetcher, nil, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("future date clamped not rejected", func(t *testing.T) {
		future := "https://adncuba.com/es/noticias/futuro"
		adapter := &fakeAdapter{
			starts:  []string{start},
			invalid: map[string]bool{start: true},
			dates:   map[string]time.Time{future: now.Add(48 * time.Hour)},
			content: map[string]string{future: longText(60)},
		}
		fetcher := &fakeFetcher{pages: map[string]string{
			start:  listingHTML(future),
			future: "<html></html>",
		}}

		c := New(adapter, fetcher, nil, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, now, batch[0].Published)
	})

	t.Run("thin content rejected", func(t *testing.T) {
		thin := "https://adncuba.com/es/noticias/corto"
		adapter := &fakeAdapter{
			starts:  []string{start},
			invalid: map[string]bool{start: true},
			dates:   map[string]time.Time{thin: now.Add(-time.Hour)},
			content: map[string]string{thin: "muy corto"},
		}
		fetcher := &fakeFetcher{pages: map[string]string{
			start: listingHTML(thin),
			thin:  "<html></html>",
		}}

		c := New(adapter, fetcher, nil, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("unparseable date rejected", func(t *testing.T) {
		noDate := "https://adncuba.com/es/noticias/sinfecha"
		adapter := &fakeAdapter{
			starts:  []string{start},
			invalid: map[string]bool{start: true},
			content: map[string]string{noDate: longText(60)},
		}
		fetcher := &fakeFetcher{pages: map[string]string{
			start:  listingHTML(noDate),
			noDate: "<html></html>",
		}}

		c := New(adapter, fetcher, nil, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("visit budget respected", func(t *testing.T) {
		links := make([]string, 10)
		pages := map[string]string{}
		dates := map[string]time.Time{}
		content := map[string]string{}
		for i := range links {
			u := fmt.Sprintf("https://adncuba.com/es/noticias/n%d", i)
			links[i] = u
			pages[u] = "<html></html>"
			dates[u] = now.Add(-time.Hour)
			content[u] = longText(60)
		}
		pages[start] = listingHTML(links...)

		adapter := &fakeAdapter{starts: []string{start}, invalid: map[string]bool{start: true}, dates: dates, content: content}
		fetcher := &fakeFetcher{pages: pages}

		c := New(adapter, fetcher, nil, nil, Policy{MaxVisits: 4})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, batch, 3, "start page plus three articles within the budget")
	})
}

func TestCrawler_Run_FallbackExtraction(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	article := "https://adncuba.com/es/noticias/sin-selector"

	adapter := &fakeAdapter{
		starts:  []string{start},
		invalid: map[string]bool{start: true},
		dates:   map[string]time.Time{article: now.Add(-time.Hour)},
		// no content: the adapter selector finds nothing
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		start:   listingHTML(article),
		article: "<html></html>",
	}}
	fallback := fallbackFunc(func(_ context.Context, url string) (string, error) {
		assert.Equal(t, article, url)
		return longText(70), nil
	})

	c := New(adapter, fetcher, nil, fallback, Policy{})
	c.now = func() time.Time { return now }

	batch, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.NotEmpty(t, batch[0].Snippet)
}

func TestCrawler_Run_ImageStorage(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	article := "https://adncuba.com/es/noticias/con-imagen"
	imgURL := "https://adncuba.com/img/portada.jpg"

	adapter := &fakeAdapter{
		starts:  []string{start},
		invalid: map[string]bool{start: true},
		dates:   map[string]time.Time{article: now.Add(-time.Hour)},
		content: map[string]string{article: longText(60)},
		images:  map[string]string{article: imgURL},
	}

	t.Run("image stored", func(t *testing.T) {
		fetcher := &fakeFetcher{
			pages:  map[string]string{start: listingHTML(article), article: "<html></html>"},
			images: map[string][]byte{imgURL: []byte("jpg-bytes")},
		}
		blob := &fakeBlob{}

		c := New(adapter, fetcher, blob, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.True(t, strings.HasPrefix(batch[0].ImageURL, "blob://images/adncuba/"))
		assert.Len(t, blob.puts, 1)
	})

	t.Run("image failure is non-fatal", func(t *testing.T) {
		fetcher := &fakeFetcher{
			pages: map[string]string{start: listingHTML(article), article: "<html></html>"},
			// no canned image bytes: download fails
		}
		blob := &fakeBlob{}

		c := New(adapter, fetcher, blob, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Empty(t, batch[0].ImageURL)
	})

	t.Run("blob failure is non-fatal", func(t *testing.T) {
		fetcher := &fakeFetcher{
			pages:  map[string]string{start: listingHTML(article), article: "<html></html>"},
			images: map[string][]byte{imgURL: []byte("jpg-bytes")},
		}
		blob := &fakeBlob{err: fmt.Errorf("bucket down")}

		c := New(adapter, fetcher, blob, nil, Policy{})
		c.now = func() time.Time { return now }

		batch, err := c.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Empty(t, batch[0].ImageURL)
	})
}

func TestCrawler_Run_ErrorIsolation(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	good := "https://adncuba.com/es/noticias/bueno"
	bad := "https://adncuba.com/es/noticias/roto"

	adapter := &fakeAdapter{
		starts:  []string{start},
		invalid: map[string]bool{start: true},
		dates:   map[string]time.Time{good: now.Add(-time.Hour)},
		content: map[string]string{good: longText(60)},
	}
	fetcher := &fakeFetcher{
		pages: map[string]string{start: listingHTML(bad, good), good: "<html></html>"},
		errs:  map[string]error{bad: fmt.Errorf("connection reset")},
	}

	c := New(adapter, fetcher, nil, nil, Policy{})
	c.now = func() time.Time { return now }

	batch, err := c.Run(context.Background())
	require.NoError(t, err, "one broken article page must not abort the run")
	require.Len(t, batch, 1)
	assert.Equal(t, good, batch[0].URL)
}

func TestCrawler_Run_SourceUnreachable(t *testing.T) {
	adapter := &fakeAdapter{starts: []string{start}}
	fetcher := &fakeFetcher{errs: map[string]error{start: fmt.Errorf("dns failure")}}

	c := New(adapter, fetcher, nil, nil, Policy{})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
	assert.Contains(t, err.Error(), "dns failure")
}

func TestCrawler_Run_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := &fakeAdapter{starts: []string{start}}
	fetcher := &fakeFetcher{pages: map[string]string{start: listingHTML()}}

	c := New(adapter, fetcher, nil, nil, Policy{})
	_, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 72*time.Hour, p.FreshnessWindow)
	assert.Equal(t, 100, p.MinContentLen)
	assert.Equal(t, 50, p.MaxVisits)
}
