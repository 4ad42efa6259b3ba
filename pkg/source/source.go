package source

import (
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// SnippetWords caps the number of words kept from extracted body text.
const SnippetWords = 50

// Document is one fetched unit of work for an adapter: either a rendered
// HTML page or a single syndication entry. Exactly one of Page or Entry is
// set.
type Document struct {
	URL   string
	Page  *goquery.Document
	Entry *gofeed.Item
}

// Title returns the document title. Page titles are trimmed at the first "|"
// separator the way publications append their site name.
func (d *Document) Title() string {
	if d.Entry != nil {
		return strings.TrimSpace(d.Entry.Title)
	}
	if d.Page != nil {
		title := d.Page.Find("title").First().Text()
		return strings.TrimSpace(strings.Split(title, "|")[0])
	}
	return ""
}

// Tags returns category tags when the document carries them.
func (d *Document) Tags() []string {
	if d.Entry != nil {
		return d.Entry.Categories
	}
	return nil
}

// Adapter is the per-publication extraction contract. Adapters are not
// required to be safe for concurrent use; each crawl run drives a single
// adapter sequentially.
type Adapter interface {
	// Name identifies the publication.
	Name() domain.Source
	// StartURLs returns the seed URLs for a crawl run.
	StartURLs() []string
	// IsURLValid distinguishes real article URLs from index, tag and
	// category pages using source-specific structural rules.
	IsURLValid(url string) bool
	// ExtractDate parses the publication timestamp, trying known formats in
	// order. Zero time means the date could not be parsed.
	ExtractDate(doc *Document) time.Time
	// ExtractContent extracts body text with normalized whitespace. Empty
	// string means no content was found.
	ExtractContent(doc *Document) string
	// ExtractImage locates the primary image reference, empty if none.
	ExtractImage(doc *Document) string
}

// NormalizeDate clamps dates parsed into the future back to the crawl time.
// Some publications publish noisy timestamps; a future date is treated as a
// parsing artifact, not a reason to drop the article.
func NormalizeDate(t, now time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	if t.After(now) {
		lgr.Printf("[WARN] clamping future date %s to crawl time %s", t.Format(time.RFC3339), now.Format(time.RFC3339))
		return now
	}
	return t
}

// Snippet normalizes whitespace and truncates text to at most max words.
func Snippet(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) > max {
		fields = fields[:max]
	}
	return strings.Join(fields, " ")
}

var textPolicy = bluemonday.StrictPolicy()

// StripHTML removes all markup and returns unescaped plain text.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// parseWithFormats tries each layout in order and returns the first parse
// that succeeds, zero time otherwise.
func parseWithFormats(raw string, formats []string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, f := range formats {
		if t, err := time.Parse(f, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// spanishMonths maps lowercase Spanish month names to English for parsing
// with stdlib layouts.
var spanishMonths = map[string]string{
	"enero": "January", "febrero": "February", "marzo": "March",
	"abril": "April", "mayo": "May", "junio": "June",
	"julio": "July", "agosto": "August", "septiembre": "September",
	"octubre": "October", "noviembre": "November", "diciembre": "December",
}

// translateSpanishDate replaces Spanish month names so stdlib time layouts
// can parse the result.
func translateSpanishDate(raw string) string {
	lower := strings.ToLower(raw)
	for es, en := range spanishMonths {
		if strings.Contains(lower, es) {
			return strings.Replace(lower, es, en, 1)
		}
	}
	return raw
}

// pathSegments returns non-empty path segments of a URL, nil when the URL
// does not parse.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
