package source

import (
	"strings"
	"time"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// PeriodicoCubano crawls the Periódico Cubano front page. Article pages
// render a Spanish-language date line; body extraction relies on the generic
// fallback extractor since the site's markup has no stable content selector.
type PeriodicoCubano struct{}

// NewPeriodicoCubano returns the Periódico Cubano page adapter.
func NewPeriodicoCubano() *PeriodicoCubano { return &PeriodicoCubano{} }

// Name identifies the publication.
func (p *PeriodicoCubano) Name() domain.Source { return domain.SourcePeriodicoCubano }

// StartURLs returns the listing page the crawl starts from.
func (p *PeriodicoCubano) StartURLs() []string {
	return []string{"https://www.periodicocubano.com/"}
}

// excluded sections that mirror syndicated content or lottery pages
var periodicoCubanoExcluded = []string{
	"https://www.periodicocubano.com/noticias-de-los-estados-unidos/",
	"https://www.periodicocubano.com/noticias/parole-humanitario/",
	"https://www.periodicocubano.com/ley-de-nietos-y-bisnietos/",
	"https://www.periodicocubano.com/farandula-famosos-artistas/",
	"https://www.periodicocubano.com/numeros-ganadores-charada-cubana/",
}

// IsURLValid accepts single-segment article permalinks outside the excluded
// sections.
func (p *PeriodicoCubano) IsURLValid(url string) bool {
	if !strings.Contains(url, "periodicocubano.com") {
		return false
	}
	for _, prefix := range periodicoCubanoExcluded {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return len(pathSegments(url)) == 1
}

// ExtractDate parses the Spanish date line, e.g.
// "21 de agosto 2026 10:35 AM".
func (p *PeriodicoCubano) ExtractDate(doc *Document) time.Time {
	if doc.Page == nil {
		return time.Time{}
	}
	raw := strings.TrimSpace(doc.Page.Find("span.post-date.updated").First().Text())
	if raw == "" {
		return time.Time{}
	}
	translated := translateSpanishDate(raw)
	return parseWithFormats(translated, []string{
		"2 de January 2006 3:04 pm",
		"2 de January 2006",
	})
}

// ExtractContent returns nothing; the crawl falls back to the generic
// content extractor for this publication.
func (p *PeriodicoCubano) ExtractContent(*Document) string { return "" }

// ExtractImage locates the first linked image in the article body.
func (p *PeriodicoCubano) ExtractImage(doc *Document) string {
	if doc.Page == nil {
		return ""
	}
	if src, ok := doc.Page.Find("a > img").First().Attr("src"); ok {
		return src
	}
	return ""
}
