package source

import (
	"strings"
	"time"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// adnCubaDateFormats are the known date renderings on ADN Cuba article
// pages, tried in order.
var adnCubaDateFormats = []string{
	"January 2, 2006 3:04pm",
	"Mon, 01/02/2006 - 15:04",
}

// AdnCuba crawls the ADN Cuba home page. Articles live two or more path
// segments deep under /es/; tag and taxonomy routes are index pages.
type AdnCuba struct{}

// NewAdnCuba returns the ADN Cuba page adapter.
func NewAdnCuba() *AdnCuba { return &AdnCuba{} }

// Name identifies the publication.
func (a *AdnCuba) Name() domain.Source { return domain.SourceAdnCuba }

// StartURLs returns the listing page the crawl starts from.
func (a *AdnCuba) StartURLs() []string { return []string{"https://adncuba.com/es"} }

// IsURLValid rejects tag/taxonomy listings and URLs that are too shallow to
// be articles.
func (a *AdnCuba) IsURLValid(url string) bool {
	if !strings.Contains(url, "adncuba.com") {
		return false
	}
	for _, prefix := range []string{
		"https://adncuba.com/tags/",
		"https://adncuba.com/es/taxonomy/",
		"https://adncuba.com/es/node/",
	} {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return len(pathSegments(url)) >= 3
}

// ExtractDate reads the updated paragraph, which renders as
// "Actualizado: <date>".
func (a *AdnCuba) ExtractDate(doc *Document) time.Time {
	if doc.Page == nil {
		return time.Time{}
	}
	raw := strings.TrimSpace(doc.Page.Find("p.updated__paragraph").First().Text())
	if raw == "" {
		return time.Time{}
	}
	if _, after, found := strings.Cut(raw, ": "); found {
		raw = after
	}
	return parseWithFormats(raw, adnCubaDateFormats)
}

// ExtractContent returns the article body text.
func (a *AdnCuba) ExtractContent(doc *Document) string {
	if doc.Page == nil {
		return ""
	}
	return strings.TrimSpace(doc.Page.Find(".text-long").Text())
}

// ExtractImage locates the main article image inside the <picture> element.
func (a *AdnCuba) ExtractImage(doc *Document) string {
	if doc.Page == nil {
		return ""
	}
	img := doc.Page.Find("picture img").First()
	if src, ok := img.Attr("src"); ok && src != "" {
		return src
	}
	if srcset, ok := img.Attr("srcset"); ok && srcset != "" {
		return strings.Fields(srcset)[0]
	}
	return ""
}
