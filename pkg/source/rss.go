package source

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// imageFunc locates the primary image for a syndication entry. Each RSS
// publication embeds images differently, so the lookup is source-specific.
type imageFunc func(item *gofeed.Item) string

// rssAdapter implements the extraction contract over syndication entries.
// Per-publication constructors configure the feed URL and image lookup.
type rssAdapter struct {
	name     domain.Source
	feedURL  string
	getImage imageFunc
}

func (a *rssAdapter) Name() domain.Source { return a.name }

func (a *rssAdapter) StartURLs() []string { return []string{a.feedURL} }

// IsURLValid accepts any non-empty entry link: feed entries point at
// articles by construction, index pages never appear in a feed.
func (a *rssAdapter) IsURLValid(url string) bool { return url != "" }

func (a *rssAdapter) ExtractDate(doc *Document) time.Time {
	if doc.Entry == nil {
		return time.Time{}
	}
	if doc.Entry.PublishedParsed != nil {
		return *doc.Entry.PublishedParsed
	}
	if doc.Entry.UpdatedParsed != nil {
		return *doc.Entry.UpdatedParsed
	}
	return time.Time{}
}

func (a *rssAdapter) ExtractContent(doc *Document) string {
	if doc.Entry == nil {
		return ""
	}
	if text := StripHTML(doc.Entry.Description); text != "" {
		return text
	}
	return StripHTML(doc.Entry.Content)
}

func (a *rssAdapter) ExtractImage(doc *Document) string {
	if doc.Entry == nil {
		return ""
	}
	if a.getImage != nil {
		return a.getImage(doc.Entry)
	}
	return defaultEntryImage(doc.Entry)
}

// defaultEntryImage tries known entry image fields in fixed priority order:
// media:content, media:thumbnail, enclosure, first inline <img> in the
// description HTML.
func defaultEntryImage(item *gofeed.Item) string {
	if u := mediaExtensionURL(item, "content"); u != "" {
		return u
	}
	if u := mediaExtensionURL(item, "thumbnail"); u != "" {
		return u
	}
	if u := enclosureImage(item); u != "" {
		return u
	}
	return inlineImage(item.Description, item.Content)
}

// mediaExtensionURL pulls the url attribute from a media RSS extension
// element such as media:content or media:thumbnail.
func mediaExtensionURL(item *gofeed.Item, element string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range media[element] {
		if u := ext.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

// enclosureImage returns the first enclosure that looks like an image.
func enclosureImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// inlineImage scans HTML fragments for the first <img> src.
func inlineImage(htmlFragments ...string) string {
	for _, fragment := range htmlFragments {
		if fragment == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}

// NewCatorceYMedio returns the 14yMedio adapter. The feed carries images in
// media:content/media:thumbnail elements.
func NewCatorceYMedio() Adapter {
	return &rssAdapter{
		name:    domain.SourceCatorceYMedio,
		feedURL: "https://www.14ymedio.com/rss/",
		getImage: func(item *gofeed.Item) string {
			if u := mediaExtensionURL(item, "content"); u != "" {
				return u
			}
			return mediaExtensionURL(item, "thumbnail")
		},
	}
}

// NewCiberCuba returns the CiberCuba adapter, media RSS images like 14yMedio.
func NewCiberCuba() Adapter {
	return &rssAdapter{
		name:    domain.SourceCiberCuba,
		feedURL: "https://www.cibercuba.com/noticias/cibercuba/rss.xml",
		getImage: func(item *gofeed.Item) string {
			if u := mediaExtensionURL(item, "content"); u != "" {
				return u
			}
			return mediaExtensionURL(item, "thumbnail")
		},
	}
}

// NewDirectorioCubano returns the Directorio Cubano adapter. Images are
// embedded as <img> tags inside the description HTML.
func NewDirectorioCubano() Adapter {
	return &rssAdapter{
		name:    domain.SourceDirectorioCubano,
		feedURL: "https://www.directoriocubano.info/feed/",
		getImage: func(item *gofeed.Item) string {
			return inlineImage(item.Description, item.Content)
		},
	}
}

// NewCubanet returns the Cubanet adapter. The feed has no media fields, the
// description HTML is the only image carrier.
func NewCubanet() Adapter {
	return &rssAdapter{
		name:    domain.SourceCubanet,
		feedURL: "https://www.cubanet.org/feed/",
		getImage: func(item *gofeed.Item) string {
			return inlineImage(item.Description, item.Content)
		},
	}
}

// NewMartiNoticias returns the Martí Noticias adapter, enclosure-based
// images.
func NewMartiNoticias() Adapter {
	return &rssAdapter{
		name:     domain.SourceMartiNoticias,
		feedURL:  "https://www.martinoticias.com/api/z_uqvl-vomx-tpevipt",
		getImage: enclosureImage,
	}
}

// NewCubanosPorElMundo returns the Cubanos por el Mundo adapter. The feed
// carries no usable image fields.
func NewCubanosPorElMundo() Adapter {
	return &rssAdapter{
		name:     domain.SourceCubanosPorElMundo,
		feedURL:  "http://cubanosporelmundo.com/feed/",
		getImage: func(*gofeed.Item) string { return "" },
	}
}
