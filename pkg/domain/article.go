package domain

import "time"

// Source identifies one external publication with its own extraction rules.
type Source string

// known publications
const (
	SourceAdnCuba           Source = "adncuba"
	SourceCatorceYMedio     Source = "catorceymedio"
	SourceDiarioDeCuba      Source = "diariodecuba"
	SourceCiberCuba         Source = "cibercuba"
	SourceElToque           Source = "eltoque"
	SourceCubanet           Source = "cubanet"
	SourcePeriodicoCubano   Source = "periodicocubano"
	SourceDirectorioCubano  Source = "directoriocubano"
	SourceMartiNoticias     Source = "martinoticias"
	SourceCubanosPorElMundo Source = "cubanosporelmundo"
)

// KnownSources lists every publication the system can ingest, in the fixed
// order used for feed assembly.
func KnownSources() []Source {
	return []Source{
		SourceAdnCuba,
		SourceCatorceYMedio,
		SourceDiarioDeCuba,
		SourceCiberCuba,
		SourceElToque,
		SourceCubanet,
		SourcePeriodicoCubano,
		SourceDirectorioCubano,
		SourceMartiNoticias,
		SourceCubanosPorElMundo,
	}
}

// ValidSource reports whether name matches a known publication.
func ValidSource(name string) bool {
	for _, s := range KnownSources() {
		if string(s) == name {
			return true
		}
	}
	return false
}

// Candidate is an unvalidated article extracted from one crawl visit.
// It is ephemeral, produced by a crawler run and consumed by the ingestion
// engine.
type Candidate struct {
	Title        string
	URL          string
	Source       Source
	Published    time.Time // best-effort parsed publication time, zero if unknown
	DiscoveredAt time.Time // when the crawl run observed the document
	Snippet      string    // body text truncated to a bounded word count
	ImageURL     string    // optional opaque URI, empty if none
	Tags         []string
}

// Valid reports whether the candidate has the required fields to be
// persisted: non-empty title, non-empty URL and a parseable published time.
func (c Candidate) Valid() bool {
	return c.Title != "" && c.URL != "" && !c.Published.IsZero()
}

// Article is the persisted form of a candidate. URL is the permanent
// identity; all content fields hold the latest-seen version. FeedTime is the
// ingestion batch timestamp shared by every article committed in one run.
type Article struct {
	ID        int64
	Title     string
	URL       string
	Source    Source
	Published time.Time
	FeedTime  time.Time
	Snippet   string
	ImageURL  string
	Tags      string // raw comma-joined tag string
	Score     int    // recomputed on every write
	AISummary string // locally-owned enrichment, never part of a candidate
}

// InteractionKind is a client interaction type recorded against an article.
type InteractionKind string

// interaction kinds
const (
	InteractionView  InteractionKind = "view"
	InteractionLike  InteractionKind = "like"
	InteractionShare InteractionKind = "share"
)

// ValidInteraction reports whether kind is one of the recordable kinds.
func ValidInteraction(kind string) bool {
	switch InteractionKind(kind) {
	case InteractionView, InteractionLike, InteractionShare:
		return true
	}
	return false
}

// InteractionCounts holds aggregated interaction counters for one article.
// Counts only increase and are written by the client-interaction endpoint,
// never by ingestion.
type InteractionCounts struct {
	ArticleID int64 `json:"feedid"`
	View      int   `json:"view"`
	Like      int   `json:"like"`
	Share     int   `json:"share"`
}

// FeedArticle is an article annotated with its interaction aggregates, as
// returned by the feed assembly service.
type FeedArticle struct {
	Article
	Interactions InteractionCounts
}

// FeedPage is an ordered, URL-deduplicated slice of the persisted store plus
// the feed timestamp of the freshest committed batch.
type FeedPage struct {
	Timestamp time.Time
	Articles  []FeedArticle
}
