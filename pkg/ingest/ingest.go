package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/acorn-news/cubafeed/pkg/db"
	"github.com/acorn-news/cubafeed/pkg/domain"
)

// DedupWindow is the lookback used to suppress redundant re-writes of an
// already-fresh URL. The same URL can be re-ingested after the window
// lapses.
const DedupWindow = 48 * time.Hour

// Store is the persistence surface the engine needs
type Store interface {
	RecentURLs(ctx context.Context, urls []string, since time.Time) (map[string]bool, error)
	UpsertArticle(ctx context.Context, article *db.Article) error
}

// Scorer computes the ranking score for a candidate. The heuristic is
// pluggable; the engine only guarantees the score is recomputed on every
// write.
type Scorer interface {
	Score(c domain.Candidate) int
}

// SourceResult reports the outcome of committing one source's batch.
type SourceResult struct {
	Source   domain.Source
	Received int
	Invalid  int // dropped by validation
	Deduped  int // suppressed by the dedup window
	Written  int
	Err      error
}

// Engine validates, deduplicates, scores and persists candidate batches.
// Multiple sources' batches are committed concurrently; the store's
// uniqueness constraint on URL keeps concurrent upserts safe.
type Engine struct {
	store      Store
	scorer     Scorer
	window     time.Duration
	maxWorkers int
	now        func() time.Time
}

// New creates an ingestion engine with the given scoring strategy.
func New(store Store, scorer Scorer, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	return &Engine{
		store:      store,
		scorer:     scorer,
		window:     DedupWindow,
		maxWorkers: maxWorkers,
		now:        time.Now,
	}
}

// Ingest commits all sources' batches under a single feed timestamp.
// Per-source failures are reported in the results, never propagated across
// sources.
func (e *Engine) Ingest(ctx context.Context, batches map[domain.Source][]domain.Candidate) []SourceResult {
	feedTime := e.now()
	results := make([]SourceResult, 0, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	resultCh := make(chan SourceResult, len(batches))

	for src, batch := range batches {
		g.Go(func() error {
			resultCh <- e.ingestBatch(ctx, src, batch, feedTime)
			return nil
		})
	}

	g.Wait() //nolint:errcheck // workers never return errors, outcomes travel in results
	close(resultCh)

	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

// IngestBatch commits one source's batch with its own feed timestamp taken
// at call time.
func (e *Engine) IngestBatch(ctx context.Context, src domain.Source, batch []domain.Candidate) SourceResult {
	return e.ingestBatch(ctx, src, batch, e.now())
}

func (e *Engine) ingestBatch(ctx context.Context, src domain.Source, batch []domain.Candidate, feedTime time.Time) SourceResult {
	result := SourceResult{Source: src, Received: len(batch)}

	// validation: no title, no URL or no parseable date never reaches the store
	valid := make([]domain.Candidate, 0, len(batch))
	for _, c := range batch {
		if !c.Valid() {
			result.Invalid++
			continue
		}
		valid = append(valid, c)
	}

	// last-write-wins within a batch: keep only the final candidate per URL
	valid = lastPerURL(valid)
	if len(valid) == 0 {
		return result
	}

	urls := make([]string, len(valid))
	for i, c := range valid {
		urls[i] = c.URL
	}

	recent, err := e.store.RecentURLs(ctx, urls, feedTime.Add(-e.window))
	if err != nil {
		result.Err = fmt.Errorf("dedup window lookup for %s: %w", src, err)
		return result
	}

	for _, c := range valid {
		if recent[c.URL] {
			result.Deduped++
			continue
		}

		article := db.ArticleFromCandidate(c, e.scorer.Score(c), feedTime)
		if err := e.store.UpsertArticle(ctx, &article); err != nil {
			// per-item upserts are independent, keep going
			lgr.Printf("[ERROR] %s: upsert failed for %s: %v", src, c.URL, err)
			result.Err = fmt.Errorf("upsert for %s: %w", src, err)
			continue
		}
		result.Written++
	}

	lgr.Printf("[INFO] %s: ingested %d of %d candidates (%d invalid, %d within dedup window)",
		src, result.Written, result.Received, result.Invalid, result.Deduped)
	return result
}

// lastPerURL keeps the last occurrence of each URL, preserving order of
// last appearance.
func lastPerURL(candidates []domain.Candidate) []domain.Candidate {
	byURL := make(map[string]int, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if idx, ok := byURL[c.URL]; ok {
			out[idx] = c
			continue
		}
		byURL[c.URL] = len(out)
		out = append(out, c)
	}
	return out
}
