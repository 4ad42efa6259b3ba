// Package scheduler drives the periodic crawl-and-ingest cycle and serves
// manually triggered refreshes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/acorn-news/cubafeed/pkg/db"
	"github.com/acorn-news/cubafeed/pkg/domain"
	"github.com/acorn-news/cubafeed/pkg/ingest"
)

// Crawler runs one source's crawl and returns its candidate batch.
type Crawler interface {
	Run(ctx context.Context) ([]domain.Candidate, error)
}

// Ingester commits candidate batches to the store.
type Ingester interface {
	Ingest(ctx context.Context, batches map[domain.Source][]domain.Candidate) []ingest.SourceResult
}

// Summarizer produces a short AI summary of an article.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (string, error)
}

// SummaryStore is the persistence surface of the summary enrichment worker.
type SummaryStore interface {
	ArticlesMissingSummary(ctx context.Context, limit int) ([]db.Article, error)
	UpdateAISummary(ctx context.Context, id int64, summary string) error
}

// Config holds scheduler configuration
type Config struct {
	UpdateInterval time.Duration
	MaxWorkers     int
}

// Scheduler owns one crawler per source and funnels their output through the
// ingestion engine. Refresh runs never overlap; a trigger during a running
// refresh is dropped.
type Scheduler struct {
	crawlers   map[domain.Source]Crawler
	ingester   Ingester
	summarizer Summarizer // optional
	store      SummaryStore
	interval   time.Duration
	maxWorkers int

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	refreshMu sync.Mutex
}

// NewScheduler creates a scheduler. Summarizer is optional; when nil the
// enrichment step is skipped.
func NewScheduler(crawlers map[domain.Source]Crawler, ingester Ingester, summarizer Summarizer, store SummaryStore, cfg Config) *Scheduler {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = time.Hour
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}

	return &Scheduler{
		crawlers:   crawlers,
		ingester:   ingester,
		summarizer: summarizer,
		store:      store,
		interval:   cfg.UpdateInterval,
		maxWorkers: cfg.MaxWorkers,
	}
}

// Start begins the periodic refresh loop
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.refreshWorker(ctx)

	lgr.Printf("[INFO] scheduler started with interval %v for %d sources", s.interval, len(s.crawlers))
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// refreshWorker periodically refreshes all sources
func (s *Scheduler) refreshWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// run immediately on start
	s.RefreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll crawls every configured source and commits the results.
func (s *Scheduler) RefreshAll(ctx context.Context) []ingest.SourceResult {
	return s.Refresh(ctx, nil, false)
}

// Refresh crawls the given sources (all configured ones when the list is
// empty) and commits the results under one feed timestamp. With dryRun the
// crawl runs but nothing is written. Returns nil when a refresh is already
// in flight.
func (s *Scheduler) Refresh(ctx context.Context, sources []domain.Source, dryRun bool) []ingest.SourceResult {
	if !s.refreshMu.TryLock() {
		lgr.Printf("[WARN] refresh already in progress, skipping")
		return nil
	}
	defer s.refreshMu.Unlock()

	selected := s.selectCrawlers(sources)
	if len(selected) == 0 {
		lgr.Printf("[WARN] no matching sources to refresh")
		return nil
	}

	lgr.Printf("[INFO] refreshing %d sources (dry run: %v)", len(selected), dryRun)
	started := time.Now()

	batches := s.crawlAll(ctx, selected)

	if dryRun {
		results := make([]ingest.SourceResult, 0, len(batches))
		for src, batch := range batches {
			results = append(results, ingest.SourceResult{Source: src, Received: len(batch)})
		}
		lgr.Printf("[INFO] dry run completed in %v, nothing written", time.Since(started))
		return results
	}

	results := s.ingester.Ingest(ctx, batches)

	if s.summarizer != nil {
		s.summarizeRecent(ctx)
	}

	lgr.Printf("[INFO] refresh completed in %v", time.Since(started))
	return results
}

// selectCrawlers filters the configured crawlers by the requested sources.
func (s *Scheduler) selectCrawlers(sources []domain.Source) map[domain.Source]Crawler {
	if len(sources) == 0 {
		return s.crawlers
	}
	selected := make(map[domain.Source]Crawler)
	for _, src := range sources {
		if c, ok := s.crawlers[src]; ok {
			selected[src] = c
		} else {
			lgr.Printf("[WARN] source %s not configured, skipping", src)
		}
	}
	return selected
}

// crawlAll runs the selected crawlers concurrently. A failed source crawl
// contributes nothing; the other sources are unaffected.
func (s *Scheduler) crawlAll(ctx context.Context, crawlers map[domain.Source]Crawler) map[domain.Source][]domain.Candidate {
	var mu sync.Mutex
	batches := make(map[domain.Source][]domain.Candidate, len(crawlers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for src, c := range crawlers {
		g.Go(func() error {
			batch, err := c.Run(ctx)
			if err != nil {
				lgr.Printf("[ERROR] crawl failed for %s: %v", src, err)
				return nil
			}
			mu.Lock()
			batches[src] = batch
			mu.Unlock()
			return nil
		})
	}

	g.Wait() //nolint:errcheck // per-source failures are logged, never propagated
	return batches
}

// summaryBatchSize bounds how many articles get summaries per refresh.
const summaryBatchSize = 20

// summarizeRecent fills in AI summaries for freshly ingested articles.
func (s *Scheduler) summarizeRecent(ctx context.Context) {
	articles, err := s.store.ArticlesMissingSummary(ctx, summaryBatchSize)
	if err != nil {
		lgr.Printf("[ERROR] failed to get articles for summarization: %v", err)
		return
	}
	if len(articles) == 0 {
		return
	}

	lgr.Printf("[INFO] summarizing %d articles", len(articles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, article := range articles {
		g.Go(func() error {
			summary, err := s.summarizer.Summarize(ctx, article.Title, article.Snippet)
			if err != nil {
				lgr.Printf("[WARN] summarize failed for %s: %v", article.URL, err)
				return nil
			}
			if err := s.store.UpdateAISummary(ctx, article.ID, summary); err != nil {
				lgr.Printf("[WARN] failed to store summary for %s: %v", article.URL, err)
			}
			return nil
		})
	}

	g.Wait() //nolint:errcheck // per-article failures are logged, never propagated
}

// RefreshNow triggers an asynchronous refresh and returns immediately. The
// refresh inherits the scheduler's lifetime, not the caller's request context.
func (s *Scheduler) RefreshNow(sources []domain.Source, dryRun bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// bounded independently of the trigger request
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.Refresh(ctx, sources, dryRun)
	}()
}

// Describe returns a human-readable summary of the refresh outcome, used for
// logging triggered refreshes.
func Describe(results []ingest.SourceResult) string {
	total, written := 0, 0
	for _, r := range results {
		total += r.Received
		written += r.Written
	}
	return fmt.Sprintf("%d candidates, %d written across %d sources", total, written, len(results))
}
