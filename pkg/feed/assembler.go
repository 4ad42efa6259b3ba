package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/acorn-news/cubafeed/pkg/db"
	"github.com/acorn-news/cubafeed/pkg/domain"
)

// ErrNoFeed signals that no ingestion batch has been committed yet. Callers
// can distinguish "not yet ingested" from an ingested but empty page.
var ErrNoFeed = errors.New("no feed available")

// Store is the read-only persistence surface feed assembly needs
type Store interface {
	LatestFeedTime(ctx context.Context) (time.Time, error)
	Sources(ctx context.Context) ([]string, error)
	ArticlesBySource(ctx context.Context, src string, limit, offset int) ([]db.Article, error)
	InteractionCounts(ctx context.Context, articleIDs []int64) (map[int64]domain.InteractionCounts, error)
}

// Assembler builds source-balanced, interaction-annotated feed pages from
// the persisted store. It never triggers ingestion and is safe for unlimited
// concurrent use.
type Assembler struct {
	store Store
}

// NewAssembler creates a feed assembly service over the store.
func NewAssembler(store Store) *Assembler {
	return &Assembler{store: store}
}

// GetFeed returns one feed page. Each known source contributes up to
// pageSize articles ranked by score then recency; page N skips the first
// (N-1)*pageSize per source. The result is deduplicated by URL and carries
// the feed timestamp of the freshest committed batch. The same request
// against an unchanged store always returns the same page.
func (a *Assembler) GetFeed(ctx context.Context, page, pageSize int) (*domain.FeedPage, error) {
	if page <= 0 || pageSize <= 0 {
		return nil, fmt.Errorf("page and pageSize must be positive, got page=%d pageSize=%d", page, pageSize)
	}

	latest, err := a.store.LatestFeedTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest feed time: %w", err)
	}
	if latest.IsZero() {
		return nil, ErrNoFeed
	}

	sources, err := a.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	// round-robin by source: a bounded slice per source keeps one prolific
	// publication from crowding out the others
	offset := (page - 1) * pageSize
	seen := make(map[string]bool)
	var merged []domain.Article
	for _, src := range sources {
		articles, err := a.store.ArticlesBySource(ctx, src, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("articles for %s: %w", src, err)
		}
		for _, row := range articles {
			if seen[row.URL] {
				continue
			}
			seen[row.URL] = true
			merged = append(merged, row.ToDomain())
		}
	}

	// deterministic cross-source ordering
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if !merged[i].Published.Equal(merged[j].Published) {
			return merged[i].Published.After(merged[j].Published)
		}
		return merged[i].URL < merged[j].URL
	})

	ids := make([]int64, len(merged))
	for i, article := range merged {
		ids[i] = article.ID
	}

	counts, err := a.store.InteractionCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("interaction counts: %w", err)
	}

	annotated := make([]domain.FeedArticle, len(merged))
	for i, article := range merged {
		interactions := counts[article.ID]
		interactions.ArticleID = article.ID
		annotated[i] = domain.FeedArticle{Article: article, Interactions: interactions}
	}

	return &domain.FeedPage{Timestamp: latest, Articles: annotated}, nil
}
