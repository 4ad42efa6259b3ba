package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
)

// UpsertArticle inserts an article or, when the URL already exists,
// overwrites all content fields with the new values. Locally-owned columns
// (ai_summary, created_at) are deliberately absent from the conflict update:
// ingestion never touches them. The UNIQUE constraint on url makes the
// insert-or-update atomic under concurrent batches.
func (db *DB) UpsertArticle(ctx context.Context, article *Article) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO articles (url, source, title, snippet, image_url, tags, score, published, feed_ts)
			VALUES (:url, :source, :title, :snippet, :image_url, :tags, :score, :published, :feed_ts)
			ON CONFLICT(url) DO UPDATE SET
				source     = excluded.source,
				title      = excluded.title,
				snippet    = excluded.snippet,
				image_url  = excluded.image_url,
				tags       = excluded.tags,
				score      = excluded.score,
				published  = excluded.published,
				feed_ts    = excluded.feed_ts,
				updated_at = datetime('now')
		`
		result, err := db.conn.NamedExecContext(ctx, query, article)
		if err != nil {
			if isLockError(err) {
				return err // retried by the backoff
			}
			return &criticalError{err: fmt.Errorf("upsert article: %w", err)}
		}

		if id, err := result.LastInsertId(); err == nil && id > 0 {
			article.ID = id
		}
		return nil
	})
}

// GetArticleByURL retrieves one article by its URL identity.
func (db *DB) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	var article Article
	err := db.conn.GetContext(ctx, &article, `SELECT * FROM articles WHERE url = ?`, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article not found")
		}
		return nil, fmt.Errorf("get article by url: %w", err)
	}
	return &article, nil
}

// GetArticle retrieves one article by ID.
func (db *DB) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var article Article
	err := db.conn.GetContext(ctx, &article, `SELECT * FROM articles WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article not found")
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &article, nil
}

// RecentURLs returns which of the given URLs are already persisted with a
// feed timestamp at or after the cutoff. Used by ingestion's dedup window.
func (db *DB) RecentURLs(ctx context.Context, urls []string, since time.Time) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT url FROM articles WHERE url IN (?) AND feed_ts >= ?`, urls, since)
	if err != nil {
		return nil, fmt.Errorf("build recent urls query: %w", err)
	}

	var found []string
	if err := db.conn.SelectContext(ctx, &found, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select recent urls: %w", err)
	}

	for _, u := range found {
		result[u] = true
	}
	return result, nil
}

// LatestFeedTime returns the feed timestamp of the freshest committed batch,
// zero time when nothing has been ingested yet.
func (db *DB) LatestFeedTime(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := db.conn.GetContext(ctx, &latest, `SELECT MAX(feed_ts) FROM articles`)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest feed time: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// ArticlesBySource returns one source's slice for a feed page, ranked by
// score then recency with URL as the final tiebreak for determinism.
func (db *DB) ArticlesBySource(ctx context.Context, src string, limit, offset int) ([]Article, error) {
	var articles []Article
	query := `
		SELECT * FROM articles
		WHERE source = ?
		ORDER BY score DESC, published DESC, url ASC
		LIMIT ? OFFSET ?
	`
	if err := db.conn.SelectContext(ctx, &articles, query, src, limit, offset); err != nil {
		return nil, fmt.Errorf("articles by source: %w", err)
	}
	return articles, nil
}

// Sources returns the distinct sources present in the store.
func (db *DB) Sources(ctx context.Context) ([]string, error) {
	var sources []string
	if err := db.conn.SelectContext(ctx, &sources, `SELECT DISTINCT source FROM articles ORDER BY source`); err != nil {
		return nil, fmt.Errorf("distinct sources: %w", err)
	}
	return sources, nil
}

// CountArticles returns the total number of persisted articles.
func (db *DB) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := db.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM articles`); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// ArticlesMissingSummary returns the freshest articles without an AI summary,
// candidates for the enrichment worker.
func (db *DB) ArticlesMissingSummary(ctx context.Context, limit int) ([]Article, error) {
	var articles []Article
	query := `
		SELECT * FROM articles
		WHERE ai_summary = ''
		ORDER BY feed_ts DESC, published DESC
		LIMIT ?
	`
	if err := db.conn.SelectContext(ctx, &articles, query, limit); err != nil {
		return nil, fmt.Errorf("articles missing summary: %w", err)
	}
	return articles, nil
}

// UpdateAISummary stores the enrichment summary for an article. This is the
// only writer of the locally-owned ai_summary column.
func (db *DB) UpdateAISummary(ctx context.Context, id int64, summary string) error {
	query := `UPDATE articles SET ai_summary = ?, updated_at = datetime('now') WHERE id = ?`
	result, err := db.conn.ExecContext(ctx, query, summary, id)
	if err != nil {
		return fmt.Errorf("update ai summary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("article not found")
	}
	return nil
}

// criticalError wraps an error to signal the retrier to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
