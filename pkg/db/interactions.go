package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// RecordInteraction increments the counter for one interaction kind on an
// article. Counters only ever increase.
func (db *DB) RecordInteraction(ctx context.Context, articleID int64, kind domain.InteractionKind) error {
	query := `
		INSERT INTO interactions (article_id, kind, count)
		VALUES (?, ?, 1)
		ON CONFLICT(article_id, kind) DO UPDATE SET count = count + 1
	`
	if _, err := db.conn.ExecContext(ctx, query, articleID, string(kind)); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// InteractionCounts returns aggregated counters grouped per article for
// exactly the given article IDs. Articles with no interactions are absent
// from the result.
func (db *DB) InteractionCounts(ctx context.Context, articleIDs []int64) (map[int64]domain.InteractionCounts, error) {
	result := make(map[int64]domain.InteractionCounts)
	if len(articleIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT article_id, kind, count FROM interactions WHERE article_id IN (?)`, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("build interaction counts query: %w", err)
	}

	var rows []Interaction
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select interaction counts: %w", err)
	}

	for _, row := range rows {
		counts := result[row.ArticleID]
		counts.ArticleID = row.ArticleID
		switch domain.InteractionKind(row.Kind) {
		case domain.InteractionView:
			counts.View = row.Count
		case domain.InteractionLike:
			counts.Like = row.Count
		case domain.InteractionShare:
			counts.Share = row.Count
		}
		result[row.ArticleID] = counts
	}
	return result, nil
}
