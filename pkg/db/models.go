package db

import (
	"strings"
	"time"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// Article is the persisted article row
type Article struct {
	ID        int64     `db:"id"`
	URL       string    `db:"url"`
	Source    string    `db:"source"`
	Title     string    `db:"title"`
	Snippet   string    `db:"snippet"`
	ImageURL  string    `db:"image_url"`
	Tags      string    `db:"tags"`
	Score     int       `db:"score"`
	Published time.Time `db:"published"`
	FeedTime  time.Time `db:"feed_ts"`
	AISummary string    `db:"ai_summary"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Interaction is one aggregated interaction counter row
type Interaction struct {
	ID        int64  `db:"id"`
	ArticleID int64  `db:"article_id"`
	Kind      string `db:"kind"`
	Count     int    `db:"count"`
}

// ToDomain converts the row to the domain representation.
func (a *Article) ToDomain() domain.Article {
	return domain.Article{
		ID:        a.ID,
		Title:     a.Title,
		URL:       a.URL,
		Source:    domain.Source(a.Source),
		Published: a.Published,
		FeedTime:  a.FeedTime,
		Snippet:   a.Snippet,
		ImageURL:  a.ImageURL,
		Tags:      a.Tags,
		Score:     a.Score,
		AISummary: a.AISummary,
	}
}

// ArticleFromCandidate builds a row from a validated candidate, its computed
// score and the batch feed timestamp.
func ArticleFromCandidate(c domain.Candidate, score int, feedTime time.Time) Article {
	return Article{
		URL:       c.URL,
		Source:    string(c.Source),
		Title:     c.Title,
		Snippet:   c.Snippet,
		ImageURL:  c.ImageURL,
		Tags:      strings.Join(c.Tags, ","),
		Score:     score,
		Published: c.Published,
		FeedTime:  feedTime,
	}
}
