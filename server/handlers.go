package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/acorn-news/cubafeed/pkg/domain"
	"github.com/acorn-news/cubafeed/pkg/feed"
)

// feedResponse is the wire shape of every feed API answer.
type feedResponse struct {
	Banter  string       `json:"banter"`
	Content *feedContent `json:"content,omitempty"`
}

type feedContent struct {
	Timestamp int64      `json:"timestamp"`
	Feed      []newsItem `json:"feed"`
}

// newsItem is one article as clients consume it. Timestamps travel as epoch
// milliseconds with an RFC3339 copy of the published time.
type newsItem struct {
	ID           int64                    `json:"id"`
	Title        string                   `json:"title"`
	Source       string                   `json:"source"`
	URL          string                   `json:"url"`
	Updated      int64                    `json:"updated"`
	ISODate      string                   `json:"isoDate"`
	FeedTime     int64                    `json:"feedts"`
	Content      string                   `json:"content"`
	Tags         []string                 `json:"tags"`
	Score        int                      `json:"score"`
	Interactions domain.InteractionCounts `json:"interactions"`
	AISummary    string                   `json:"aiSummary"`
	Image        string                   `json:"image"`
}

func toNewsItem(a domain.FeedArticle) newsItem {
	tags := []string{}
	if a.Tags != "" {
		tags = strings.Split(a.Tags, ",")
	}
	return newsItem{
		ID:           a.ID,
		Title:        a.Title,
		Source:       string(a.Source),
		URL:          a.URL,
		Updated:      a.Published.UnixMilli(),
		ISODate:      a.Published.UTC().Format(time.RFC3339),
		FeedTime:     a.FeedTime.UnixMilli(),
		Content:      a.Snippet,
		Tags:         tags,
		Score:        a.Score,
		Interactions: a.Interactions,
		AISummary:    a.AISummary,
		Image:        a.ImageURL,
	}
}

// feedHandler serves feed pages and, with the refresh parameter, triggers an
// asynchronous crawl-and-ingest run.
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		s.refreshHandler(w, r)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid page parameter"})
		return
	}
	pageSize, err := queryInt(r, "pageSize", s.config.PageSize)
	if err != nil {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid pageSize parameter"})
		return
	}

	feedPage, err := s.feed.GetFeed(r.Context(), page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrNoFeed):
			renderJSON(w, r, http.StatusOK, feedResponse{Banter: "No feeds available"})
		case page <= 0 || pageSize <= 0:
			renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid pagination parameters"})
		default:
			lgr.Printf("[ERROR] feed assembly failed: %v", err)
			renderJSON(w, r, http.StatusInternalServerError, feedResponse{Banter: "Feed assembly failed"})
		}
		return
	}

	items := make([]newsItem, len(feedPage.Articles))
	for i, article := range feedPage.Articles {
		items[i] = toNewsItem(article)
	}

	renderJSON(w, r, http.StatusOK, feedResponse{
		Banter: "Cubafeed!",
		Content: &feedContent{
			Timestamp: feedPage.Timestamp.UnixMilli(),
			Feed:      items,
		},
	})
}

// refreshHandler validates the shared secret and kicks off a refresh. The
// work happens asynchronously; the response only acknowledges the trigger.
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if s.config.AdminToken == "" || r.Header.Get("ADMIN_TOKEN") != s.config.AdminToken {
		renderJSON(w, r, http.StatusUnauthorized, feedResponse{Banter: "You are not authorized to refresh the feed"})
		return
	}

	// dry run only proves the token works
	if r.URL.Query().Get("dryrun") != "" {
		renderJSON(w, r, http.StatusOK, feedResponse{Banter: "Dry run. Not refreshing the feed"})
		return
	}

	var sources []domain.Source
	if src := r.URL.Query().Get("source"); src != "" && src != "ALL" {
		if !domain.ValidSource(src) {
			renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid source parameter"})
			return
		}
		sources = []domain.Source{domain.Source(src)}
	}

	s.refresher.RefreshNow(sources, false)

	renderJSON(w, r, http.StatusAccepted, feedResponse{
		Banter:  "Refreshing the feed",
		Content: &feedContent{Feed: []newsItem{}},
	})
}

// interactionRequest is the client interaction write payload.
type interactionRequest struct {
	FeedID      int64  `json:"feedid"`
	Interaction string `json:"interaction"`
}

// interactionsHandler records one view/like/share event against an article.
func (s *Server) interactionsHandler(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid request body"})
		return
	}
	if req.FeedID <= 0 {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid feedid"})
		return
	}
	if !domain.ValidInteraction(req.Interaction) {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Invalid interaction"})
		return
	}

	if err := s.interactions.RecordInteraction(r.Context(), req.FeedID, domain.InteractionKind(req.Interaction)); err != nil {
		lgr.Printf("[ERROR] record interaction failed for %d: %v", req.FeedID, err)
		renderJSON(w, r, http.StatusInternalServerError, feedResponse{Banter: "Failed to record interaction"})
		return
	}

	renderJSON(w, r, http.StatusOK, feedResponse{Banter: "All good"})
}

// imageHandler serves stored article images by their blob URI.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("imageurl")
	if imageURL == "" {
		renderJSON(w, r, http.StatusBadRequest, feedResponse{Banter: "Missing imageurl parameter"})
		return
	}
	if s.blob == nil {
		renderJSON(w, r, http.StatusNotFound, feedResponse{Banter: "Image storage not configured"})
		return
	}

	data, err := s.blob.Get(r.Context(), imageURL)
	if err != nil {
		renderJSON(w, r, http.StatusNotFound, feedResponse{Banter: "Image not found"})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "inline")
	if _, err := w.Write(data); err != nil {
		lgr.Printf("[WARN] image write failed: %v", err)
	}
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return val, nil
}
