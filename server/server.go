// Package server exposes the public feed API: paginated feed reads, token
// gated refresh triggers, interaction recording and image delivery.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// FeedService assembles feed pages from the persisted store.
type FeedService interface {
	GetFeed(ctx context.Context, page, pageSize int) (*domain.FeedPage, error)
}

// Refresher triggers asynchronous crawl-and-ingest runs.
type Refresher interface {
	RefreshNow(sources []domain.Source, dryRun bool)
}

// InteractionStore records client interactions.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, articleID int64, kind domain.InteractionKind) error
}

// BlobGetter resolves stored image URIs to bytes.
type BlobGetter interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// Config holds server configuration
type Config struct {
	Listen     string
	Timeout    time.Duration
	AdminToken string
	PageSize   int // default pageSize for feed requests
	Version    string
	Debug      bool
}

// Server represents HTTP server instance
type Server struct {
	feed         FeedService
	refresher    Refresher
	interactions InteractionStore
	blob         BlobGetter
	config       Config

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance. Blob getter is optional; without it
// the image endpoint answers 404.
func New(feed FeedService, refresher Refresher, interactions InteractionStore, blob BlobGetter, cfg Config) *Server {
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	s := &Server{
		feed:         feed,
		refresher:    refresher,
		interactions: interactions,
		blob:         blob,
		config:       cfg,
		router:       routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	lgr.Printf("[INFO] starting server on %s", s.config.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.router,
		ReadTimeout:  s.config.Timeout,
		WriteTimeout: s.config.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("cubafeed", "acorn-news", s.config.Version))
	s.router.Use(rest.Ping)

	if s.config.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /feed", s.feedHandler)
		r.HandleFunc("POST /interactions", s.interactionsHandler)
		r.HandleFunc("GET /image", s.imageHandler)
		r.HandleFunc("GET /status", s.statusHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.config.Version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}
