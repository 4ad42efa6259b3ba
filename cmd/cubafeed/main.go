package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/acorn-news/cubafeed/pkg/blob"
	"github.com/acorn-news/cubafeed/pkg/config"
	"github.com/acorn-news/cubafeed/pkg/content"
	"github.com/acorn-news/cubafeed/pkg/crawler"
	"github.com/acorn-news/cubafeed/pkg/db"
	"github.com/acorn-news/cubafeed/pkg/domain"
	"github.com/acorn-news/cubafeed/pkg/feed"
	"github.com/acorn-news/cubafeed/pkg/ingest"
	"github.com/acorn-news/cubafeed/pkg/llm"
	"github.com/acorn-news/cubafeed/pkg/scheduler"
	"github.com/acorn-news/cubafeed/pkg/source"
	"github.com/acorn-news/cubafeed/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		lgr.Printf("[ERROR] can't load config: %v", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.Server.AdminToken, cfg.LLM.APIKey)

	lgr.Printf("[INFO] starting cubafeed version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		lgr.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	lgr.Printf("[INFO] shutdown complete")
}

// run wires all components and blocks until the context is done.
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	blobStore, err := blob.NewFSStore(cfg.Blob.Dir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	crawlers, err := makeCrawlers(cfg, blobStore)
	if err != nil {
		return err
	}

	engine := ingest.New(database, ingest.NewRecencyScorer(), cfg.Schedule.MaxWorkers)

	var summarizer scheduler.Summarizer
	if cfg.LLM.Enabled {
		summarizer = llm.NewSummarizer(cfg.LLM)
		lgr.Printf("[INFO] AI summaries enabled with model %s", cfg.LLM.Model)
	}

	sched := scheduler.NewScheduler(crawlers, engine, summarizer, database, scheduler.Config{
		UpdateInterval: time.Duration(cfg.Schedule.UpdateInterval) * time.Minute,
		MaxWorkers:     cfg.Schedule.MaxWorkers,
	})
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(feed.NewAssembler(database), sched, database, blobStore, server.Config{
		Listen:     cfg.Server.Listen,
		Timeout:    cfg.Server.Timeout,
		AdminToken: cfg.Server.AdminToken,
		PageSize:   cfg.Server.PageSize,
		Version:    revision,
		Debug:      debug,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// makeCrawlers builds one crawler per enabled source.
func makeCrawlers(cfg *config.Config, blobStore *blob.FSStore) (map[domain.Source]scheduler.Crawler, error) {
	fetcher := crawler.NewHTTPFetcher(cfg.Crawl.Timeout, cfg.Crawl.UserAgent)
	extractor := content.NewExtractor(cfg.Crawl.Timeout, cfg.Crawl.UserAgent)
	policy := crawler.Policy{
		FreshnessWindow: cfg.Crawl.FreshnessWindow,
		MinContentLen:   cfg.Crawl.MinContentLen,
		MaxVisits:       cfg.Crawl.MaxVisits,
	}

	var imgStore crawler.BlobStore
	if cfg.Crawl.StoreImages {
		imgStore = blobStore
	}

	crawlers := make(map[domain.Source]scheduler.Crawler)
	for _, src := range cfg.EnabledSources() {
		adapter, ok := source.ByName(string(src))
		if !ok {
			lgr.Printf("[WARN] no adapter for source %s, skipping", src)
			continue
		}
		crawlers[src] = crawler.New(adapter, fetcher, imgStore, extractor, policy)
	}
	if len(crawlers) == 0 {
		return nil, fmt.Errorf("no crawlable sources configured")
	}
	return crawlers, nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var cleaned []string
	for _, s := range secs {
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) > 0 {
		logOpts = append(logOpts, lgr.Secret(cleaned...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
