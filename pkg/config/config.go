package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen     string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		AdminToken string        `yaml:"admin_token" json:"admin_token" jsonschema:"description=Token required to trigger a feed refresh (can use environment variable)"`
		PageSize   int           `yaml:"page_size" json:"page_size" jsonschema:"default=2,description=Default number of articles per source on a feed page"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:cubafeed.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		UpdateInterval int `yaml:"update_interval" json:"update_interval" jsonschema:"default=60,description=Crawl interval in minutes"`
		MaxWorkers     int `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent source crawls"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Crawl CrawlConfig `yaml:"crawl" json:"crawl" jsonschema:"description=Crawl policy configuration"`

	Blob struct {
		Dir string `yaml:"dir" json:"dir" jsonschema:"default=./blobs,description=Directory for stored article images"`
	} `yaml:"blob" json:"blob" jsonschema:"description=Blob storage configuration"`

	Sources []string `yaml:"sources" json:"sources" jsonschema:"description=Sources to crawl (empty means all known sources)"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for article summaries"`
}

// CrawlConfig holds the crawl policy applied to every source
type CrawlConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window" json:"freshness_window" jsonschema:"default=72h,description=Maximum article age to accept"`
	MinContentLen   int           `yaml:"min_content_len" json:"min_content_len" jsonschema:"default=100,description=Minimum extracted content length to consider an article real"`
	MaxVisits       int           `yaml:"max_visits" json:"max_visits" jsonschema:"default=50,description=Maximum pages fetched per source per run"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP timeout per request"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Cubafeed/1.0,description=User agent for HTTP requests"`
	StoreImages     bool          `yaml:"store_images" json:"store_images" jsonschema:"default=false,description=Download article images into blob storage"`
}

// LLMConfig holds LLM configuration for article summaries
type LLMConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable AI summaries"`
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=300,description=Maximum tokens in response"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt for the LLM (optional)"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema, supplementary so a mismatch is not fatal
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with the documented defaults
func setDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.PageSize == 0 {
		cfg.Server.PageSize = 2
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:cubafeed.db?cache=shared&mode=rwc"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	if cfg.Schedule.UpdateInterval == 0 {
		cfg.Schedule.UpdateInterval = 60
	}
	if cfg.Schedule.MaxWorkers == 0 {
		cfg.Schedule.MaxWorkers = 5
	}

	if cfg.Crawl.FreshnessWindow == 0 {
		cfg.Crawl.FreshnessWindow = 72 * time.Hour
	}
	if cfg.Crawl.MinContentLen == 0 {
		cfg.Crawl.MinContentLen = 100
	}
	if cfg.Crawl.MaxVisits == 0 {
		cfg.Crawl.MaxVisits = 50
	}
	if cfg.Crawl.Timeout == 0 {
		cfg.Crawl.Timeout = 30 * time.Second
	}
	if cfg.Crawl.UserAgent == "" {
		cfg.Crawl.UserAgent = "Cubafeed/1.0"
	}

	if cfg.Blob.Dir == "" {
		cfg.Blob.Dir = "./blobs"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 300
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Server.PageSize < 1 {
		return fmt.Errorf("server.page_size must be at least 1")
	}

	if cfg.Schedule.UpdateInterval < 1 {
		return fmt.Errorf("schedule.update_interval must be at least 1 minute")
	}
	if cfg.Schedule.MaxWorkers < 1 {
		return fmt.Errorf("schedule.max_workers must be at least 1")
	}

	if cfg.Crawl.FreshnessWindow < time.Hour {
		return fmt.Errorf("crawl.freshness_window must be at least 1 hour")
	}
	if cfg.Crawl.MinContentLen < 0 {
		return fmt.Errorf("crawl.min_content_len must be non-negative")
	}
	if cfg.Crawl.MaxVisits < 1 {
		return fmt.Errorf("crawl.max_visits must be at least 1")
	}
	if cfg.Crawl.Timeout < time.Second {
		return fmt.Errorf("crawl.timeout must be at least 1 second")
	}

	for _, src := range cfg.Sources {
		if !domain.ValidSource(src) {
			return fmt.Errorf("unknown source %q", src)
		}
	}

	if cfg.LLM.Enabled {
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required when llm is enabled")
		}
		if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be between 0 and 2")
		}
	}

	return nil
}

// EnabledSources returns the sources to crawl, all known ones when the list
// is empty.
func (c *Config) EnabledSources() []domain.Source {
	if len(c.Sources) == 0 {
		return domain.KnownSources()
	}
	out := make([]domain.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		out = append(out, domain.Source(src))
	}
	return out
}
