package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s
  admin_token: "secret"
  page_size: 3

database:
  dsn: "file:test.db?mode=memory"

schedule:
  update_interval: 15
  max_workers: 3

crawl:
  freshness_window: 48h
  min_content_len: 200
  max_visits: 20
  user_agent: "TestBot/1.0"

sources:
  - adncuba
  - cibercuba
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "secret", cfg.Server.AdminToken)
		assert.Equal(t, 3, cfg.Server.PageSize)
		assert.Equal(t, "file:test.db?mode=memory", cfg.Database.DSN)
		assert.Equal(t, 15, cfg.Schedule.UpdateInterval)
		assert.Equal(t, 3, cfg.Schedule.MaxWorkers)
		assert.Equal(t, 48*time.Hour, cfg.Crawl.FreshnessWindow)
		assert.Equal(t, 200, cfg.Crawl.MinContentLen)
		assert.Equal(t, 20, cfg.Crawl.MaxVisits)
		assert.Equal(t, "TestBot/1.0", cfg.Crawl.UserAgent)
		assert.Equal(t, []string{"adncuba", "cibercuba"}, cfg.Sources)
	})

	t.Run("defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte("server:\n  listen: \":8081\"\n"), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":8081", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 2, cfg.Server.PageSize)
		assert.Equal(t, "file:cubafeed.db?cache=shared&mode=rwc", cfg.Database.DSN)
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.Equal(t, 60, cfg.Schedule.UpdateInterval)
		assert.Equal(t, 5, cfg.Schedule.MaxWorkers)
		assert.Equal(t, 72*time.Hour, cfg.Crawl.FreshnessWindow)
		assert.Equal(t, 100, cfg.Crawl.MinContentLen)
		assert.Equal(t, 50, cfg.Crawl.MaxVisits)
		assert.Equal(t, "Cubafeed/1.0", cfg.Crawl.UserAgent)
		assert.Equal(t, "./blobs", cfg.Blob.Dir)
		assert.Empty(t, cfg.Sources)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_ADMIN_TOKEN", "tok-123")
		configContent := `
server:
  admin_token: "${TEST_ADMIN_TOKEN}"
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "tok-123", cfg.Server.AdminToken)
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		configContent := `
sources:
  - nosuchpaper
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "unknown source")
	})

	t.Run("llm enabled requires api key", func(t *testing.T) {
		configContent := `
llm:
  enabled: true
  model: gpt-4o-mini
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "llm.api_key")
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configContent := `
invalid yaml content
  with bad indentation
    and no structure
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestConfig_EnabledSources(t *testing.T) {
	t.Run("explicit list", func(t *testing.T) {
		cfg := &Config{Sources: []string{"adncuba", "eltoque"}}
		assert.Equal(t, []domain.Source{domain.SourceAdnCuba, domain.SourceElToque}, cfg.EnabledSources())
	})

	t.Run("empty means all", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t, domain.KnownSources(), cfg.EnabledSources())
	})
}
