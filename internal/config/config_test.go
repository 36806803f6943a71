package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Pipeline.Offset)
	assert.Equal(t, 20, cfg.Pipeline.Limit)
	assert.Empty(t, cfg.Redis.Addr, "redis sink is opt-in")
}

func TestMergeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  base_url: http://localhost:9000/api/v2
  timeout: 5s
pipeline:
  limit: 10
  item_timeout: 2s
redis:
  addr: localhost:6379
`), 0o600))

	cfg := Default()
	require.NoError(t, cfg.mergeFile(path))

	assert.Equal(t, "http://localhost:9000/api/v2", cfg.Catalog.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 10, cfg.Pipeline.Limit)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.ItemTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Catalog.UserAgent, cfg.Catalog.UserAgent)
	assert.Equal(t, Default().Pipeline.MaxConcurrency, cfg.Pipeline.MaxConcurrency)
}

func TestMergeFile_Errors(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.mergeFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [not, a, map]"), 0o600))
	assert.Error(t, cfg.mergeFile(path))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"CATALOG_BASE_URL": "http://mock/api/v2",
		"USER_AGENT":       "Test/1.0",
		"PAGE_OFFSET":      "40",
		"PAGE_LIMIT":       "5",
		"ITEM_TIMEOUT":     "750ms",
		"LOG_LEVEL":        "debug",
		"LOG_PRETTY":       "true",
		"PORT":             "9090",
		"REDIS_URL":        "redis:6379",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://mock/api/v2", cfg.Catalog.BaseURL)
	assert.Equal(t, "Test/1.0", cfg.Catalog.UserAgent)
	assert.Equal(t, 40, cfg.Pipeline.Offset)
	assert.Equal(t, 5, cfg.Pipeline.Limit)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.ItemTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"PAGE_LIMIT":   "twenty",
		"ITEM_TIMEOUT": "soon",
		"LOG_PRETTY":   "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_LIMIT")
	assert.Contains(t, err.Error(), "ITEM_TIMEOUT")
	assert.Contains(t, err.Error(), "LOG_PRETTY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{"negative offset", func(c *Config) { c.Pipeline.Offset = -1 }, "pipeline.offset"},
		{"zero limit", func(c *Config) { c.Pipeline.Limit = 0 }, "pipeline.limit"},
		{"limit too large", func(c *Config) { c.Pipeline.Limit = MaxPageLimit + 1 }, "pipeline.limit"},
		{"empty user agent", func(c *Config) { c.Catalog.UserAgent = "" }, "user_agent"},
		{"zero timeout", func(c *Config) { c.Catalog.Timeout = 0 }, "catalog.timeout"},
		{"negative interval", func(c *Config) { c.Pipeline.RefreshInterval = -time.Second }, "refresh_interval"},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PAGE_LIMIT", "3")

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  limit: 50\n  offset: 7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Limit, "environment overrides the file")
	assert.Equal(t, 7, cfg.Pipeline.Offset)

	t.Setenv("PAGE_LIMIT", "0")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"

	cc := cfg.ClientConfig()
	assert.Equal(t, cfg.Catalog.BaseURL, cc.BaseURL)
	assert.Equal(t, cfg.Catalog.UserAgent, cc.UserAgent)

	ec := cfg.EnrichmentConfig()
	assert.Equal(t, cfg.Pipeline.MaxConcurrency, ec.MaxConcurrency)
	assert.Equal(t, cfg.Pipeline.ItemTimeout, ec.ItemTimeout)

	assert.Equal(t, logging.LevelWarn, cfg.LoggingConfig().Level)
	assert.Equal(t, cfg.Redis.Channel, cfg.BroadcastConfig().Channel)
}
