// Package config loads runtime configuration for the catalog server from
// defaults, an optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/creature-catalog/pkg/broadcast"
	"github.com/Sternrassler/creature-catalog/pkg/client"
	"github.com/Sternrassler/creature-catalog/pkg/enrichment"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"gopkg.in/yaml.v3"
)

// MaxPageLimit caps the page size; every entry of a page becomes one
// concurrent detail call.
const MaxPageLimit = 100

// Config holds all runtime configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
}

// CatalogConfig configures the upstream catalog client.
type CatalogConfig struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// PipelineConfig configures the refresh window and fan-out.
type PipelineConfig struct {
	Offset          int           `yaml:"offset"`
	Limit           int           `yaml:"limit"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	ItemTimeout     time.Duration `yaml:"item_timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig configures the broadcast sink. An empty Addr disables it.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Channel     string        `yaml:"channel"`
	SnapshotKey string        `yaml:"snapshot_key"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{
			BaseURL:      client.DefaultBaseURL,
			UserAgent:    "creature-catalog/0.1.0",
			Timeout:      30 * time.Second,
			MaxBodyBytes: client.DefaultMaxBodyBytes,
		},
		Pipeline: PipelineConfig{
			Offset:          0,
			Limit:           20,
			MaxConcurrency:  20,
			ItemTimeout:     15 * time.Second,
			RefreshInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Redis: RedisConfig{
			Channel:     "catalog:events",
			SnapshotKey: "catalog:current",
			SnapshotTTL: 10 * time.Minute,
		},
	}
}

// Load builds a Config from defaults, then path (if non-empty), then the
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path; keys absent from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("CATALOG_BASE_URL", &c.Catalog.BaseURL)
	str("USER_AGENT", &c.Catalog.UserAgent)
	duration("CATALOG_TIMEOUT", &c.Catalog.Timeout)

	integer("PAGE_OFFSET", &c.Pipeline.Offset)
	integer("PAGE_LIMIT", &c.Pipeline.Limit)
	integer("MAX_CONCURRENCY", &c.Pipeline.MaxConcurrency)
	duration("ITEM_TIMEOUT", &c.Pipeline.ItemTimeout)
	duration("REFRESH_INTERVAL", &c.Pipeline.RefreshInterval)

	str("LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
		} else {
			c.Log.Pretty = b
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}

	str("REDIS_URL", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("REDIS_CHANNEL", &c.Redis.Channel)

	return errors.Join(errs...)
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Catalog.UserAgent == "" {
		errs = append(errs, errors.New("catalog.user_agent is required"))
	}
	if c.Catalog.BaseURL == "" {
		errs = append(errs, errors.New("catalog.base_url is required"))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.timeout must be > 0 (got %s)", c.Catalog.Timeout))
	}
	if c.Pipeline.Offset < 0 {
		errs = append(errs, fmt.Errorf("pipeline.offset must be >= 0 (got %d)", c.Pipeline.Offset))
	}
	if c.Pipeline.Limit <= 0 || c.Pipeline.Limit > MaxPageLimit {
		errs = append(errs, fmt.Errorf("pipeline.limit must be in 1..%d (got %d)", MaxPageLimit, c.Pipeline.Limit))
	}
	if c.Pipeline.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("pipeline.refresh_interval must be >= 0 (got %s)", c.Pipeline.RefreshInterval))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ClientConfig converts to the catalog client configuration.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:      c.Catalog.BaseURL,
		UserAgent:    c.Catalog.UserAgent,
		Timeout:      c.Catalog.Timeout,
		MaxBodyBytes: c.Catalog.MaxBodyBytes,
	}
}

// LoggingConfig converts to the logging configuration.
func (c Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// EnrichmentConfig converts to the pipeline configuration.
func (c Config) EnrichmentConfig() enrichment.Config {
	return enrichment.Config{
		MaxConcurrency: c.Pipeline.MaxConcurrency,
		ItemTimeout:    c.Pipeline.ItemTimeout,
	}
}

// BroadcastConfig converts to the Redis sink configuration.
func (c Config) BroadcastConfig() broadcast.Config {
	cfg := broadcast.DefaultConfig()
	cfg.Channel = c.Redis.Channel
	cfg.SnapshotKey = c.Redis.SnapshotKey
	cfg.SnapshotTTL = c.Redis.SnapshotTTL
	return cfg
}
