package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kathRex/kartbuilds/internal/scoring"
)

const (
	DefaultEndpoint  = "https://api.triplydb.com/datasets/katmirex/Mario-Kart-8-Deluxe---Complete-Ontology/sparql"
	DefaultNamespace = "http://mariokart8deluxe.owl#"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	SPARQL   SPARQLConfig   `yaml:"sparql"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Cache    CacheConfig    `yaml:"cache"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	WarmCatalog        bool   `yaml:"warm_catalog"`
}

type SPARQLConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	Namespace         string  `yaml:"namespace"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	BreakerFailures   uint32  `yaml:"breaker_failures"`
	BreakerTimeoutMs  int     `yaml:"breaker_timeout_ms"`
}

// DatabaseConfig selects the build store. An empty URL keeps builds in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// HermesConfig points at NATS. An empty URL disables events.
type HermesConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	Size                int `yaml:"size"`
	TTLSeconds          int `yaml:"ttl_seconds"`
	WarmIntervalSeconds int `yaml:"warm_interval_seconds"`
}

// ScoringConfig lets deployments replace or add playstyle presets by key.
type ScoringConfig struct {
	Playstyles map[string]scoring.Playstyle `yaml:"playstyles"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SPARQLTimeout() time.Duration {
	return time.Duration(c.SPARQL.TimeoutMs) * time.Millisecond
}

// CatalogFetchTimeout bounds one catalog load, which may span several
// rate-limited queries.
func (c *Config) CatalogFetchTimeout() time.Duration {
	return 3 * c.SPARQLTimeout()
}

func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.SPARQL.BreakerTimeoutMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) WarmInterval() time.Duration {
	return time.Duration(c.Cache.WarmIntervalSeconds) * time.Second
}

// Playstyles returns the built-in presets with any configured overrides.
func (c *Config) Playstyles() ([]scoring.Playstyle, error) {
	return scoring.MergePlaystyles(scoring.DefaultPlaystyles(), c.Scoring.Playstyles)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
			WarmCatalog:        true,
		},
		SPARQL: SPARQLConfig{
			Endpoint:          DefaultEndpoint,
			Namespace:         DefaultNamespace,
			TimeoutMs:         10000,
			RequestsPerSecond: 5,
			Burst:             8,
			BreakerFailures:   5,
			BreakerTimeoutMs:  30000,
		},
		Cache: CacheConfig{
			Size:                256,
			TTLSeconds:          3600,
			WarmIntervalSeconds: 900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, then applies KARTBUILDS_* overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.SPARQL.Endpoint == "" {
		return fmt.Errorf("sparql.endpoint is required")
	}
	if c.SPARQL.Namespace == "" {
		return fmt.Errorf("sparql.namespace is required")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if _, err := c.Playstyles(); err != nil {
		return fmt.Errorf("scoring.playstyles: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KARTBUILDS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("KARTBUILDS_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("KARTBUILDS_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("KARTBUILDS_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("KARTBUILDS_WARM_CATALOG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.WarmCatalog = b
		}
	}
	if v := os.Getenv("KARTBUILDS_SPARQL_ENDPOINT"); v != "" {
		cfg.SPARQL.Endpoint = v
	}
	if v := os.Getenv("KARTBUILDS_SPARQL_NAMESPACE"); v != "" {
		cfg.SPARQL.Namespace = v
	}
	if v := os.Getenv("KARTBUILDS_SPARQL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SPARQL.TimeoutMs = n
		}
	}
	if v := os.Getenv("KARTBUILDS_SPARQL_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SPARQL.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("KARTBUILDS_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("KARTBUILDS_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("KARTBUILDS_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLSeconds = n
		}
	}
	if v := os.Getenv("KARTBUILDS_CACHE_WARM_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.WarmIntervalSeconds = n
		}
	}
	if v := os.Getenv("KARTBUILDS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KARTBUILDS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
