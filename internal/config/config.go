// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher backends selectable via crawler.fetcher.
const (
	FetcherHTTP     = "http"
	FetcherHeadless = "headless"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Relay    RelayConfig    `mapstructure:"relay"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RelayConfig routes fetches through the scraping proxy API.
type RelayConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// CrawlerConfig governs work-unit construction, retries and the pool.
type CrawlerConfig struct {
	Keywords          []string      `mapstructure:"keywords"`
	Pages             int           `mapstructure:"pages"`
	Location          string        `mapstructure:"location"`
	Concurrency       int           `mapstructure:"concurrency"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BatchSize         int           `mapstructure:"batch_size"`
	OutputDir         string        `mapstructure:"output_dir"`
	Fetcher           string        `mapstructure:"fetcher"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// HeadlessConfig configures the browser fetcher.
type HeadlessConfig struct {
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
}

// DBConfig enables the Postgres mirror when DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig controls archiving of finished outputs.
type StorageConfig struct {
	GCSBucket  string `mapstructure:"gcs_bucket"`
	Prefix     string `mapstructure:"prefix"`
	ArchiveDir string `mapstructure:"archive_dir"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig enables the /metrics and /healthz listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.endpoint", "https://proxy.scrapeops.io/v1/")
	v.SetDefault("crawler.keywords", []string{"online bank"})
	v.SetDefault("crawler.pages", 1)
	v.SetDefault("crawler.location", "us")
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.batch_size", 50)
	v.SetDefault("crawler.output_dir", "data")
	v.SetDefault("crawler.fetcher", FetcherHTTP)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; review-crawler/0.1)")
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", 45*time.Second)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "crawl_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "crawls")
	v.SetDefault("storage.archive_dir", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Pages <= 0 {
		return fmt.Errorf("crawler.pages must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if strings.TrimSpace(c.Crawler.OutputDir) == "" {
		return fmt.Errorf("crawler.output_dir is required")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	switch c.Crawler.Fetcher {
	case FetcherHTTP:
	case FetcherHeadless:
		if c.Headless.MaxParallel < 0 {
			return fmt.Errorf("headless.max_parallel must be >= 0")
		}
	default:
		return fmt.Errorf("crawler.fetcher must be %q or %q, got %q", FetcherHTTP, FetcherHeadless, c.Crawler.Fetcher)
	}
	if c.Relay.Enabled && c.Relay.APIKey == "" {
		return fmt.Errorf("relay.api_key must be set when the relay is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}
