// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Lighthouse LighthouseConfig `mapstructure:"lighthouse"`
	KV         KVConfig         `mapstructure:"kv"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AuditConfig governs job orchestration.
type AuditConfig struct {
	MaxPages       int    `mapstructure:"max_pages"`
	WorkDir        string `mapstructure:"work_dir"`
	LeaseTTLHours  int    `mapstructure:"lease_ttl_hours"`
	ResultTTLDays  int    `mapstructure:"result_ttl_days"`
	ErrorTTLHours  int    `mapstructure:"error_ttl_hours"`
	ReportPrefix   string `mapstructure:"report_prefix"`
	NotifyOnFinish bool   `mapstructure:"notify_on_finish"`
}

// LeaseTTL returns the configured lease window.
func (c AuditConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLHours) * time.Hour
}

// ResultTTL returns the fresh-result window for completed jobs.
func (c AuditConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLDays) * 24 * time.Hour
}

// ErrorTTL returns the expiry window for error results.
func (c AuditConfig) ErrorTTL() time.Duration {
	return time.Duration(c.ErrorTTLHours) * time.Hour
}

// CrawlerConfig governs page discovery.
type CrawlerConfig struct {
	UserAgent              string `mapstructure:"user_agent"`
	MaxDepth               int    `mapstructure:"max_depth"`
	DelayMs                int    `mapstructure:"delay_ms"`
	Parallelism            int    `mapstructure:"parallelism"`
	HeadlessFallback       bool   `mapstructure:"headless_fallback"`
	HeadlessTimeoutSeconds int    `mapstructure:"headless_timeout_seconds"`
}

// LighthouseConfig configures the external audit tool invocation.
type LighthouseConfig struct {
	Binary      string `mapstructure:"binary"`
	MaxWaitMs   int    `mapstructure:"max_wait_ms"`
	ChromeFlags string `mapstructure:"chrome_flags"`
}

// KVConfig selects and configures the lease/result store.
type KVConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig selects and configures report object storage.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCANOVA")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("audit.max_pages", 25)
	v.SetDefault("audit.work_dir", "/tmp/scanova")
	v.SetDefault("audit.lease_ttl_hours", 2)
	v.SetDefault("audit.result_ttl_days", 7)
	v.SetDefault("audit.error_ttl_hours", 24)
	v.SetDefault("audit.report_prefix", "reports")
	v.SetDefault("audit.notify_on_finish", true)
	v.SetDefault("crawler.user_agent", "scanova-audit/1.0")
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.delay_ms", 250)
	v.SetDefault("crawler.parallelism", 4)
	v.SetDefault("crawler.headless_fallback", false)
	v.SetDefault("crawler.headless_timeout_seconds", 30)
	v.SetDefault("lighthouse.binary", "lighthouse")
	v.SetDefault("lighthouse.max_wait_ms", 120000)
	v.SetDefault("lighthouse.chrome_flags", "--headless --no-sandbox")
	v.SetDefault("kv.provider", "memory")
	v.SetDefault("kv.table", "kv_entries")
	v.SetDefault("kv.max_conns", 8)
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("pubsub.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Audit.MaxPages <= 0 {
		return fmt.Errorf("audit.max_pages must be > 0")
	}
	if c.Audit.LeaseTTLHours <= 0 {
		return fmt.Errorf("audit.lease_ttl_hours must be > 0")
	}
	switch c.KV.Provider {
	case "memory":
	case "postgres":
		if c.KV.DSN == "" {
			return fmt.Errorf("kv.dsn must be set when kv.provider is postgres")
		}
	default:
		return fmt.Errorf("kv.provider must be memory or postgres, got %q", c.KV.Provider)
	}
	switch c.Storage.Provider {
	case "noop", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set when storage.provider is local")
		}
	default:
		return fmt.Errorf("storage.provider must be noop, memory, local, or gcs, got %q", c.Storage.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}
