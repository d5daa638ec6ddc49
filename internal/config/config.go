package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Postback   PostbackConfig   `yaml:"postback" mapstructure:"postback"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ReviewConfig configures review submission.
type ReviewConfig struct {
	// TimeoutSecs bounds a whole submission, transaction included.
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DefaultStatus   string `yaml:"default_status" mapstructure:"default_status"`
	ConflictRetries int    `yaml:"conflict_retries" mapstructure:"conflict_retries"`
}

// Timeout returns TimeoutSecs as a duration.
func (c ReviewConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheConfig selects the attribution cache.
type CacheConfig struct {
	Driver    string `yaml:"driver" mapstructure:"driver"` // memory, redis, none
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	TTLSecs   int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// TTL returns TTLSecs as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// PostbackConfig configures the downstream notification after a review.
type PostbackConfig struct {
	Target      string `yaml:"target" mapstructure:"target"` // conga, salesforce
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Mock        bool   `yaml:"mock" mapstructure:"mock"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ReviewPath  string `yaml:"review_path" mapstructure:"review_path"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryCount  int    `yaml:"retry_count" mapstructure:"retry_count"`
	OutputFile  string `yaml:"output_file" mapstructure:"output_file"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
	QueueSize   int    `yaml:"queue_size" mapstructure:"queue_size"`

	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`

	// SObject is the Salesforce object review records are written to.
	SObject string `yaml:"sobject" mapstructure:"sobject"`
}

// Timeout returns TimeoutSecs as a duration.
func (c PostbackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// MonitoringConfig configures background alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("review.timeout_secs", 30)
	v.SetDefault("review.default_status", "Reviewed")
	v.SetDefault("review.conflict_retries", 1)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("postback.target", "conga")
	v.SetDefault("postback.enabled", false)
	v.SetDefault("postback.mock", true)
	v.SetDefault("postback.base_url", "")
	v.SetDefault("postback.review_path", "/reviews")
	v.SetDefault("postback.api_key", "")
	v.SetDefault("postback.timeout_secs", 10)
	v.SetDefault("postback.retry_count", 2)
	v.SetDefault("postback.output_file", "conga_postbacks.jsonl")
	v.SetDefault("postback.workers", 2)
	v.SetDefault("postback.queue_size", 256)
	v.SetDefault("postback.breaker_threshold", 5)
	v.SetDefault("postback.breaker_reset_secs", 60)
	v.SetDefault("postback.sobject", "Contract_Review__c")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5.0)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot be wired.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return eris.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	switch c.Postback.Target {
	case "conga", "salesforce":
	default:
		return eris.Errorf("config: unknown postback.target %q", c.Postback.Target)
	}
	if c.Review.ConflictRetries < 0 {
		return eris.New("config: review.conflict_retries must be >= 0")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
