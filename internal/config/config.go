package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Platforms PlatformsConfig `mapstructure:"platforms" yaml:"platforms"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// NetworkConfig tunes the HTTP client shared by both platform clients.
type NetworkConfig struct {
	// Timeout bounds a single request attempt, not the whole retry cycle.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxRetries is the total attempt ceiling, including the first attempt.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryDelay is the backoff base; attempt n waits RetryDelay * 2^(n-1).
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// RateLimit caps outbound requests per second across retries.
	// Zero disables the limiter.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// PlatformsConfig holds the per-platform endpoints.
type PlatformsConfig struct {
	MarketInOut PlatformConfig `mapstructure:"marketinout" yaml:"marketinout"`
	TradingView PlatformConfig `mapstructure:"tradingview" yaml:"tradingview"`
}

// PlatformConfig describes one upstream platform.
type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// StoreConfig holds the session store connection details. An empty URL
// selects the in-memory store, which is only useful for tests and dry runs.
type StoreConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// CacheConfig tunes the session cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tradewire")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.max_retries", 3)
	v.SetDefault("network.retry_delay", "1s")
	v.SetDefault("network.rate_limit", 0.0)
	v.SetDefault("network.rate_burst", 1)

	// -- Platforms --
	v.SetDefault("platforms.marketinout.base_url", "https://www.marketinout.com")
	v.SetDefault("platforms.tradingview.base_url", "https://www.tradingview.com")

	// -- Cache --
	v.SetDefault("cache.ttl", "5m")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("store.url", "TRADEWIRE_STORE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Network.MaxRetries <= 0 {
		return fmt.Errorf("network.max_retries must be a positive integer")
	}
	if c.Network.RetryDelay <= 0 {
		return fmt.Errorf("network.retry_delay must be a positive duration")
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be a positive duration")
	}
	if c.Platforms.MarketInOut.BaseURL == "" || c.Platforms.TradingView.BaseURL == "" {
		return fmt.Errorf("platforms.marketinout.base_url and platforms.tradingview.base_url are required")
	}
	return nil
}
