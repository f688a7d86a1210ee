// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Sections map 1:1 onto
// the subsystems they configure.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Replay     ReplayConfig     `mapstructure:"replay" yaml:"replay"`
	Capture    CaptureConfig    `mapstructure:"capture" yaml:"capture"`
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the remote backend connection details. An empty URL
// disables the remote backend entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// CacheConfig configures the embedded local cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// StoreConfig tunes the in-memory session store.
type StoreConfig struct {
	ReevaluateInterval time.Duration `mapstructure:"reevaluate_interval" yaml:"reevaluate_interval"`
	DefaultTTL         time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
}

// ClassifierConfig carries the operator-tunable artifact heuristics. Empty
// lists mean the built-in pattern sets.
type ClassifierConfig struct {
	CookiePatterns  []string `mapstructure:"cookie_patterns" yaml:"cookie_patterns"`
	StoragePatterns []string `mapstructure:"storage_patterns" yaml:"storage_patterns"`
}

// ReplayConfig paces generated auto-login plans.
type ReplayConfig struct {
	InitialWaitMs    int `mapstructure:"initial_wait_ms" yaml:"initial_wait_ms"`
	MinKeyDelayMs    int `mapstructure:"min_key_delay_ms" yaml:"min_key_delay_ms"`
	KeyDelayJitterMs int `mapstructure:"key_delay_jitter_ms" yaml:"key_delay_jitter_ms"`
}

// CaptureConfig carries the defaults stamped onto captured sessions.
type CaptureConfig struct {
	DefaultProfile string `mapstructure:"default_profile" yaml:"default_profile"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	Browser        string `mapstructure:"browser" yaml:"browser"`
	Screen         string `mapstructure:"screen" yaml:"screen"`
	Locale         string `mapstructure:"locale" yaml:"locale"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sessionvault")
	v.SetDefault("logger.log_file", "sessionvault.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Persistence --
	v.SetDefault("database.url", "")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", ".sessionvault/cache")

	// -- Store --
	v.SetDefault("store.reevaluate_interval", "1m")
	v.SetDefault("store.default_ttl", 30*24*time.Hour)

	// -- Replay --
	v.SetDefault("replay.initial_wait_ms", 1500)
	v.SetDefault("replay.min_key_delay_ms", 40)
	v.SetDefault("replay.key_delay_jitter_ms", 120)

	// -- Capture --
	v.SetDefault("capture.default_profile", "default")
	v.SetDefault("capture.browser", "chromium")
	v.SetDefault("capture.screen", "1920x1080")
	v.SetDefault("capture.locale", "en-US")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the built-in defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Store.ReevaluateInterval <= 0 {
		return fmt.Errorf("store.reevaluate_interval must be a positive duration")
	}
	if c.Store.DefaultTTL <= 0 {
		return fmt.Errorf("store.default_ttl must be a positive duration")
	}
	if c.Replay.MinKeyDelayMs <= 0 {
		return fmt.Errorf("replay.min_key_delay_ms must be a positive integer")
	}
	if c.Replay.KeyDelayJitterMs < 0 {
		return fmt.Errorf("replay.key_delay_jitter_ms must not be negative")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when the cache is enabled")
	}
	return nil
}
