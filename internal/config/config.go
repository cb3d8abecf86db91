// Package config provides configuration management for the terminal core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Market  MarketConfig  `mapstructure:"market"`
	Trading TradingConfig `mapstructure:"trading"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MarketConfig holds quote feed and polling configuration.
type MarketConfig struct {
	FeedURL         string        `mapstructure:"feed_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	NewsInterval    time.Duration `mapstructure:"news_interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	LatencyInterval time.Duration `mapstructure:"latency_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	InstrumentCodes []string      `mapstructure:"instrument_codes"`
	IndexCodes      []string      `mapstructure:"index_codes"`
	HistoryPoints   int           `mapstructure:"history_points"`
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	// SlippageThresholdPercent gates order submission: deviations above
	// it require an explicit confirmation.
	SlippageThresholdPercent float64 `mapstructure:"slippage_threshold_percent"`
	InitialCash              float64 `mapstructure:"initial_cash"`
}

// StoreConfig holds remote store configuration.
type StoreConfig struct {
	Mode           string        `mapstructure:"mode"` // "local" or "rest"
	SQLitePath     string        `mapstructure:"sqlite_path"`
	RestURL        string        `mapstructure:"rest_url"`
	RestKey        string        `mapstructure:"rest_key"`
	RealtimeURL    string        `mapstructure:"realtime_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/wealthgather"
	}
	return filepath.Join(home, ".config", "wealthgather")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// No config file yet: write the template and continue on defaults.
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.feed_url", "https://query1.finance.yahoo.com/v7/finance/quote")
	v.SetDefault("market.poll_interval", "3s")
	v.SetDefault("market.news_interval", "30s")
	v.SetDefault("market.health_interval", "30s")
	v.SetDefault("market.latency_interval", "1s")
	v.SetDefault("market.request_timeout", "5s")
	v.SetDefault("market.history_points", 20)
	v.SetDefault("market.instrument_codes", DefaultInstrumentCodes())
	v.SetDefault("market.index_codes", DefaultIndexCodes())

	v.SetDefault("trading.slippage_threshold_percent", 5.0)
	v.SetDefault("trading.initial_cash", 500000.0)

	v.SetDefault("store.mode", "local")
	v.SetDefault("store.sqlite_path", filepath.Join(DefaultConfigDir(), "store.db"))
	v.SetDefault("store.request_timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(DefaultConfigDir(), "logs", "terminal.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEALTHGATHER_FEED_URL"); v != "" {
		cfg.Market.FeedURL = v
	}
	if v := os.Getenv("WEALTHGATHER_STORE_MODE"); v != "" {
		cfg.Store.Mode = v
	}
	if v := os.Getenv("WEALTHGATHER_STORE_URL"); v != "" {
		cfg.Store.RestURL = v
	}
	if v := os.Getenv("WEALTHGATHER_STORE_KEY"); v != "" {
		cfg.Store.RestKey = v
	}
	if v := os.Getenv("WEALTHGATHER_REALTIME_URL"); v != "" {
		cfg.Store.RealtimeURL = v
	}
	if v := os.Getenv("WEALTHGATHER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Market.FeedURL == "" {
		return fmt.Errorf("%w: market.feed_url must be set", apperrors.ErrConfigInvalid)
	}
	if c.Market.PollInterval <= 0 {
		return fmt.Errorf("%w: market.poll_interval must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Market.HistoryPoints <= 0 {
		return fmt.Errorf("%w: market.history_points must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Trading.SlippageThresholdPercent <= 0 {
		return fmt.Errorf("%w: trading.slippage_threshold_percent must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Store.Mode != "local" && c.Store.Mode != "rest" {
		return fmt.Errorf("%w: store.mode %q (must be 'local' or 'rest')", apperrors.ErrConfigInvalid, c.Store.Mode)
	}
	if c.Store.Mode == "rest" && c.Store.RestURL == "" {
		return fmt.Errorf("%w: store.rest_url must be set when store.mode is 'rest'", apperrors.ErrConfigInvalid)
	}
	return nil
}
