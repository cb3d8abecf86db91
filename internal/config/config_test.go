package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Market.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %v, want 3s", cfg.Market.PollInterval)
	}
	if cfg.Market.HistoryPoints != 20 {
		t.Errorf("history points = %d, want 20", cfg.Market.HistoryPoints)
	}
	if len(cfg.Market.InstrumentCodes) == 0 || len(cfg.Market.IndexCodes) == 0 {
		t.Error("default code lists must be populated")
	}
	if cfg.Trading.SlippageThresholdPercent != 5.0 {
		t.Errorf("slippage threshold = %v, want 5.0", cfg.Trading.SlippageThresholdPercent)
	}
	if cfg.Trading.InitialCash != 500000.0 {
		t.Errorf("initial cash = %v, want 500000", cfg.Trading.InitialCash)
	}
	if cfg.Store.Mode != "local" {
		t.Errorf("store mode = %s, want local", cfg.Store.Mode)
	}

	// A missing config file writes the template for next time.
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template config not written: %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[market]
poll_interval = "10s"
history_points = 5

[trading]
slippage_threshold_percent = 2.5
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Market.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %v, want 10s", cfg.Market.PollInterval)
	}
	if cfg.Market.HistoryPoints != 5 {
		t.Errorf("history points = %d, want 5", cfg.Market.HistoryPoints)
	}
	if cfg.Trading.SlippageThresholdPercent != 2.5 {
		t.Errorf("slippage threshold = %v, want 2.5", cfg.Trading.SlippageThresholdPercent)
	}
	// Unset keys keep their defaults.
	if cfg.Market.FeedURL == "" {
		t.Error("feed url default missing")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WEALTHGATHER_FEED_URL", "http://localhost:9999/quote")
	t.Setenv("WEALTHGATHER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Market.FeedURL != "http://localhost:9999/quote" {
		t.Errorf("feed url = %s, env override ignored", cfg.Market.FeedURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, env override ignored", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Market: MarketConfig{
				FeedURL:       "http://example.com/quote",
				PollInterval:  3 * time.Second,
				HistoryPoints: 20,
			},
			Trading: TradingConfig{SlippageThresholdPercent: 5.0},
			Store:   StoreConfig{Mode: "local"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing feed url", func(c *Config) { c.Market.FeedURL = "" }, true},
		{"zero poll interval", func(c *Config) { c.Market.PollInterval = 0 }, true},
		{"zero history points", func(c *Config) { c.Market.HistoryPoints = 0 }, true},
		{"zero slippage threshold", func(c *Config) { c.Trading.SlippageThresholdPercent = 0 }, true},
		{"unknown store mode", func(c *Config) { c.Store.Mode = "cloud" }, true},
		{"rest mode without url", func(c *Config) { c.Store.Mode = "rest" }, true},
		{"rest mode with url", func(c *Config) {
			c.Store.Mode = "rest"
			c.Store.RestURL = "https://example.supabase.co"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
