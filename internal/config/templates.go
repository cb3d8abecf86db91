package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Wealthgather Terminal Core Configuration

[market]
# Quote feed endpoint (Yahoo v7 quote format)
feed_url = "https://query1.finance.yahoo.com/v7/finance/quote"
# Quote poll interval
poll_interval = "3s"
# News refresh interval
news_interval = "30s"
# Remote store health check interval
health_interval = "30s"
# Latency display refresh interval
latency_interval = "1s"
# Per-request timeout for feed calls
request_timeout = "5s"
# Number of synthetic intraday points per instrument
history_points = 20

[trading]
# Price deviation above this percentage requires explicit confirmation
slippage_threshold_percent = 5.0
# Fallback cash balance while the profile row is loading
initial_cash = 500000.0

[store]
# Store mode: "local" (embedded sqlite) or "rest" (hosted backend)
mode = "local"
# sqlite_path = "~/.config/wealthgather/store.db"
# rest_url = "https://example.supabase.co"
# rest_key = ""
# realtime_url = "wss://example.supabase.co/realtime/v1"
request_timeout = "5s"

[logging]
level = "info"
console = true
file = false
# file_path = "~/.config/wealthgather/logs/terminal.log"
max_size_mb = 100
max_backups = 7
max_age_days = 30
`

// DefaultInstrumentCodes returns the tradable instrument universe.
// A-shares in Yahoo symbol format: .SS Shanghai, .SZ Shenzhen.
func DefaultInstrumentCodes() []string {
	return []string{
		"600519.SS", "601318.SS", "600036.SS", "601857.SS",
		"601012.SS", "603259.SS", "600030.SS", "600900.SS",
		"688981.SS", "688008.SS",
		"300750.SZ", "002594.SZ", "000858.SZ", "300059.SZ",
		"002230.SZ", "002415.SZ", "000333.SZ", "300760.SZ",
	}
}

// DefaultIndexCodes returns the market index universe. Disjoint from the
// instrument codes; membership here decides the normalizer partition.
func DefaultIndexCodes() []string {
	return []string{
		"000001.SS", // SSE Composite
		"399001.SZ", // SZSE Component
		"399006.SZ", // ChiNext
		"000300.SS", // CSI 300
	}
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created template config at %s\n", path)
	return nil
}
