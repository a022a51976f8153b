package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Chan Analyzer Configuration

[engine]
# Bars on each side a fractal must dominate
fractal_window = 3
# Bars after a hub scanned for a third-class breakout
hub_lookahead = 20
# Bars after a first-class signal scanned for its second-class confirmation
signal_lookahead = 20
# Momentum oscillator periods
macd_fast = 12
macd_slow = 26
macd_signal = 9
# Oscillator flavour: "ewm" (seeded at first bar) or "talib"
oscillator = "ewm"

[logging]
# Level: debug, info, warn, error
level = "info"
console = true
file = true
# file_path = "~/.config/chan-analyzer/logs/chan.log"
max_size = 50
max_backups = 5
max_age = 30

[store]
# SQLite database file
# path = "~/.config/chan-analyzer/chan.db"
retry_attempts = 3
retry_delay = "200ms"
# Consecutive failed reads before remaining symbols are skipped (0 disables)
breaker_threshold = 3
breaker_cooldown = "30s"

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"

[batch]
# Concurrent instruments during batch analysis
workers = 4
`

// createTemplateConfig writes the commented template. The caller keeps its defaults.
func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
