package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Market Analyzer Configuration

[strategy]
# Total score at or above which a BUY signal fires
buy_threshold = 7.0
# Total score at or below which a SELL signal fires
sell_threshold = 3.0
# Fraction of available cash committed per entry
position_size = 0.20
# Exit when price falls this fraction below entry
stop_loss = 0.05
# Exit when price rises this fraction above entry
take_profit = 0.15
# Minimum dollar value for a new position
min_notional = 100.0
# Symbols scanned by portfolio simulations and the monitor
universe = ["AAPL", "MSFT", "GOOGL", "NVDA", "TSLA", "AMZN", "META"]

[strategy.weights]
technical = 0.4
fundamental = 0.4
sentiment = 0.2

[strategy.technical_weights]
rsi = 0.20
macd = 0.18
bollinger = 0.15
trend = 0.15
volume = 0.12
adx = 0.08
williams_r = 0.06
obv = 0.03
range_position = 0.03

[data]
# SQLite price cache location (uncomment to override the default)
# cache_path = "/path/to/price_cache.db"
# Days of daily history fetched per symbol
history_days = 730
# HTTP request timeout in seconds
request_timeout = 30

[storage]
# Portfolio database location (uncomment to override the default)
# database_path = "/path/to/portfolios.db"

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[monitor]
# Cron schedule for the watch loop (weekdays after US close)
schedule = "30 16 * * 1-5"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created template config at %s\n", path)
	return nil
}
