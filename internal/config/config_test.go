package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadCreatesTemplateAndRunsOnDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	// First load writes the template and falls back to built-in defaults
	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Strategy.BuyThreshold)
	assert.Equal(t, 730, cfg.Data.HistoryDays)

	// Second load reads the template back; values must still validate
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Strategy.BuyThreshold)
	assert.NotEmpty(t, cfg.Data.CachePath)
	assert.NotEmpty(t, cfg.Storage.DatabasePath)
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	override := `
[strategy]
buy_threshold = 8.0
sell_threshold = 2.5
universe = ["AAPL", "MSFT"]

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(override), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8.0, cfg.Strategy.BuyThreshold)
	assert.Equal(t, 2.5, cfg.Strategy.SellThreshold)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Strategy.Universe)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults
	assert.Equal(t, 0.20, cfg.Strategy.PositionSize)
	assert.Equal(t, 730, cfg.Data.HistoryDays)
}

func TestLoadRejectsInvalidFileValues(t *testing.T) {
	dir := t.TempDir()
	bad := `
[strategy]
buy_threshold = 2.0
sell_threshold = 6.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(bad), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANALYZER_DB_PATH", "/tmp/override.db")
	t.Setenv("ANALYZER_CACHE_PATH", "/tmp/cache-override.db")
	t.Setenv("ANALYZER_LOG_LEVEL", "warn")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token123")
	t.Setenv("TELEGRAM_CHAT_ID", "chat456")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "/tmp/cache-override.db", cfg.Data.CachePath)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "token123", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, "chat456", cfg.Notifications.Telegram.ChatID)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Data.HistoryDays = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Notifications.Telegram.Enabled = true
	assert.Error(t, cfg.Validate())
}
