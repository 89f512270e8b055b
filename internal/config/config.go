// Package config provides configuration management for the analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"market-analyzer/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Strategy      models.StrategyConfig `mapstructure:"strategy"`
	Data          DataConfig            `mapstructure:"data"`
	Storage       StorageConfig         `mapstructure:"storage"`
	Logging       LoggingConfig         `mapstructure:"logging"`
	Notifications NotificationConfig    `mapstructure:"notifications"`
	Monitor       MonitorConfig         `mapstructure:"monitor"`
}

// DataConfig holds market data source configuration.
type DataConfig struct {
	CachePath      string `mapstructure:"cache_path"`
	HistoryDays    int    `mapstructure:"history_days"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
}

// StorageConfig holds portfolio database configuration.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// MonitorConfig holds live monitor configuration.
type MonitorConfig struct {
	// Schedule is a cron expression for the watch loop.
	Schedule string `mapstructure:"schedule"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/market-analyzer"
	}
	return filepath.Join(home, ".config", "market-analyzer")
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Strategy: models.DefaultStrategyConfig(),
		Data: DataConfig{
			CachePath:      filepath.Join(dir, "price_cache.db"),
			HistoryDays:    730,
			RequestTimeout: 30,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(dir, "portfolios.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Enabled: false},
		},
		Monitor: MonitorConfig{
			// Weekdays at 16:30, after US market close.
			Schedule: "30 16 * * 1-5",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template and run on defaults
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("ANALYZER_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("ANALYZER_CACHE_PATH"); v != "" {
		cfg.Data.CachePath = v
	}
	if v := os.Getenv("ANALYZER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.Data.HistoryDays <= 0 {
		return fmt.Errorf("data.history_days must be positive")
	}
	if c.Data.RequestTimeout <= 0 {
		return fmt.Errorf("data.request_timeout must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notifications enabled but bot_token or chat_id missing")
		}
	}
	return nil
}
