// Package cli provides the command-line interface for the analyzer.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"market-analyzer/internal/config"
	"market-analyzer/internal/logging"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/notify"
	"market-analyzer/internal/store"
)

// Version information
const Version = "2.1.0"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.PortfolioStore
	Cache    *marketdata.Cache
	Notifier notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	cache, err := marketdata.NewCache(cfg.Data.CachePath,
		marketdata.NewYahooFetcher(time.Duration(cfg.Data.RequestTimeout)*time.Second), logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize price cache, data commands unavailable")
	} else {
		app.Cache = cache
	}

	portfolioStore, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, portfolio commands unavailable")
	} else {
		app.Store = portfolioStore
	}

	if cfg.Notifications.Telegram.Enabled {
		app.Notifier = notify.NewTelegram(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
		logger.Debug().Msg("Telegram notifier initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "analyzer",
		Short: "Market analyzer - score stocks and simulate trading with virtual capital",
		Long: `Market analyzer scores stocks from technical, fundamental, and sentiment
signals, converts the composite score into a BUY/HOLD/SELL decision, and
simulates the financial outcome of mechanically following those decisions
over historical or live price data.

Use 'analyzer help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/market-analyzer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newMonitorCmd(app))
	rootCmd.AddCommand(newCacheCmd(app))

	return rootCmd
}
