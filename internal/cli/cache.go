package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-analyzer/internal/marketdata"
)

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local price cache",
	}
	cmd.AddCommand(newCachePreloadCmd(app))
	cmd.AddCommand(newCacheStatsCmd(app))
	cmd.AddCommand(newCacheClearCmd(app))
	return cmd
}

func newCachePreloadCmd(app *App) *cobra.Command {
	var (
		startStr string
		endStr   string
	)

	cmd := &cobra.Command{
		Use:   "preload [SYMBOL...]",
		Short: "Download and cache history for symbols (default: configured universe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cache == nil {
				return fmt.Errorf("price cache unavailable")
			}
			symbols := args
			if len(symbols) == 0 {
				symbols = app.Config.Strategy.Universe
			}

			end := marketdata.Day(time.Now().UTC())
			var err error
			if endStr != "" {
				if end, err = parseDate(endStr); err != nil {
					return err
				}
			}
			start := end.AddDate(0, 0, -app.Config.Data.HistoryDays)
			if startStr != "" {
				if start, err = parseDate(startStr); err != nil {
					return err
				}
			}

			success, failed := app.Cache.Preload(cmd.Context(), symbols, start, end)
			fmt.Printf("Preloaded %d/%d symbols\n", success, len(symbols))
			if len(failed) > 0 {
				fmt.Printf("Failed: %v\n", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "history start date YYYY-MM-DD")
	cmd.Flags().StringVar(&endStr, "end", "", "history end date YYYY-MM-DD (default: today)")
	return cmd
}

func newCacheStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cache == nil {
				return fmt.Errorf("price cache unavailable")
			}
			stats, err := app.Cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(stats)
			}
			fmt.Printf("Symbols: %d  Price rows: %d\n", stats.Symbols, stats.PriceRows)
			if stats.PriceRows > 0 {
				fmt.Printf("Range: %s -> %s\n", stats.OldestDay, stats.NewestDay)
			}
			return nil
		},
	}
}

func newCacheClearCmd(app *App) *cobra.Command {
	var (
		symbol    string
		olderThan int
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cache == nil {
				return fmt.Errorf("price cache unavailable")
			}
			if err := app.Cache.Clear(cmd.Context(), symbol, olderThan); err != nil {
				return err
			}
			switch {
			case symbol != "":
				fmt.Printf("Cleared cache for %s\n", symbol)
			case olderThan > 0:
				fmt.Printf("Cleared cache entries older than %d days\n", olderThan)
			default:
				fmt.Println("Cleared all cached data")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "clear one symbol only")
	cmd.Flags().IntVar(&olderThan, "older-than", 0, "clear entries cached more than N days ago")
	return cmd
}
