package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"market-analyzer/internal/models"
	"market-analyzer/internal/trading"
)

func newMonitorCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Paper-trade the strategy against the latest market data",
	}
	cmd.AddCommand(newMonitorAnalyzeCmd(app))
	cmd.AddCommand(newMonitorExecuteCmd(app))
	cmd.AddCommand(newMonitorWatchCmd(app))
	return cmd
}

func newMonitorAnalyzeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze NAME",
		Short: "Produce pending signals without executing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := app.newMonitor()
			if err != nil {
				return err
			}
			signals, err := monitor.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if app.Notifier != nil && len(signals) > 0 {
				if err := app.Notifier.SendSignals(cmd.Context(), args[0], signals); err != nil {
					app.Logger.Warn().Err(err).Msg("Signal notification failed")
				}
			}

			if jsonOutput(cmd) {
				return printJSON(signals)
			}
			renderSignals(signals)
			return nil
		},
	}
}

func newMonitorExecuteCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "execute NAME [SYMBOL]",
		Short: "Execute pending signals against the portfolio",
		Long: `Execute re-analyzes the portfolio and applies pending signals: all of
them with --all, or only the named symbol's signal.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) < 2 {
				return fmt.Errorf("name a symbol or pass --all")
			}
			monitor, err := app.newMonitor()
			if err != nil {
				return err
			}
			signals, err := monitor.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			executed := 0
			for _, sig := range signals {
				if !all && !strings.EqualFold(sig.Symbol, args[1]) {
					continue
				}
				result, err := monitor.Execute(cmd.Context(), args[0], sig)
				if err != nil {
					app.Logger.Warn().Str("symbol", sig.Symbol).Err(err).Msg("Signal execution failed")
					continue
				}
				fmt.Println(result)
				executed++
			}
			if executed == 0 {
				fmt.Println("No matching pending signals")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "execute every pending signal")
	return cmd
}

func newMonitorWatchCmd(app *App) *cobra.Command {
	var schedule string
	var execute bool

	cmd := &cobra.Command{
		Use:   "watch NAME",
		Short: "Run the monitor on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := app.newMonitor()
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = app.Config.Monitor.Schedule
			}
			name := args[0]

			c := cron.New()
			_, err = c.AddFunc(schedule, func() {
				ctx := cmd.Context()
				signals, err := monitor.Analyze(ctx, name)
				if err != nil {
					app.Logger.Error().Err(err).Msg("Scheduled analysis failed")
					return
				}
				app.Logger.Info().Int("signals", len(signals)).Msg("Scheduled analysis complete")

				if app.Notifier != nil && len(signals) > 0 {
					if err := app.Notifier.SendSignals(ctx, name, signals); err != nil {
						app.Logger.Warn().Err(err).Msg("Signal notification failed")
					}
				}
				if !execute {
					return
				}
				for _, sig := range signals {
					result, err := monitor.Execute(ctx, name, sig)
					if err != nil {
						app.Logger.Warn().Str("symbol", sig.Symbol).Err(err).Msg("Signal execution failed")
						continue
					}
					app.Logger.Info().Str("result", result).Msg("Signal executed")
				}
			})
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}

			c.Start()
			defer c.Stop()
			fmt.Printf("Watching %q on schedule %q, Ctrl-C to stop\n", name, schedule)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default from config)")
	cmd.Flags().BoolVar(&execute, "execute", false, "execute signals instead of only alerting")
	return cmd
}

func (app *App) newMonitor() (*trading.Monitor, error) {
	if app.Store == nil || app.Cache == nil {
		return nil, fmt.Errorf("portfolio store or price cache unavailable")
	}
	return trading.NewMonitor(app.Store, app.Cache, app.Logger), nil
}

func renderSignals(signals []trading.TradeSignal) {
	if len(signals) == 0 {
		fmt.Println("No pending signals")
		return
	}
	table := newTable("Action", "Symbol", "Price", "Score", "Reason", "Shares", "PnL %")
	for _, sig := range signals {
		shares, pnl := "-", "-"
		if sig.Action == models.ActionSell {
			shares = fmt.Sprintf("%d", sig.Shares)
			pnl = pct(sig.PnLPct)
		}
		table.Append(
			string(sig.Action),
			sig.Symbol,
			fmt.Sprintf("%.2f", sig.Price),
			fmt.Sprintf("%.2f", sig.Score),
			sig.Reason,
			shares,
			pnl,
		)
	}
	table.Render()
}
