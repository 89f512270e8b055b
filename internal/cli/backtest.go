package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-analyzer/internal/analysis/scoring"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/trading"
)

func newBacktestCmd(app *App) *cobra.Command {
	var (
		startStr string
		endStr   string
		capital  float64
	)

	cmd := &cobra.Command{
		Use:   "backtest SYMBOL",
		Short: "Replay the strategy over one symbol's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cache == nil {
				return fmt.Errorf("price cache unavailable")
			}
			scorer, err := scoring.NewScorer(app.Config.Strategy)
			if err != nil {
				return err
			}

			end := marketdata.Day(time.Now().UTC())
			if endStr != "" {
				if end, err = parseDate(endStr); err != nil {
					return err
				}
			}
			start := end.AddDate(-2, 0, 0)
			if startStr != "" {
				if start, err = parseDate(startStr); err != nil {
					return err
				}
			}

			backtester := trading.NewBacktester(scorer, app.Cache, app.Logger)
			result, err := backtester.Run(cmd.Context(), args[0], start, end, capital)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(result)
			}
			renderBacktest(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "start date YYYY-MM-DD (default: 2 years before end)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date YYYY-MM-DD (default: today)")
	cmd.Flags().Float64Var(&capital, "capital", 10000, "starting capital")
	return cmd
}

func renderBacktest(r *trading.BacktestResult) {
	fmt.Printf("Backtest %s  %s -> %s\n", r.Symbol,
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	fmt.Printf("Capital: %s -> %s (%s)\n", money(r.InitialCapital), money(r.FinalCapital), pct(r.TotalReturnPct))
	fmt.Printf("Trades: %d (%d wins / %d losses, %.1f%% win rate)\n",
		r.NumTrades, r.WinningTrades, r.LosingTrades, r.WinRate)
	fmt.Printf("Avg win: %s  Avg loss: %s\n", money(r.AvgWin), money(r.AvgLoss))
	fmt.Printf("Buy & hold: %s  Strategy vs buy & hold: %s\n\n", pct(r.BuyHoldReturnPct), pct(r.VsBuyHold))

	if len(r.Trades) == 0 {
		return
	}
	table := newTable("Entry", "Exit", "Entry $", "Exit $", "Shares", "PnL", "PnL %", "Reason")
	for _, t := range r.Trades {
		table.Append(
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%d", t.Shares),
			money(t.PnL),
			pct(t.PnLPct),
			t.Reason,
		)
	}
	table.Render()
}
