package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
	"market-analyzer/internal/trading"
)

func newPortfolioCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Create and run multi-symbol portfolio simulations",
	}
	cmd.AddCommand(newPortfolioCreateCmd(app))
	cmd.AddCommand(newPortfolioRunCmd(app))
	cmd.AddCommand(newPortfolioStatusCmd(app))
	cmd.AddCommand(newPortfolioListCmd(app))
	cmd.AddCommand(newPortfolioDeleteCmd(app))
	return cmd
}

func newPortfolioCreateCmd(app *App) *cobra.Command {
	var (
		capital  float64
		startStr string
		universe []string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new simulated portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("portfolio store unavailable")
			}
			start, err := parseDate(startStr)
			if err != nil {
				return err
			}
			cfg := app.Config.Strategy
			if len(universe) > 0 {
				cfg.Universe = universe
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			p := models.NewPortfolio(args[0], capital, start, cfg)
			if err := app.Store.CreatePortfolio(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Printf("Created portfolio %q with %s starting %s\n",
				p.Name, money(p.InitialCapital), start.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 10000, "initial capital")
	cmd.Flags().StringVar(&startStr, "start", "", "simulation start date YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&universe, "universe", nil, "symbols to trade (default from config)")
	cmd.MarkFlagRequired("start")
	return cmd
}

func newPortfolioRunCmd(app *App) *cobra.Command {
	var endStr string

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run the day-stepping simulation for a portfolio",
		Long: `Run replays the portfolio's universe day by day from its start date,
executing entries and exits against one shared cash pool and recording a
daily snapshot. Re-running over an already simulated range replays the
trade logic from current state and can duplicate trades.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil || app.Cache == nil {
				return fmt.Errorf("portfolio store or price cache unavailable")
			}
			end := marketdata.Day(time.Now().UTC())
			var err error
			if endStr != "" {
				if end, err = parseDate(endStr); err != nil {
					return err
				}
			}

			p, err := app.Store.GetPortfolio(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, failed := app.Cache.Preload(cmd.Context(), p.Config.Universe, p.StartDate.AddDate(-2, 0, 0), end); len(failed) > 0 {
				app.Logger.Warn().Strs("symbols", failed).Msg("Preload failed for some symbols")
			}

			sim := trading.NewSimulator(app.Store, app.Cache, app.Logger)
			result, err := sim.Run(cmd.Context(), args[0], end)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(result)
			}
			fmt.Printf("Simulation complete: %d trades, final value %s (%s)\n",
				result.TradesMade, money(result.FinalValue), pct(result.ReturnPct))
			return nil
		},
	}

	cmd.Flags().StringVar(&endStr, "end", "", "simulation end date YYYY-MM-DD (default: today)")
	return cmd
}

func newPortfolioStatusCmd(app *App) *cobra.Command {
	var trades int

	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show portfolio value, open positions, and recent trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil || app.Cache == nil {
				return fmt.Errorf("portfolio store or price cache unavailable")
			}
			monitor := trading.NewMonitor(app.Store, app.Cache, app.Logger)
			status, err := monitor.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(status)
			}

			p := status.Portfolio
			fmt.Printf("Portfolio %q\n", p.Name)
			fmt.Printf("Cash: %s  Positions: %s  Total: %s (%s)\n\n",
				money(p.Cash), money(status.PositionsValue), money(status.TotalValue), pct(status.ReturnPct))

			if len(status.Positions) > 0 {
				table := newTable("Symbol", "Shares", "Entry", "Price", "Value", "PnL %", "Stop", "Take")
				for _, v := range status.Positions {
					table.Append(
						v.Position.Symbol,
						fmt.Sprintf("%d", v.Position.Shares),
						fmt.Sprintf("%.2f", v.Position.EntryPrice),
						fmt.Sprintf("%.2f", v.Price),
						money(v.Value),
						pct(v.PnLPct),
						fmt.Sprintf("%.2f", v.Position.StopLossPrice),
						fmt.Sprintf("%.2f", v.Position.TakeProfitPrice),
					)
				}
				table.Render()
			}

			if trades > 0 {
				all, err := app.Store.ListTrades(cmd.Context(), p.ID)
				if err != nil {
					return err
				}
				if len(all) > trades {
					all = all[len(all)-trades:]
				}
				if len(all) > 0 {
					fmt.Println()
					table := newTable("Date", "Action", "Symbol", "Price", "Shares", "Value", "Score", "Reason")
					for _, t := range all {
						table.Append(
							t.Date.Format("2006-01-02"),
							string(t.Action),
							t.Symbol,
							fmt.Sprintf("%.2f", t.Price),
							fmt.Sprintf("%d", t.Shares),
							money(t.Value),
							fmt.Sprintf("%.2f", t.Score),
							t.Reason,
						)
					}
					table.Render()
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&trades, "trades", 10, "number of recent trades to show (0 to hide)")
	return cmd
}

func newPortfolioListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("portfolio store unavailable")
			}
			portfolios, err := app.Store.ListPortfolios(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(portfolios)
			}
			if len(portfolios) == 0 {
				fmt.Println("No portfolios")
				return nil
			}

			table := newTable("Name", "Initial", "Cash", "Start", "End", "Universe")
			for _, p := range portfolios {
				end := "-"
				if !p.EndDate.IsZero() {
					end = p.EndDate.Format("2006-01-02")
				}
				table.Append(
					p.Name,
					money(p.InitialCapital),
					money(p.Cash),
					p.StartDate.Format("2006-01-02"),
					end,
					fmt.Sprintf("%d symbols", len(p.Config.Universe)),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newPortfolioDeleteCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a portfolio and all of its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("portfolio store unavailable")
			}
			if !force {
				return fmt.Errorf("refusing to delete %q without --force", args[0])
			}
			if err := app.Store.DeletePortfolio(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted portfolio %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
