package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-analyzer/internal/analysis/scoring"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
)

// analysisReport is the JSON shape of one symbol analysis.
type analysisReport struct {
	Symbol       string                    `json:"symbol"`
	Timestamp    time.Time                 `json:"timestamp"`
	CurrentPrice float64                   `json:"current_price"`
	Scores       models.CompositeScore     `json:"scores"`
	Signal       models.Signal             `json:"signal"`
	Targets      models.PriceTargets       `json:"targets"`
	Indicators   *models.IndicatorSnapshot `json:"indicators"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var historyDays int

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL...",
		Short: "Score one or more symbols and print signals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cache == nil {
				return fmt.Errorf("price cache unavailable")
			}
			scorer, err := scoring.NewScorer(app.Config.Strategy)
			if err != nil {
				return err
			}
			if historyDays <= 0 {
				historyDays = app.Config.Data.HistoryDays
			}

			var reports []analysisReport
			for _, symbol := range args {
				report, err := analyzeSymbol(cmd, app, scorer, symbol, historyDays)
				if err != nil {
					app.Logger.Warn().Str("symbol", symbol).Err(err).Msg("Analysis failed")
					continue
				}
				reports = append(reports, *report)
			}
			if len(reports) == 0 {
				return fmt.Errorf("no symbol could be analyzed")
			}

			if jsonOutput(cmd) {
				return printJSON(reports)
			}
			renderAnalysis(reports)
			return nil
		},
	}

	cmd.Flags().IntVar(&historyDays, "days", 0, "days of history to score (default from config)")
	return cmd
}

func analyzeSymbol(cmd *cobra.Command, app *App, scorer *scoring.Scorer, symbol string, historyDays int) (*analysisReport, error) {
	ctx := cmd.Context()
	end := marketdata.Day(time.Now().UTC())
	start := end.AddDate(0, 0, -historyDays)

	bars, err := app.Cache.GetPrices(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}
	fundamentals, err := app.Cache.GetFundamentals(ctx, symbol)
	if err != nil {
		fundamentals = nil
	}

	composite, indicators := scorer.Score(bars, fundamentals)
	price := bars[len(bars)-1].Close
	return &analysisReport{
		Symbol:       symbol,
		Timestamp:    time.Now().UTC(),
		CurrentPrice: price,
		Scores:       composite,
		Signal:       scorer.SignalFor(composite.Total),
		Targets:      scorer.Targets(price, composite.Total),
		Indicators:   indicators,
	}, nil
}

func renderAnalysis(reports []analysisReport) {
	table := newTable("Symbol", "Price", "Total", "Tech", "Fund", "Sent", "Signal", "Target", "Stop")
	for _, r := range reports {
		table.Append(
			r.Symbol,
			money(r.CurrentPrice),
			fmt.Sprintf("%.2f", r.Scores.Total),
			fmt.Sprintf("%.2f", r.Scores.Technical),
			fmt.Sprintf("%.2f", r.Scores.Fundamental),
			fmt.Sprintf("%.2f", r.Scores.Sentiment),
			string(r.Signal),
			money(r.Targets.Target),
			money(r.Targets.StopLoss),
		)
	}
	table.Render()
}
