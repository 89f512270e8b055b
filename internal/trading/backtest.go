package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-analyzer/internal/analysis/scoring"
	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
)

// warmupBars is the history consumed before the first tradeable bar, so the
// slow indicators have a fully formed window from day one.
const warmupBars = 200

// Backtester replays one symbol's history bar by bar against the scoring
// engine, executing a single-position strategy with risk limits.
type Backtester struct {
	scorer   *scoring.Scorer
	provider marketdata.Provider
	logger   zerolog.Logger
}

// NewBacktester creates a backtester using the given scorer and data source.
func NewBacktester(scorer *scoring.Scorer, provider marketdata.Provider, logger zerolog.Logger) *Backtester {
	return &Backtester{scorer: scorer, provider: provider, logger: logger}
}

// ClosedTrade is one completed round trip in a backtest.
type ClosedTrade struct {
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     int64
	PnL        float64
	PnLPct     float64
	Reason     string
}

// BacktestResult aggregates a completed backtest run.
type BacktestResult struct {
	Symbol           string
	Start            time.Time
	End              time.Time
	InitialCapital   float64
	FinalCapital     float64
	TotalReturn      float64
	TotalReturnPct   float64
	NumTrades        int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgWin           float64
	AvgLoss          float64
	BuyHoldReturnPct float64
	VsBuyHold        float64
	Trades           []ClosedTrade
}

// Run backtests one symbol over [start, end] with the given starting
// capital. Scoring at every bar sees only history up to and including that
// bar. Fundamentals have no history, so the current snapshot is held
// constant across the whole replay.
func (b *Backtester) Run(ctx context.Context, symbol string, start, end time.Time, initialCapital float64) (*BacktestResult, error) {
	if initialCapital <= 0 {
		return nil, apperrors.NewConfigError("initial_capital", "must be positive")
	}

	bars, err := b.provider.GetPrices(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) <= warmupBars {
		return nil, apperrors.Wrapf(apperrors.ErrInsufficientHistory,
			"backtest %s: need more than %d bars, got %d", symbol, warmupBars, len(bars))
	}

	fundamentals, err := b.provider.GetFundamentals(ctx, symbol)
	if err != nil {
		b.logger.Warn().Str("symbol", symbol).Err(err).Msg("No fundamentals, scoring price data only")
		fundamentals = nil
	}

	cfg := b.scorer.Config()
	capital := initialCapital
	var position *models.Position
	var trades []ClosedTrade

	for i := warmupBars; i < len(bars); i++ {
		bar := bars[i]
		window := bars[:i+1]

		if position == nil {
			composite, _ := b.scorer.Score(window, fundamentals)
			if composite.Total < cfg.BuyThreshold {
				continue
			}
			shares := int64(capital * cfg.PositionSize / bar.Close)
			if shares == 0 {
				continue
			}
			pos, err := models.NewPosition("", symbol, bar.Date, bar.Close, shares, cfg.StopLoss, cfg.TakeProfit)
			if err != nil {
				return nil, err
			}
			capital -= pos.CapitalInvested
			position = pos
			continue
		}

		scoreFn := func() (float64, bool) {
			composite, _ := b.scorer.Score(window, fundamentals)
			return composite.Total, true
		}
		decision := evaluateExit(position, bar.Close, cfg.SellThreshold, scoreFn)
		if !decision.exit {
			continue
		}
		if err := position.Close(bar.Date, bar.Close, decision.reason); err != nil {
			return nil, err
		}
		capital += position.Value(bar.Close)
		trades = append(trades, closedTrade(position))
		position = nil
	}

	// Anything still open liquidates at the final bar
	if position != nil {
		last := bars[len(bars)-1]
		if err := position.Close(last.Date, last.Close, models.ReasonEndOfPeriod); err != nil {
			return nil, err
		}
		capital += position.Value(last.Close)
		trades = append(trades, closedTrade(position))
	}

	return b.summarize(symbol, bars, initialCapital, capital, trades), nil
}

func closedTrade(pos *models.Position) ClosedTrade {
	return ClosedTrade{
		EntryDate:  pos.EntryDate,
		ExitDate:   pos.ExitDate,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  pos.ExitPrice,
		Shares:     pos.Shares,
		PnL:        pos.PnL,
		PnLPct:     pos.PnLPct,
		Reason:     pos.ExitReason,
	}
}

func (b *Backtester) summarize(symbol string, bars []models.PriceBar, initialCapital, finalCapital float64, trades []ClosedTrade) *BacktestResult {
	result := &BacktestResult{
		Symbol:         symbol,
		Start:          bars[warmupBars].Date,
		End:            bars[len(bars)-1].Date,
		InitialCapital: initialCapital,
		FinalCapital:   finalCapital,
		TotalReturn:    finalCapital - initialCapital,
		NumTrades:      len(trades),
		Trades:         trades,
	}
	result.TotalReturnPct = result.TotalReturn / initialCapital * 100

	var winSum, lossSum float64
	for _, t := range trades {
		if t.PnL > 0 {
			result.WinningTrades++
			winSum += t.PnL
		} else {
			result.LosingTrades++
			lossSum += t.PnL
		}
	}
	if len(trades) > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(len(trades)) * 100
	}
	if result.WinningTrades > 0 {
		result.AvgWin = winSum / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AvgLoss = lossSum / float64(result.LosingTrades)
	}

	// Passive baseline over the same tradeable window
	baseline := bars[warmupBars].Close
	if baseline > 0 {
		result.BuyHoldReturnPct = (bars[len(bars)-1].Close - baseline) / baseline * 100
	}
	result.VsBuyHold = result.TotalReturnPct - result.BuyHoldReturnPct

	b.logger.Info().
		Str("symbol", symbol).
		Int("trades", result.NumTrades).
		Float64("return_pct", result.TotalReturnPct).
		Float64("buy_hold_pct", result.BuyHoldReturnPct).
		Msg("Backtest complete")

	return result
}

// String renders a one-line summary for logs.
func (r *BacktestResult) String() string {
	return fmt.Sprintf("%s: %d trades, %.2f%% return (buy&hold %.2f%%)",
		r.Symbol, r.NumTrades, r.TotalReturnPct, r.BuyHoldReturnPct)
}
