package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-analyzer/internal/analysis/scoring"
	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
)

// permissiveConfig buys on any defined score so entry mechanics can be
// exercised with plain fixtures. Score-based sells stay unreachable, leaving
// only the price-level exits.
func permissiveConfig() models.StrategyConfig {
	cfg := models.DefaultStrategyConfig()
	cfg.BuyThreshold = 0.5
	cfg.SellThreshold = 0.1
	cfg.StopLoss = 0.10
	cfg.TakeProfit = 0.15
	return cfg
}

func flatBars(n int, price float64) []models.PriceBar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 100000,
		}
	}
	return bars
}

// withFinalClose appends one bar at the given close to a copy of bars.
func withFinalClose(bars []models.PriceBar, close float64) []models.PriceBar {
	last := bars[len(bars)-1]
	next := models.PriceBar{
		Date:   last.Date.AddDate(0, 0, 1),
		Open:   last.Close,
		High:   close,
		Low:    last.Close,
		Close:  close,
		Volume: 100000,
	}
	if close < last.Close {
		next.High = last.Close
		next.Low = close
	}
	out := make([]models.PriceBar, len(bars))
	copy(out, bars)
	return append(out, next)
}

func newBacktester(t *testing.T, cfg models.StrategyConfig, provider marketdata.Provider) *Backtester {
	t.Helper()
	scorer, err := scoring.NewScorer(cfg)
	require.NoError(t, err)
	return NewBacktester(scorer, provider, zerolog.Nop())
}

func backtestRange(bars []models.PriceBar) (time.Time, time.Time) {
	return bars[0].Date, bars[len(bars)-1].Date
}

func TestBacktestFlatSeriesNoTrades(t *testing.T) {
	provider := marketdata.NewStatic()
	bars := flatBars(300, 100)
	provider.SetPrices("FLAT", bars)

	b := newBacktester(t, models.DefaultStrategyConfig(), provider)
	start, end := backtestRange(bars)
	result, err := b.Run(context.Background(), "FLAT", start, end, 10000)
	require.NoError(t, err)

	// A flat tape scores HOLD, never enough for an entry
	assert.Equal(t, 0, result.NumTrades)
	assert.Equal(t, 10000.0, result.FinalCapital)
	assert.Equal(t, 0.0, result.TotalReturnPct)
	assert.Equal(t, 0.0, result.BuyHoldReturnPct)
}

func TestBacktestTakeProfitExit(t *testing.T) {
	provider := marketdata.NewStatic()
	bars := withFinalClose(flatBars(201, 100), 120)
	provider.SetPrices("TP", bars)

	b := newBacktester(t, permissiveConfig(), provider)
	start, end := backtestRange(bars)
	result, err := b.Run(context.Background(), "TP", start, end, 10000)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ReasonTakeProfit, trade.Reason)
	assert.Equal(t, int64(20), trade.Shares)
	assert.Equal(t, 100.0, trade.EntryPrice)
	assert.Equal(t, 120.0, trade.ExitPrice)
	assert.Equal(t, 400.0, trade.PnL)
	assert.Equal(t, 20.0, trade.PnLPct)
	assert.Equal(t, 10400.0, result.FinalCapital)
	assert.Equal(t, 1, result.WinningTrades)
	assert.Equal(t, 100.0, result.WinRate)
	assert.InDelta(t, 20.0, result.BuyHoldReturnPct, 1e-9)
}

func TestBacktestStopLossExit(t *testing.T) {
	provider := marketdata.NewStatic()
	bars := withFinalClose(flatBars(201, 100), 90)
	provider.SetPrices("SL", bars)

	b := newBacktester(t, permissiveConfig(), provider)
	start, end := backtestRange(bars)
	result, err := b.Run(context.Background(), "SL", start, end, 10000)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ReasonStopLoss, trade.Reason)
	// Exiting at the stop price realizes exactly the configured loss
	assert.Equal(t, -10.0, trade.PnLPct)
	assert.Equal(t, -200.0, trade.PnL)
	assert.Equal(t, 9800.0, result.FinalCapital)
	assert.Equal(t, 1, result.LosingTrades)
	assert.Equal(t, 0, result.WinningTrades)
}

func TestBacktestEndOfPeriodLiquidation(t *testing.T) {
	provider := marketdata.NewStatic()
	bars := flatBars(210, 100)
	provider.SetPrices("EOP", bars)

	b := newBacktester(t, permissiveConfig(), provider)
	start, end := backtestRange(bars)
	result, err := b.Run(context.Background(), "EOP", start, end, 10000)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ReasonEndOfPeriod, trade.Reason)
	assert.Equal(t, bars[len(bars)-1].Date, trade.ExitDate)
	assert.Equal(t, 0.0, trade.PnL)
	assert.Equal(t, 10000.0, result.FinalCapital)
}

func TestBacktestInsufficientHistory(t *testing.T) {
	provider := marketdata.NewStatic()
	bars := flatBars(150, 100)
	provider.SetPrices("SHORT", bars)

	b := newBacktester(t, permissiveConfig(), provider)
	start, end := backtestRange(bars)
	_, err := b.Run(context.Background(), "SHORT", start, end, 10000)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientHistory))
}

func TestBacktestRejectsNonPositiveCapital(t *testing.T) {
	provider := marketdata.NewStatic()
	b := newBacktester(t, permissiveConfig(), provider)
	_, err := b.Run(context.Background(), "X", time.Now().AddDate(-1, 0, 0), time.Now(), 0)
	assert.Error(t, err)
}

func TestEvaluateExitPriority(t *testing.T) {
	pos, err := models.NewPosition("pf", "AAA", time.Now(), 100, 10, 0.10, 0.15)
	require.NoError(t, err)

	neverScored := func() (float64, bool) {
		t.Fatal("price-level exit must not spend a scoring pass")
		return 0, false
	}

	d := evaluateExit(pos, 90, 3, neverScored)
	assert.True(t, d.exit)
	assert.Equal(t, models.ReasonStopLoss, d.reason)

	d = evaluateExit(pos, 115.5, 3, neverScored)
	assert.True(t, d.exit)
	assert.Equal(t, models.ReasonTakeProfit, d.reason)

	d = evaluateExit(pos, 100, 3, func() (float64, bool) { return 2.5, true })
	assert.True(t, d.exit)
	assert.Equal(t, models.ReasonSellSignal, d.reason)

	d = evaluateExit(pos, 100, 3, func() (float64, bool) { return 5, true })
	assert.False(t, d.exit)

	// A failed scoring pass holds the position rather than force an exit
	d = evaluateExit(pos, 100, 3, func() (float64, bool) { return 0, false })
	assert.False(t, d.exit)
}

func TestSizeEntry(t *testing.T) {
	cfg := models.DefaultStrategyConfig() // 20% sizing, 100 minimum notional

	assert.Equal(t, int64(20), sizeEntry(10000, 100, cfg))
	assert.Equal(t, int64(4), sizeEntry(10000, 450, cfg))
	// Under the minimum notional the entry is skipped outright
	assert.Equal(t, int64(0), sizeEntry(400, 10, cfg))
	// A price above the allocation rounds down to zero shares
	assert.Equal(t, int64(0), sizeEntry(10000, 2500, cfg))
	assert.Equal(t, int64(0), sizeEntry(10000, 0, cfg))
	assert.Equal(t, int64(0), sizeEntry(10000, -5, cfg))
}
