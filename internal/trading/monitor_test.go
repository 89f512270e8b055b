package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
	"market-analyzer/internal/store"
)

// recentBars builds n flat bars ending today so the monitor's latest-bar
// lookup finds them.
func recentBars(n int, close float64) []models.PriceBar {
	today := marketdata.Day(time.Now().UTC())
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   today.AddDate(0, 0, i-n+1),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 100000,
		}
	}
	return bars
}

func newMonitorFixture(t *testing.T, capital float64, cfg models.StrategyConfig) (*Monitor, store.PortfolioStore, *marketdata.Static, *models.Portfolio) {
	t.Helper()
	st := newTestStore(t)
	provider := marketdata.NewStatic()
	p := models.NewPortfolio("live", capital, jan1, cfg)
	require.NoError(t, st.CreatePortfolio(context.Background(), p))
	return NewMonitor(st, provider, zerolog.Nop()), st, provider, p
}

func TestMonitorAnalyzeProducesBuySignal(t *testing.T) {
	cfg := permissiveConfig()
	cfg.Universe = []string{"AAA"}
	monitor, _, provider, p := newMonitorFixture(t, 10000, cfg)
	provider.SetPrices("AAA", recentBars(30, 100))

	signals, err := monitor.Analyze(context.Background(), p.Name)
	require.NoError(t, err)

	require.Len(t, signals, 1)
	assert.Equal(t, "AAA", signals[0].Symbol)
	assert.Equal(t, models.ActionBuy, signals[0].Action)
	assert.Equal(t, models.ReasonHighScore, signals[0].Reason)
	assert.Equal(t, 100.0, signals[0].Price)
}

func TestMonitorAnalyzeHighThresholdStaysQuiet(t *testing.T) {
	cfg := models.DefaultStrategyConfig()
	cfg.Universe = []string{"AAA"}
	monitor, _, provider, p := newMonitorFixture(t, 10000, cfg)
	provider.SetPrices("AAA", recentBars(30, 100))

	signals, err := monitor.Analyze(context.Background(), p.Name)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMonitorExecuteBuyThenSell(t *testing.T) {
	ctx := context.Background()
	cfg := permissiveConfig()
	cfg.Universe = []string{"AAA"}
	monitor, st, provider, p := newMonitorFixture(t, 10000, cfg)
	provider.SetPrices("AAA", recentBars(30, 100))

	signals, err := monitor.Analyze(ctx, p.Name)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	result, err := monitor.Execute(ctx, p.Name, signals[0])
	require.NoError(t, err)
	assert.Contains(t, result, "BUY 20 AAA")

	updated, err := st.GetPortfolio(ctx, p.Name)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, updated.Cash)

	pos, err := st.GetOpenPosition(ctx, p.ID, "AAA")
	require.NoError(t, err)
	assert.Equal(t, int64(20), pos.Shares)
	assert.Equal(t, pos.CapitalInvested, float64(pos.Shares)*pos.EntryPrice)

	// Buying a held symbol again is rejected
	_, err = monitor.Execute(ctx, p.Name, signals[0])
	assert.Error(t, err)

	// Exit at the stop: the position closes and the proceeds come back
	_, err = monitor.Execute(ctx, p.Name, TradeSignal{
		Symbol: "AAA",
		Action: models.ActionSell,
		Reason: models.ReasonStopLoss,
		Price:  85,
	})
	require.NoError(t, err)

	updated, err = st.GetPortfolio(ctx, p.Name)
	require.NoError(t, err)
	assert.Equal(t, 8000.0+20*85, updated.Cash)

	_, err = st.GetOpenPosition(ctx, p.ID, "AAA")
	assert.True(t, errors.Is(err, apperrors.ErrPositionNotFound))

	trades, err := st.ListTrades(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, models.ActionBuy, trades[0].Action)
	assert.Equal(t, models.ActionSell, trades[1].Action)
	assert.Equal(t, models.ReasonStopLoss, trades[1].Reason)
}

func TestMonitorExecuteBuySkipsUnderMinNotional(t *testing.T) {
	ctx := context.Background()
	cfg := permissiveConfig()
	cfg.Universe = []string{"AAA"}
	monitor, st, provider, p := newMonitorFixture(t, 400, cfg)
	provider.SetPrices("AAA", recentBars(30, 100))

	result, err := monitor.Execute(ctx, p.Name, TradeSignal{
		Symbol: "AAA",
		Action: models.ActionBuy,
		Reason: models.ReasonHighScore,
		Price:  100,
	})
	require.NoError(t, err)
	assert.Contains(t, result, "skipped")

	trades, err := st.ListTrades(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestMonitorAnalyzeStopLossOnHeldPosition(t *testing.T) {
	ctx := context.Background()
	cfg := permissiveConfig()
	cfg.Universe = []string{"AAA"}
	monitor, st, provider, p := newMonitorFixture(t, 10000, cfg)
	provider.SetPrices("AAA", recentBars(30, 100))

	// Entered at 120 with a 10% stop at 108, now trading at 100
	pos, err := models.NewPosition(p.ID, "AAA", jan1, 120, 10, cfg.StopLoss, cfg.TakeProfit)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, pos))

	signals, err := monitor.Analyze(ctx, p.Name)
	require.NoError(t, err)

	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, models.ActionSell, sig.Action)
	assert.Equal(t, models.ReasonStopLoss, sig.Reason)
	assert.Equal(t, int64(10), sig.Shares)
	assert.InDelta(t, -16.67, sig.PnLPct, 0.01)
}

func TestMonitorStatusValuesPositions(t *testing.T) {
	ctx := context.Background()
	cfg := permissiveConfig()
	cfg.Universe = []string{"AAA"}
	monitor, st, provider, p := newMonitorFixture(t, 10000, cfg)
	provider.SetPrices("AAA", recentBars(30, 110))

	pos, err := models.NewPosition(p.ID, "AAA", jan1, 100, 20, cfg.StopLoss, cfg.TakeProfit)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, pos))
	p.Cash = 8000
	require.NoError(t, st.UpdatePortfolio(ctx, p))

	status, err := monitor.Status(ctx, p.Name)
	require.NoError(t, err)

	require.Len(t, status.Positions, 1)
	assert.Equal(t, 110.0, status.Positions[0].Price)
	assert.Equal(t, 2200.0, status.Positions[0].Value)
	assert.InDelta(t, 10.0, status.Positions[0].PnLPct, 1e-9)
	assert.Equal(t, 2200.0, status.PositionsValue)
	assert.Equal(t, 10200.0, status.TotalValue)
	assert.InDelta(t, 2.0, status.ReturnPct, 1e-9)
}
