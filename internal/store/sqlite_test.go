package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/models"
)

var day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestPortfolio(t *testing.T, st *SQLiteStore, name string) *models.Portfolio {
	t.Helper()
	p := models.NewPortfolio(name, 10000, day1, models.DefaultStrategyConfig())
	require.NoError(t, st.CreatePortfolio(context.Background(), p))
	return p
}

func TestPortfolioRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	got, err := st.GetPortfolio(ctx, "growth")
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.InitialCapital, got.InitialCapital)
	assert.Equal(t, p.Cash, got.Cash)
	assert.True(t, got.StartDate.Equal(day1))
	assert.True(t, got.EndDate.IsZero())
	assert.Equal(t, p.Config, got.Config)
}

func TestGetPortfolioNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetPortfolio(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrPortfolioNotFound))
}

func TestCreatePortfolioDuplicateNameFails(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	newTestPortfolio(t, st, "dup")

	other := models.NewPortfolio("dup", 5000, day1, models.DefaultStrategyConfig())
	assert.Error(t, st.CreatePortfolio(ctx, other))
}

func TestUpdatePortfolioPersistsCashAndEndDate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	p.Cash = 7777.5
	p.EndDate = day1.AddDate(0, 1, 0)
	require.NoError(t, st.UpdatePortfolio(ctx, p))

	got, err := st.GetPortfolio(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, 7777.5, got.Cash)
	assert.True(t, got.EndDate.Equal(p.EndDate))

	ghost := models.NewPortfolio("ghost", 1, day1, models.DefaultStrategyConfig())
	assert.True(t, errors.Is(st.UpdatePortfolio(ctx, ghost), apperrors.ErrPortfolioNotFound))
}

func TestListPortfolios(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	newTestPortfolio(t, st, "alpha")
	newTestPortfolio(t, st, "beta")

	all, err := st.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPositionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	pos, err := models.NewPosition(p.ID, "AAPL", day1, 150, 10, 0.05, 0.15)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, pos))

	got, err := st.GetOpenPosition(ctx, p.ID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, pos.ID, got.ID)
	assert.Equal(t, pos.Shares, got.Shares)
	assert.Equal(t, pos.CapitalInvested, got.CapitalInvested)
	assert.Equal(t, models.PositionOpen, got.Status)

	// Closing and re-saving moves it out of the open set
	require.NoError(t, pos.Close(day1.AddDate(0, 0, 5), 160, models.ReasonSellSignal))
	require.NoError(t, st.SavePosition(ctx, pos))

	_, err = st.GetOpenPosition(ctx, p.ID, "AAPL")
	assert.True(t, errors.Is(err, apperrors.ErrPositionNotFound))

	closed, err := st.ListPositions(ctx, p.ID, models.PositionClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, models.ReasonSellSignal, closed[0].ExitReason)
	assert.Equal(t, 100.0, closed[0].PnL)
	assert.True(t, closed[0].ExitDate.Equal(day1.AddDate(0, 0, 5)))

	all, err := st.ListPositions(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSavePositionRejectsInvalidAccounting(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	pos, err := models.NewPosition(p.ID, "AAPL", day1, 150, 10, 0.05, 0.15)
	require.NoError(t, err)
	pos.CapitalInvested = 1 // breaks shares * entry price
	assert.Error(t, st.SavePosition(ctx, pos))
}

func TestOnePositionPerSymbolEnforced(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	first, err := models.NewPosition(p.ID, "AAPL", day1, 150, 10, 0.05, 0.15)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, first))

	second, err := models.NewPosition(p.ID, "AAPL", day1.AddDate(0, 0, 1), 155, 5, 0.05, 0.15)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, second))

	// The open-position index keeps exactly one open row per symbol
	open, err := st.ListPositions(ctx, p.ID, models.PositionOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}

func TestSnapshotUpsertAndLatest(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	_, err := st.LatestSnapshot(ctx, p.ID)
	assert.True(t, errors.Is(err, apperrors.ErrDataUnavailable))

	for i := 0; i < 3; i++ {
		require.NoError(t, st.SaveSnapshot(ctx, &models.Snapshot{
			PortfolioID: p.ID,
			Date:        day1.AddDate(0, 0, i),
			TotalValue:  10000 + float64(i)*100,
			Cash:        8000,
			NumPositions: 1,
		}))
	}

	// Re-writing a day replaces its row instead of appending
	require.NoError(t, st.SaveSnapshot(ctx, &models.Snapshot{
		PortfolioID: p.ID,
		Date:        day1.AddDate(0, 0, 2),
		TotalValue:  9500,
		Cash:        8000,
	}))

	snapshots, err := st.ListSnapshots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 9500.0, snapshots[2].TotalValue)

	latest, err := st.LatestSnapshot(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, latest.Date.Equal(day1.AddDate(0, 0, 2)))
	assert.Equal(t, 9500.0, latest.TotalValue)
}

func TestTradeLogPreservesExecutionOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	// Two trades on the same date must come back in append order
	for i, symbol := range []string{"AAPL", "MSFT", "AAPL"} {
		require.NoError(t, st.AppendTrade(ctx, &models.Trade{
			ID:          symbol + "-" + time.Now().Format("150405") + "-" + string(rune('a'+i)),
			PortfolioID: p.ID,
			Date:        day1,
			Symbol:      symbol,
			Action:      models.ActionBuy,
			Price:       100,
			Shares:      10,
			Value:       1000,
			Score:       7.5,
			Reason:      models.ReasonHighScore,
		}))
	}

	trades, err := st.ListTrades(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, "MSFT", trades[1].Symbol)
	assert.Equal(t, "AAPL", trades[2].Symbol)
}

func TestListTradesSince(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "growth")

	for i := 0; i < 4; i++ {
		require.NoError(t, st.AppendTrade(ctx, &models.Trade{
			ID:          string(rune('a' + i)),
			PortfolioID: p.ID,
			Date:        day1.AddDate(0, 0, i),
			Symbol:      "AAPL",
			Action:      models.ActionBuy,
			Price:       100,
			Shares:      1,
			Value:       100,
		}))
	}

	recent, err := st.ListTradesSince(ctx, p.ID, day1.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestDeletePortfolioCascades(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPortfolio(t, st, "doomed")

	pos, err := models.NewPosition(p.ID, "AAPL", day1, 150, 10, 0.05, 0.15)
	require.NoError(t, err)
	require.NoError(t, st.SavePosition(ctx, pos))
	require.NoError(t, st.SaveSnapshot(ctx, &models.Snapshot{PortfolioID: p.ID, Date: day1, TotalValue: 10000}))
	require.NoError(t, st.AppendTrade(ctx, &models.Trade{
		ID: "t1", PortfolioID: p.ID, Date: day1, Symbol: "AAPL",
		Action: models.ActionBuy, Price: 150, Shares: 10, Value: 1500,
	}))

	require.NoError(t, st.DeletePortfolio(ctx, "doomed"))

	_, err = st.GetPortfolio(ctx, "doomed")
	assert.True(t, errors.Is(err, apperrors.ErrPortfolioNotFound))
	positions, err := st.ListPositions(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Empty(t, positions)
	trades, err := st.ListTrades(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)
	snapshots, err := st.ListSnapshots(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	assert.True(t, errors.Is(st.DeletePortfolio(ctx, "doomed"), apperrors.ErrPortfolioNotFound))
}
