package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-analyzer/internal/analysis/scoring"
	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/logging"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
	"market-analyzer/internal/store"
)

// Monitor applies the entry/exit rules to the most recent bar per symbol
// against one persistent portfolio. Analyze produces pending signals
// without touching state; Execute applies one signal.
type Monitor struct {
	store    store.PortfolioStore
	provider marketdata.Provider
	logger   zerolog.Logger
}

// NewMonitor creates a live monitor.
func NewMonitor(st store.PortfolioStore, provider marketdata.Provider, logger zerolog.Logger) *Monitor {
	return &Monitor{store: st, provider: provider, logger: logger}
}

// TradeSignal is one pending decision produced by Analyze.
type TradeSignal struct {
	Symbol string
	Action models.TradeAction
	Reason string
	Score  float64
	Price  float64
	Shares int64 // held shares for SELL signals
	PnLPct float64
}

// Analyze scans the portfolio's universe against the latest available bar
// and returns the pending signals. Held symbols produce SELL signals on
// stop loss, take profit, or a score at or below the sell threshold;
// unheld symbols produce BUY signals at or above the buy threshold.
func (m *Monitor) Analyze(ctx context.Context, portfolioName string) ([]TradeSignal, error) {
	p, err := m.store.GetPortfolio(ctx, portfolioName)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(p.Config)
	if err != nil {
		return nil, err
	}
	logger := logging.WithPortfolio(m.logger, p.Name)
	cfg := p.Config
	today := marketdata.Day(time.Now().UTC())

	var signals []TradeSignal
	for _, symbol := range cfg.Universe {
		bars, err := m.provider.GetPrices(ctx, symbol, today.AddDate(0, 0, -scoreLookbackDays), today)
		if err != nil || len(bars) == 0 {
			if err != nil && !apperrors.IsUnavailable(err) {
				logger.Warn().Str("symbol", symbol).Err(err).Msg("Price fetch failed")
			}
			continue
		}
		price := bars[len(bars)-1].Close

		fundamentals, err := m.provider.GetFundamentals(ctx, symbol)
		if err != nil {
			fundamentals = nil
		}
		composite, _ := scorer.Score(bars, fundamentals)
		total := composite.Total

		pos, err := m.store.GetOpenPosition(ctx, p.ID, symbol)
		if err != nil && err != apperrors.ErrPositionNotFound {
			return nil, err
		}

		if pos != nil {
			reason := ""
			switch {
			case price <= pos.StopLossPrice:
				reason = models.ReasonStopLoss
			case price >= pos.TakeProfitPrice:
				reason = models.ReasonTakeProfit
			case total <= cfg.SellThreshold:
				reason = models.ReasonLowScore
			}
			if reason != "" {
				signals = append(signals, TradeSignal{
					Symbol: symbol,
					Action: models.ActionSell,
					Reason: reason,
					Score:  total,
					Price:  price,
					Shares: pos.Shares,
					PnLPct: pos.UnrealizedPnLPct(price) * 100,
				})
			}
			continue
		}

		if total >= cfg.BuyThreshold {
			signals = append(signals, TradeSignal{
				Symbol: symbol,
				Action: models.ActionBuy,
				Reason: models.ReasonHighScore,
				Score:  total,
				Price:  price,
			})
		}
	}
	return signals, nil
}

// Execute applies one signal to the portfolio, updating cash, positions,
// and the trade log. A BUY that sizes to zero shares or cannot be covered
// by cash is a no-op skip, not an error.
func (m *Monitor) Execute(ctx context.Context, portfolioName string, sig TradeSignal) (string, error) {
	p, err := m.store.GetPortfolio(ctx, portfolioName)
	if err != nil {
		return "", err
	}
	cfg := p.Config
	today := marketdata.Day(time.Now().UTC())

	switch sig.Action {
	case models.ActionBuy:
		if _, err := m.store.GetOpenPosition(ctx, p.ID, sig.Symbol); err == nil {
			return "", fmt.Errorf("already holding %s", sig.Symbol)
		} else if err != apperrors.ErrPositionNotFound {
			return "", err
		}
		shares := sizeEntry(p.Cash, sig.Price, cfg)
		if shares == 0 {
			return fmt.Sprintf("skipped BUY %s: insufficient cash for minimum position", sig.Symbol), nil
		}
		pos, err := models.NewPosition(p.ID, sig.Symbol, today, sig.Price, shares, cfg.StopLoss, cfg.TakeProfit)
		if err != nil {
			return "", err
		}
		p.Cash -= pos.CapitalInvested
		if err := m.store.SavePosition(ctx, pos); err != nil {
			return "", err
		}
		if err := m.appendTrade(ctx, p, today, sig, models.ActionBuy, shares); err != nil {
			return "", err
		}
		if err := m.store.UpdatePortfolio(ctx, p); err != nil {
			return "", err
		}
		return fmt.Sprintf("BUY %d %s @ %.2f", shares, sig.Symbol, sig.Price), nil

	case models.ActionSell:
		pos, err := m.store.GetOpenPosition(ctx, p.ID, sig.Symbol)
		if err != nil {
			return "", err
		}
		if err := pos.Close(today, sig.Price, sig.Reason); err != nil {
			return "", err
		}
		p.Cash += pos.Value(sig.Price)
		if err := m.store.SavePosition(ctx, pos); err != nil {
			return "", err
		}
		if err := m.appendTrade(ctx, p, today, sig, models.ActionSell, pos.Shares); err != nil {
			return "", err
		}
		if err := m.store.UpdatePortfolio(ctx, p); err != nil {
			return "", err
		}
		return fmt.Sprintf("SELL %d %s @ %.2f (%+.2f%%)", pos.Shares, sig.Symbol, sig.Price, pos.PnLPct), nil

	default:
		return "", fmt.Errorf("unknown action %q", sig.Action)
	}
}

func (m *Monitor) appendTrade(ctx context.Context, p *models.Portfolio, day time.Time, sig TradeSignal, action models.TradeAction, shares int64) error {
	return m.store.AppendTrade(ctx, &models.Trade{
		ID:          uuid.NewString(),
		PortfolioID: p.ID,
		Date:        day,
		Symbol:      sig.Symbol,
		Action:      action,
		Price:       sig.Price,
		Shares:      shares,
		Value:       float64(shares) * sig.Price,
		Score:       sig.Score,
		Reason:      sig.Reason,
	})
}

// PositionView is one open position valued at the latest known price.
type PositionView struct {
	Position *models.Position
	Price    float64
	Value    float64
	PnLPct   float64
}

// PortfolioStatus is a point-in-time view of portfolio state.
type PortfolioStatus struct {
	Portfolio      *models.Portfolio
	Positions      []PositionView
	PositionsValue float64
	TotalValue     float64
	ReturnPct      float64
}

// Status values the portfolio's open positions at the latest available
// close. A symbol with no price data values at entry price.
func (m *Monitor) Status(ctx context.Context, portfolioName string) (*PortfolioStatus, error) {
	p, err := m.store.GetPortfolio(ctx, portfolioName)
	if err != nil {
		return nil, err
	}
	positions, err := m.store.ListPositions(ctx, p.ID, models.PositionOpen)
	if err != nil {
		return nil, err
	}
	today := marketdata.Day(time.Now().UTC())

	status := &PortfolioStatus{Portfolio: p}
	for _, pos := range positions {
		price := pos.EntryPrice
		if _, close, err := m.provider.LastCloseOnOrBefore(ctx, pos.Symbol, today); err == nil {
			price = close
		}
		view := PositionView{
			Position: pos,
			Price:    price,
			Value:    pos.Value(price),
			PnLPct:   pos.UnrealizedPnLPct(price) * 100,
		}
		status.Positions = append(status.Positions, view)
		status.PositionsValue += view.Value
	}
	status.TotalValue = p.Cash + status.PositionsValue
	status.ReturnPct = p.ReturnPct(status.TotalValue)
	return status, nil
}
