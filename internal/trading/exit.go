// Package trading implements the position-lifecycle engines: single-symbol
// backtests, multi-symbol portfolio simulation, and the live monitor.
package trading

import (
	"market-analyzer/internal/models"
)

// exitDecision is the outcome of the exit rules for one bar.
type exitDecision struct {
	exit   bool
	reason string
}

// evaluateExit applies the exit rules in fixed priority: stop loss first,
// then take profit, then the score-based sell signal. The score is computed
// lazily so price-level exits never spend a scoring pass.
func evaluateExit(pos *models.Position, price, sellThreshold float64, scoreFn func() (float64, bool)) exitDecision {
	if price <= pos.StopLossPrice {
		return exitDecision{exit: true, reason: models.ReasonStopLoss}
	}
	if price >= pos.TakeProfitPrice {
		return exitDecision{exit: true, reason: models.ReasonTakeProfit}
	}
	if total, ok := scoreFn(); ok && total <= sellThreshold {
		return exitDecision{exit: true, reason: models.ReasonSellSignal}
	}
	return exitDecision{}
}

// sizeEntry computes the share count for a new position: a fixed fraction
// of available cash at the given price, floored to whole shares. A zero
// share count or an investment under the minimum notional is a silent
// skip, not an error.
func sizeEntry(cash, price float64, cfg models.StrategyConfig) int64 {
	if price <= 0 {
		return 0
	}
	capitalToInvest := cash * cfg.PositionSize
	if capitalToInvest < cfg.MinNotional {
		return 0
	}
	shares := int64(capitalToInvest / price)
	if float64(shares)*price > cash {
		return 0
	}
	return shares
}
