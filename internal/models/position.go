package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Position represents a single entry in one symbol, owned by one portfolio.
// A position is created on an executed BUY, mutated exactly once at exit,
// and never re-opened; a later re-entry creates a new Position.
type Position struct {
	ID              string
	PortfolioID     string
	Symbol          string
	EntryDate       time.Time
	EntryPrice      float64
	Shares          int64
	CapitalInvested float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Status          PositionStatus

	// Exit fields, set only when Status is PositionClosed.
	ExitDate   time.Time
	ExitPrice  float64
	ExitReason string
	PnL        float64
	PnLPct     float64
}

// NewPosition creates an open position and validates its invariants:
// shares must be positive and capital invested equals shares*entry price.
func NewPosition(portfolioID, symbol string, entryDate time.Time, entryPrice float64, shares int64, stopLossPct, takeProfitPct float64) (*Position, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("position %s: shares must be positive, got %d", symbol, shares)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("position %s: entry price must be positive, got %f", symbol, entryPrice)
	}
	return &Position{
		ID:              uuid.NewString(),
		PortfolioID:     portfolioID,
		Symbol:          symbol,
		EntryDate:       entryDate,
		EntryPrice:      entryPrice,
		Shares:          shares,
		CapitalInvested: float64(shares) * entryPrice,
		StopLossPrice:   entryPrice * (1 - stopLossPct),
		TakeProfitPrice: entryPrice * (1 + takeProfitPct),
		Status:          PositionOpen,
	}, nil
}

// Value returns the position's market value at the given price.
func (p *Position) Value(price float64) float64 {
	return float64(p.Shares) * price
}

// UnrealizedPnLPct returns the fractional gain/loss at the given price.
func (p *Position) UnrealizedPnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// Close realizes the position at the given price. Closing an already
// closed position is an error: re-entry requires a new Position.
func (p *Position) Close(date time.Time, price float64, reason string) error {
	if p.Status == PositionClosed {
		return fmt.Errorf("position %s (%s): already closed", p.ID, p.Symbol)
	}
	exitValue := float64(p.Shares) * price
	p.ExitDate = date
	p.ExitPrice = price
	p.ExitReason = reason
	p.PnL = exitValue - p.CapitalInvested
	p.PnLPct = p.PnL / p.CapitalInvested * 100
	p.Status = PositionClosed
	return nil
}

// Validate checks the accounting invariants of a position regardless of
// where it was loaded from.
func (p *Position) Validate() error {
	if p.Shares <= 0 {
		return fmt.Errorf("position %s: shares must be positive", p.Symbol)
	}
	if math.Abs(p.CapitalInvested-float64(p.Shares)*p.EntryPrice) > 1e-6 {
		return fmt.Errorf("position %s: capital invested %.4f != shares*entry %.4f",
			p.Symbol, p.CapitalInvested, float64(p.Shares)*p.EntryPrice)
	}
	if p.Status != PositionOpen && p.Status != PositionClosed {
		return fmt.Errorf("position %s: unknown status %q", p.Symbol, p.Status)
	}
	return nil
}
