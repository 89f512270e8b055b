package models

import (
	"time"

	"github.com/google/uuid"
)

// Portfolio holds the virtual capital state driven by a simulation or the
// live monitor. Cash never goes negative; total value is cash plus the
// market value of open positions.
type Portfolio struct {
	ID             string
	Name           string
	InitialCapital float64
	Cash           float64
	StartDate      time.Time
	EndDate        time.Time // zero while the simulation is ongoing
	Config         StrategyConfig
	CreatedAt      time.Time
}

// NewPortfolio creates a portfolio with all capital as cash.
func NewPortfolio(name string, initialCapital float64, startDate time.Time, cfg StrategyConfig) *Portfolio {
	return &Portfolio{
		ID:             uuid.NewString(),
		Name:           name,
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		StartDate:      startDate,
		Config:         cfg,
		CreatedAt:      time.Now(),
	}
}

// ReturnPct returns the total return against initial capital for the given
// total value.
func (p *Portfolio) ReturnPct(totalValue float64) float64 {
	if p.InitialCapital == 0 {
		return 0
	}
	return (totalValue - p.InitialCapital) / p.InitialCapital * 100
}
