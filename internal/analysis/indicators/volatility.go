package indicators

import (
	"fmt"

	"market-analyzer/internal/models"
)

// Bollinger scores the final close against 20-period bands at two standard
// deviations. Below the lower band scores 8, above the upper 2; inside the
// band the score falls linearly as price climbs toward the upper band.
type Bollinger struct {
	period int
	mult   float64
}

// NewBollinger creates a new Bollinger Bands indicator.
func NewBollinger(period int, mult float64) *Bollinger {
	return &Bollinger{period: period, mult: mult}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("Bollinger_%d", b.period)
}

func (b *Bollinger) MinBars() int {
	return b.period
}

func (b *Bollinger) Score(bars []models.PriceBar) (float64, error) {
	if b.period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < b.MinBars() {
		return 0, ErrInsufficientData
	}

	closes := closePrices(bars)
	window := closes[len(closes)-b.period:]
	middle := mean(window)
	std := sampleStdDev(window)
	upper := middle + std*b.mult
	lower := middle - std*b.mult

	current := closes[len(closes)-1]
	switch {
	case current < lower:
		return 8, nil
	case current > upper:
		return 2, nil
	case upper == lower:
		// Zero-width bands on a flat window
		return 0, ErrInsufficientData
	default:
		position := (current - lower) / (upper - lower)
		return 5 - (position-0.5)*6, nil
	}
}
