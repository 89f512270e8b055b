package indicators

import (
	"market-analyzer/internal/models"
)

// RangePosition scores where the final close sits in the 52-week high/low
// range, mapped onto [1,9]: near the high is bullish, near the low bearish.
// A zero-width range scores neutral 5.
type RangePosition struct {
	lookback int
}

// NewRangePosition creates a new 52-week range position indicator.
func NewRangePosition(lookback int) *RangePosition {
	return &RangePosition{lookback: lookback}
}

func (r *RangePosition) Name() string {
	return "RangePosition"
}

func (r *RangePosition) MinBars() int {
	return 20
}

func (r *RangePosition) Score(bars []models.PriceBar) (float64, error) {
	n := len(bars)
	if n < r.MinBars() {
		return 0, ErrInsufficientData
	}

	window := bars
	if r.lookback > 0 && n > r.lookback {
		window = bars[n-r.lookback:]
	}

	high := window[0].High
	low := window[0].Low
	for _, b := range window[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	if high <= low {
		return 5, nil
	}

	pct := (bars[n-1].Close - low) / (high - low)
	return pct*8 + 1, nil
}
