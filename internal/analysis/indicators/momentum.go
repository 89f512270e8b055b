package indicators

import (
	"fmt"

	"market-analyzer/internal/models"
)

// RSI scores the Relative Strength Index of the final bar. Oversold readings
// lean toward buying: RSI below 30 scores 8, above 70 scores 2, and the
// band between interpolates linearly into [4,6].
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) MinBars() int {
	return r.period + 1
}

// Value returns the raw RSI of the final bar using Wilder smoothing.
func (r *RSI) Value(bars []models.PriceBar) (float64, error) {
	if r.period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < r.MinBars() {
		return 0, ErrInsufficientData
	}

	closes := closePrices(bars)
	n := len(closes)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// First average is a plain SMA, then Wilder smoothing
	avgGain := mean(gains[1 : r.period+1])
	avgLoss := mean(losses[1 : r.period+1])
	for i := r.period + 1; i < n; i++ {
		avgGain = (avgGain*float64(r.period-1) + gains[i]) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + losses[i]) / float64(r.period)
	}

	if avgGain == 0 && avgLoss == 0 {
		// Flat window, momentum is meaningless
		return 0, ErrInsufficientData
	}
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

func (r *RSI) Score(bars []models.PriceBar) (float64, error) {
	rsi, err := r.Value(bars)
	if err != nil {
		return 0, err
	}
	switch {
	case rsi < 30:
		return 8, nil
	case rsi > 70:
		return 2, nil
	default:
		return 4 + (rsi-30)/20, nil
	}
}

// WilliamsR scores the Williams %R oscillator: below -80 is oversold and
// scores 8, above -20 is overbought and scores 2, between interpolates
// around the -50 midpoint.
type WilliamsR struct {
	period int
}

// NewWilliamsR creates a new Williams %R indicator.
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{period: period}
}

func (w *WilliamsR) Name() string {
	return fmt.Sprintf("WilliamsR_%d", w.period)
}

func (w *WilliamsR) MinBars() int {
	return w.period
}

func (w *WilliamsR) Score(bars []models.PriceBar) (float64, error) {
	if w.period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < w.MinBars() {
		return 0, ErrInsufficientData
	}

	window := bars[len(bars)-w.period:]
	var high, low float64
	high = window[0].High
	low = window[0].Low
	for _, b := range window[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	if high == low {
		return 0, ErrInsufficientData
	}

	close := bars[len(bars)-1].Close
	wr := -100 * (high - close) / (high - low)
	switch {
	case wr < -80:
		return 8, nil
	case wr > -20:
		return 2, nil
	default:
		return 5 + (wr+50)/10, nil
	}
}
