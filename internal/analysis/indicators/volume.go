package indicators

import (
	"fmt"

	"market-analyzer/internal/models"
)

// VolumeSignal scores a volume spike by the direction price moved with it.
// Recent volume above 1.5x the longer average scores 7 if the 5-day price
// change is positive, 3 if negative; normal volume scores neutral 5.
type VolumeSignal struct {
	recent int
	base   int
}

// NewVolumeSignal creates a new volume confirmation indicator.
func NewVolumeSignal(recent, base int) *VolumeSignal {
	return &VolumeSignal{recent: recent, base: base}
}

func (v *VolumeSignal) Name() string {
	return fmt.Sprintf("Volume_%d_%d", v.recent, v.base)
}

func (v *VolumeSignal) MinBars() int {
	return v.recent
}

func (v *VolumeSignal) Score(bars []models.PriceBar) (float64, error) {
	if v.recent <= 0 || v.base <= v.recent {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < v.MinBars() {
		return 0, ErrInsufficientData
	}

	n := len(bars)
	baseWindow := bars
	if n > v.base {
		baseWindow = bars[n-v.base:]
	}

	var recentVol, baseVol float64
	for _, b := range bars[n-v.recent:] {
		recentVol += float64(b.Volume)
	}
	recentVol /= float64(v.recent)
	for _, b := range baseWindow {
		baseVol += float64(b.Volume)
	}
	baseVol /= float64(len(baseWindow))

	if recentVol > baseVol*1.5 {
		priceChange := bars[n-1].Close/bars[n-v.recent].Close - 1
		if priceChange > 0 {
			return 7, nil
		}
		return 3, nil
	}
	return 5, nil
}

// OBVTrend scores On-Balance Volume confirmation: OBV and price rising
// together scores 7, falling together 3, divergence 5.
type OBVTrend struct{}

// NewOBVTrend creates a new OBV trend indicator.
func NewOBVTrend() *OBVTrend {
	return &OBVTrend{}
}

func (o *OBVTrend) Name() string {
	return "OBV"
}

func (o *OBVTrend) MinBars() int {
	return 20
}

func (o *OBVTrend) Score(bars []models.PriceBar) (float64, error) {
	n := len(bars)
	if n < o.MinBars() {
		return 0, ErrInsufficientData
	}

	obv := make([]float64, n)
	for i := 1; i < n; i++ {
		obv[i] = obv[i-1]
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] += float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			obv[i] -= float64(bars[i].Volume)
		}
	}

	recent := mean(obv[n-5:])
	older := mean(obv[n-20 : n-5])
	priceUp := bars[n-1].Close > bars[n-5].Close
	obvUp := recent > older

	switch {
	case priceUp && obvUp:
		return 7, nil
	case !priceUp && !obvUp:
		return 3, nil
	default:
		return 5, nil
	}
}
