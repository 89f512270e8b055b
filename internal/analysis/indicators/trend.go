package indicators

import (
	"fmt"

	"market-analyzer/internal/models"
)

// MACD scores the MACD line against its signal line on the final bar:
// bullish crossover state scores 7, bearish 3.
type MACD struct {
	fast   int
	slow   int
	signal int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast, m.slow, m.signal)
}

func (m *MACD) MinBars() int {
	return m.slow
}

func (m *MACD) Score(bars []models.PriceBar) (float64, error) {
	if m.fast <= 0 || m.slow <= 0 || m.signal <= 0 || m.fast >= m.slow {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < m.MinBars() {
		return 0, ErrInsufficientData
	}

	closes := closePrices(bars)
	fastEMA := ema(closes, m.fast)
	slowEMA := ema(closes, m.slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(macdLine, m.signal)

	if macdLine[len(macdLine)-1] > signalLine[len(signalLine)-1] {
		return 7, nil
	}
	return 3, nil
}

// Trend scores the SMA50/SMA200 crossover: golden-cross state scores 7,
// otherwise 3. With fewer than 200 bars the short average stands in for the
// long one.
type Trend struct {
	short int
	long  int
}

// NewTrend creates a new SMA crossover trend indicator.
func NewTrend(short, long int) *Trend {
	return &Trend{short: short, long: long}
}

func (t *Trend) Name() string {
	return fmt.Sprintf("Trend_%d_%d", t.short, t.long)
}

func (t *Trend) MinBars() int {
	return t.short
}

func (t *Trend) Score(bars []models.PriceBar) (float64, error) {
	if t.short <= 0 || t.long <= t.short {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < t.MinBars() {
		return 0, ErrInsufficientData
	}

	closes := closePrices(bars)
	smaShort := sma(closes, t.short)
	smaLong := smaShort
	if len(closes) >= t.long {
		smaLong = sma(closes, t.long)
	}

	if smaShort > smaLong {
		return 7, nil
	}
	return 3, nil
}

// ADX scores trend strength. A strong trend means the other signals are
// more trustworthy, so higher ADX maps to a higher score:
// 3 + (ADX/50)*7, clamped to [0,10].
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX_%d", a.period)
}

func (a *ADX) MinBars() int {
	return a.period * 2
}

func (a *ADX) Score(bars []models.PriceBar) (float64, error) {
	if a.period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < a.MinBars() {
		return 0, ErrInsufficientData
	}

	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > 0 {
			plusDM[i] = up
		}
		if down > 0 {
			minusDM[i] = down
		}
		tr[i] = trueRange(bars[i], bars[i-1])
	}

	// Rolling-average DI lines, then a rolling average of DX
	dx := make([]float64, 0, n)
	for i := a.period; i < n; i++ {
		atr := mean(tr[i-a.period+1 : i+1])
		if atr == 0 {
			continue
		}
		plusDI := 100 * mean(plusDM[i-a.period+1:i+1]) / atr
		minusDI := 100 * mean(minusDM[i-a.period+1:i+1]) / atr
		if plusDI+minusDI == 0 {
			continue
		}
		diff := plusDI - minusDI
		if diff < 0 {
			diff = -diff
		}
		dx = append(dx, 100*diff/(plusDI+minusDI))
	}
	if len(dx) < a.period {
		return 0, ErrInsufficientData
	}

	adx := mean(dx[len(dx)-a.period:])
	return clamp(3+(adx/50)*7, 0, 10), nil
}
