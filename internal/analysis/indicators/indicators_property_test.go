package indicators

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"market-analyzer/internal/models"
)

// barGen generates one valid daily bar with consistent OHLC relationships.
func barGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.PriceBar{}), map[string]gopter.Gen{
		"Date":   gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":   gen.Float64Range(50.0, 500.0),
		"High":   gen.Float64Range(50.0, 500.0),
		"Low":    gen.Float64Range(50.0, 500.0),
		"Close":  gen.Float64Range(50.0, 500.0),
		"Volume": gen.Int64Range(1000, 10000000),
	}).Map(func(b models.PriceBar) models.PriceBar {
		if b.Open <= 0 {
			b.Open = 100.0
		}
		if b.Close <= 0 {
			b.Close = 100.0
		}
		b.High = math.Max(b.High, math.Max(b.Open, b.Close))
		b.Low = math.Min(b.Low, math.Min(b.Open, b.Close))
		if b.Low <= 0 {
			b.Low = 1.0
		}
		if b.High <= b.Low {
			b.High = b.Low + 1.0
		}
		return b
	})
}

// barSliceGen generates a dated series of valid bars.
func barSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, barGen()).Map(func(bars []models.PriceBar) []models.PriceBar {
		for len(bars) < minLen {
			bars = append(bars, bars[len(bars)-1])
		}
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range bars {
			bars[i].Date = base.AddDate(0, 0, i)
		}
		return bars
	})
}

// flatSeries builds n identical bars.
func flatSeries(n int, price float64, volume int64) []models.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: volume,
		}
	}
	return bars
}

// trendingSeries builds n bars with a constant daily increment (negative for
// a falling series).
func trendingSeries(n int, start, step float64) []models.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	price := start
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + math.Abs(step),
			Low:    price - math.Abs(step),
			Close:  price,
			Volume: 100000,
		}
		price += step
	}
	return bars
}

func allIndicators() []Indicator {
	return []Indicator{
		NewRSI(14),
		NewMACD(12, 26, 9),
		NewBollinger(20, 2),
		NewTrend(50, 200),
		NewVolumeSignal(5, 60),
		NewADX(14),
		NewWilliamsR(14),
		NewOBVTrend(),
		NewRangePosition(252),
	}
}

func TestProperty_ScoresWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("every defined score is within [0, 10]", prop.ForAll(
		func(bars []models.PriceBar) bool {
			for _, ind := range allIndicators() {
				score, err := ind.Score(bars)
				if err != nil {
					// Undefined is allowed, a wild score is not
					continue
				}
				if score < 0 || score > 10 {
					t.Logf("%s scored %.4f outside [0,10]", ind.Name(), score)
					return false
				}
			}
			return true
		},
		barSliceGen(60, 300),
	))

	properties.TestingRun(t)
}

func TestProperty_UndefinedBelowMinBars(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("a window shorter than MinBars is undefined, never zero-scored", prop.ForAll(
		func(bars []models.PriceBar) bool {
			for _, ind := range allIndicators() {
				if len(bars) >= ind.MinBars() {
					continue
				}
				if _, err := ind.Score(bars); !errors.Is(err, ErrInsufficientData) {
					t.Logf("%s with %d bars: want ErrInsufficientData, got %v", ind.Name(), len(bars), err)
					return false
				}
			}
			return true
		},
		barSliceGen(1, 13),
	))

	properties.TestingRun(t)
}

func TestRSIScoreDirection(t *testing.T) {
	rsi := NewRSI(14)

	// A steady climb saturates RSI at 100, deep overbought
	score, err := rsi.Score(trendingSeries(60, 100, 1))
	if err != nil {
		t.Fatalf("rising series: %v", err)
	}
	if score != 2 {
		t.Errorf("rising series: want score 2, got %.2f", score)
	}

	// A steady slide saturates RSI at 0, deep oversold
	score, err = rsi.Score(trendingSeries(60, 200, -1))
	if err != nil {
		t.Fatalf("falling series: %v", err)
	}
	if score != 8 {
		t.Errorf("falling series: want score 8, got %.2f", score)
	}
}

func TestRSIFlatWindowUndefined(t *testing.T) {
	rsi := NewRSI(14)
	if _, err := rsi.Value(flatSeries(60, 100, 1000)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("flat window: want ErrInsufficientData, got %v", err)
	}
}

func TestBollingerFlatWindowUndefined(t *testing.T) {
	bb := NewBollinger(20, 2)
	if _, err := bb.Score(flatSeries(40, 100, 1000)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("zero-width bands: want ErrInsufficientData, got %v", err)
	}
}

func TestBollingerBreakouts(t *testing.T) {
	// 19 bars around 100, final close far below the band
	bars := trendingSeries(20, 100, 0.1)
	bars[19].Close = 50
	score, err := NewBollinger(20, 2).Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 8 {
		t.Errorf("close below lower band: want 8, got %.2f", score)
	}

	bars[19].Close = 200
	score, err = NewBollinger(20, 2).Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 2 {
		t.Errorf("close above upper band: want 2, got %.2f", score)
	}
}

func TestTrendCrossover(t *testing.T) {
	trend := NewTrend(50, 200)

	score, err := trend.Score(trendingSeries(250, 100, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 {
		t.Errorf("uptrend: want 7, got %.2f", score)
	}

	score, err = trend.Score(trendingSeries(250, 300, -0.5))
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("downtrend: want 3, got %.2f", score)
	}
}

func TestMACDCrossover(t *testing.T) {
	macd := NewMACD(12, 26, 9)

	// Accelerating rally keeps the MACD line above its signal
	bars := trendingSeries(40, 100, 0)
	for i := range bars {
		bars[i].Close = 100 + float64(i)*float64(i)*0.05
	}
	score, err := macd.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 {
		t.Errorf("accelerating rally: want 7, got %.2f", score)
	}

	score, err = macd.Score(trendingSeries(40, 200, -1))
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("steady decline: want 3, got %.2f", score)
	}
}

func TestWilliamsRExtremes(t *testing.T) {
	wr := NewWilliamsR(14)

	// Close pinned to the window low
	bars := trendingSeries(20, 200, -2)
	score, err := wr.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 8 {
		t.Errorf("close at low: want 8, got %.2f", score)
	}

	// Close pinned to the window high
	bars = trendingSeries(20, 100, 2)
	score, err = wr.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 2 {
		t.Errorf("close at high: want 2, got %.2f", score)
	}
}

func TestWilliamsRFlatWindowUndefined(t *testing.T) {
	if _, err := NewWilliamsR(14).Score(flatSeries(20, 100, 1000)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("flat window: want ErrInsufficientData, got %v", err)
	}
}

func TestVolumeSignalSpike(t *testing.T) {
	vs := NewVolumeSignal(5, 60)

	// Volume spike with rising price confirms buying pressure
	bars := trendingSeries(70, 100, 0.5)
	for i := 65; i < 70; i++ {
		bars[i].Volume = 1000000
	}
	score, err := vs.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 {
		t.Errorf("spike on rally: want 7, got %.2f", score)
	}

	// Same spike on a falling tape reads as distribution
	bars = trendingSeries(70, 200, -0.5)
	for i := 65; i < 70; i++ {
		bars[i].Volume = 1000000
	}
	score, err = vs.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("spike on decline: want 3, got %.2f", score)
	}

	// Normal volume is neutral
	score, err = vs.Score(trendingSeries(70, 100, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if score != 5 {
		t.Errorf("normal volume: want 5, got %.2f", score)
	}
}

func TestOBVTrendConfirmation(t *testing.T) {
	obv := NewOBVTrend()

	score, err := obv.Score(trendingSeries(30, 100, 1))
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 {
		t.Errorf("price and OBV rising: want 7, got %.2f", score)
	}

	score, err = obv.Score(trendingSeries(30, 200, -1))
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("price and OBV falling: want 3, got %.2f", score)
	}

	// Flat tape accumulates no OBV and no price change
	score, err = obv.Score(flatSeries(30, 100, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("flat series: want 3, got %.2f", score)
	}
}

func TestRangePositionEndpoints(t *testing.T) {
	rp := NewRangePosition(252)

	// Close at the very top of the range
	bars := trendingSeries(100, 100, 1)
	score, err := rp.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score < 8 || score > 9 {
		t.Errorf("close near range high: want score in [8,9], got %.2f", score)
	}

	bars = trendingSeries(100, 300, -1)
	score, err = rp.Score(bars)
	if err != nil {
		t.Fatal(err)
	}
	if score < 1 || score > 2 {
		t.Errorf("close near range low: want score in [1,2], got %.2f", score)
	}

	// Zero-width range is neutral
	score, err = rp.Score(flatSeries(30, 100, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if score != 5 {
		t.Errorf("flat range: want 5, got %.2f", score)
	}
}

func TestADXStrongTrend(t *testing.T) {
	adx := NewADX(14)
	score, err := adx.Score(trendingSeries(60, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	// A clean one-way trend drives DX toward 100, score toward the cap
	if score < 7 || score > 10 {
		t.Errorf("strong trend: want score in [7,10], got %.2f", score)
	}
}

func TestInvalidPeriods(t *testing.T) {
	bars := trendingSeries(60, 100, 1)
	if _, err := NewRSI(0).Score(bars); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("RSI period 0: want ErrInvalidPeriod, got %v", err)
	}
	if _, err := NewMACD(26, 12, 9).Score(bars); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("MACD fast >= slow: want ErrInvalidPeriod, got %v", err)
	}
	if _, err := NewTrend(200, 50).Score(bars); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Trend long <= short: want ErrInvalidPeriod, got %v", err)
	}
}
