// Package scoring combines indicator sub-scores into composite scores and
// trading signals.
package scoring

import (
	"math"

	"market-analyzer/internal/analysis/indicators"
	"market-analyzer/internal/models"
)

// Scorer combines technical, fundamental, and sentiment composites into a
// weighted total score and a signal. A Scorer is immutable after creation;
// every call scores the window it is given and nothing else.
type Scorer struct {
	cfg models.StrategyConfig

	rsi       *indicators.RSI
	macd      *indicators.MACD
	bollinger *indicators.Bollinger
	trend     *indicators.Trend
	volume    *indicators.VolumeSignal
	adx       *indicators.ADX
	williamsR *indicators.WilliamsR
	obv       *indicators.OBVTrend
	rangePos  *indicators.RangePosition
}

// NewScorer creates a scorer for the given configuration. The configuration
// is validated up front so a bad weight vector fails before any scoring.
func NewScorer(cfg models.StrategyConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:       cfg,
		rsi:       indicators.NewRSI(14),
		macd:      indicators.NewMACD(12, 26, 9),
		bollinger: indicators.NewBollinger(20, 2),
		trend:     indicators.NewTrend(50, 200),
		volume:    indicators.NewVolumeSignal(5, 60),
		adx:       indicators.NewADX(14),
		williamsR: indicators.NewWilliamsR(14),
		obv:       indicators.NewOBVTrend(),
		rangePos:  indicators.NewRangePosition(252),
	}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() models.StrategyConfig {
	return s.cfg
}

// Score computes the full composite for a price window ending at "now" plus
// whatever fundamentals are known. fundamentals may be nil.
func (s *Scorer) Score(bars []models.PriceBar, fundamentals *models.FundamentalSnapshot) (models.CompositeScore, *models.IndicatorSnapshot) {
	technical, snapshot := s.TechnicalScore(bars)
	fundamental := s.FundamentalScore(fundamentals)
	sentiment := s.SentimentScore(bars)

	total := technical*s.cfg.Weights.Technical +
		fundamental*s.cfg.Weights.Fundamental +
		sentiment*s.cfg.Weights.Sentiment

	return models.CompositeScore{
		Technical:   technical,
		Fundamental: fundamental,
		Sentiment:   sentiment,
		Total:       total,
	}, snapshot
}

// TechnicalScore computes the weighted technical composite. An undefined
// indicator keeps the weight vector valid by substituting neutral 5.
func (s *Scorer) TechnicalScore(bars []models.PriceBar) (float64, *models.IndicatorSnapshot) {
	snapshot := &models.IndicatorSnapshot{}
	w := s.cfg.TechnicalWeights

	score := subScore(s.rsi, bars, &snapshot.RSI)*w.RSI +
		subScore(s.macd, bars, &snapshot.MACD)*w.MACD +
		subScore(s.bollinger, bars, &snapshot.Bollinger)*w.Bollinger +
		subScore(s.trend, bars, &snapshot.Trend)*w.Trend +
		subScore(s.volume, bars, &snapshot.Volume)*w.Volume +
		subScore(s.adx, bars, &snapshot.ADX)*w.ADX +
		subScore(s.williamsR, bars, &snapshot.WilliamsR)*w.WilliamsR +
		subScore(s.obv, bars, &snapshot.OBV)*w.OBV +
		subScore(s.rangePos, bars, &snapshot.RangePosition)*w.RangePosition

	return score, snapshot
}

// subScore evaluates one indicator, records the defined score in the
// snapshot, and returns neutral 5 when the indicator is undefined.
func subScore(ind indicators.Indicator, bars []models.PriceBar, out **float64) float64 {
	score, err := ind.Score(bars)
	if err != nil {
		return 5
	}
	*out = &score
	return score
}

// FundamentalScore computes the unweighted mean of whichever fundamental
// metric scores are available. Missing metrics are skipped; with none
// available the composite defaults to neutral 5.
func (s *Scorer) FundamentalScore(f *models.FundamentalSnapshot) float64 {
	if f == nil {
		return 5
	}

	var scores []float64

	if f.PE != nil && *f.PE > 0 {
		scores = append(scores, bandScore(*f.PE, []band{{15, 8}, {25, 6}, {35, 4}}, 2))
	}
	if f.PB != nil && *f.PB > 0 {
		scores = append(scores, bandScore(*f.PB, []band{{1, 9}, {3, 7}, {5, 5}}, 3))
	}
	if f.ProfitMargin != nil && *f.ProfitMargin > 0 {
		switch m := *f.ProfitMargin; {
		case m > 0.20:
			scores = append(scores, 8)
		case m > 0.10:
			scores = append(scores, 6)
		default:
			scores = append(scores, 4)
		}
	}
	if f.DebtToEquity != nil {
		scores = append(scores, bandScore(*f.DebtToEquity, []band{{50, 8}, {100, 6}, {200, 4}}, 2))
	}
	if f.RevenueGrowth != nil {
		switch g := *f.RevenueGrowth; {
		case g > 0.20:
			scores = append(scores, 9)
		case g > 0.10:
			scores = append(scores, 7)
		case g > 0:
			scores = append(scores, 5)
		default:
			scores = append(scores, 3)
		}
	}
	if f.ROE != nil {
		switch r := *f.ROE; {
		case r > 0.20:
			scores = append(scores, 9)
		case r > 0.10:
			scores = append(scores, 7)
		case r > 0:
			scores = append(scores, 5)
		default:
			scores = append(scores, 2)
		}
	}
	if fcf := scoreFreeCashFlow(f); fcf != nil {
		scores = append(scores, *fcf)
	}
	if f.CurrentRatio != nil && *f.CurrentRatio > 0 {
		switch cr := *f.CurrentRatio; {
		case cr >= 2:
			scores = append(scores, 8)
		case cr >= 1.5:
			scores = append(scores, 6)
		case cr >= 1:
			scores = append(scores, 4)
		default:
			scores = append(scores, 2)
		}
	}

	if len(scores) == 0 {
		return 5
	}
	return mean(scores)
}

// scoreFreeCashFlow scores FCF against revenue when revenue is known,
// otherwise only by its sign.
func scoreFreeCashFlow(f *models.FundamentalSnapshot) *float64 {
	if f.FreeCashFlow == nil {
		return nil
	}
	var score float64
	if f.TotalRevenue != nil && *f.TotalRevenue > 0 {
		ratio := *f.FreeCashFlow / *f.TotalRevenue
		switch {
		case ratio > 0.15:
			score = 8
		case ratio > 0.05:
			score = 6
		case ratio > 0:
			score = 5
		default:
			score = 3
		}
	} else if *f.FreeCashFlow > 0 {
		score = 7
	} else {
		score = 3
	}
	return &score
}

// SentimentScore computes the unweighted mean of momentum, volume, range
// position, and volatility scores, each clamped to [0,10]. Components
// without enough history are excluded from the mean.
func (s *Scorer) SentimentScore(bars []models.PriceBar) float64 {
	n := len(bars)
	if n == 0 {
		return 5
	}
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	var scores []float64

	// 30-day momentum
	ret30 := 0.0
	if n >= 30 {
		ret30 = closes[n-1]/closes[n-30] - 1
	}
	scores = append(scores, clampScore(5+ret30*20))

	// 5-day momentum, divergence from the 30-day read is informative
	ret5 := 0.0
	if n >= 5 {
		ret5 = closes[n-1]/closes[n-5] - 1
	}
	scores = append(scores, clampScore(5+ret5*30))

	// Recent volume against the full-window average
	recentN := 5
	if n < recentN {
		recentN = n
	}
	var recentVol, totalVol float64
	for _, b := range bars[n-recentN:] {
		recentVol += float64(b.Volume)
	}
	recentVol /= float64(recentN)
	for _, b := range bars {
		totalVol += float64(b.Volume)
	}
	totalVol /= float64(n)
	ratio := 1.0
	if totalVol > 0 {
		ratio = recentVol / totalVol
	}
	scores = append(scores, clampScore(5+(ratio-1)*5))

	// Price near the 52-week high reads as bullish sentiment
	if pos, err := s.rangePos.Score(bars); err == nil {
		scores = append(scores, clampScore(pos))
	}

	// Low realized volatility reads as confidence
	if vol := volatilityScore(closes, 20); vol != nil {
		scores = append(scores, *vol)
	}

	return mean(scores)
}

// volatilityScore maps annualized 20-day volatility to a score: calm tape
// scores high, turbulent tape low. Zero variance scores neutral.
func volatilityScore(closes []float64, window int) *float64 {
	if len(closes) < window {
		return nil
	}
	rets := make([]float64, 0, window-1)
	for i := len(closes) - window + 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			rets = append(rets, closes[i]/closes[i-1]-1)
		}
	}
	if len(rets) < 2 {
		return nil
	}
	sd := sampleStdDev(rets)
	var score float64
	if sd == 0 {
		score = 5
		return &score
	}
	annual := sd * math.Sqrt(252)
	switch {
	case annual < 0.15:
		score = 8
	case annual < 0.25:
		score = 6
	case annual < 0.40:
		score = 4
	default:
		score = 2
	}
	return &score
}

// SignalFor maps a total score to a trading signal using the configured
// thresholds.
func (s *Scorer) SignalFor(total float64) models.Signal {
	switch {
	case total >= s.cfg.BuyThreshold:
		return models.SignalBuy
	case total <= s.cfg.SellThreshold:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// Targets derives price targets from the current price and total score:
// bullish scores aim +15% with a 5% stop, bearish scores aim -10% with a 5%
// stop above, neutral +5% either way.
func (s *Scorer) Targets(price, total float64) models.PriceTargets {
	switch s.SignalFor(total) {
	case models.SignalBuy:
		return models.PriceTargets{Target: price * 1.15, StopLoss: price * 0.95}
	case models.SignalSell:
		return models.PriceTargets{Target: price * 0.90, StopLoss: price * 1.05}
	default:
		return models.PriceTargets{Target: price * 1.05, StopLoss: price * 0.95}
	}
}

// band pairs an upper bound with the score awarded below it.
type band struct {
	upper float64
	score float64
}

// bandScore returns the score of the first band the value falls under, or
// the fallback when it exceeds every band.
func bandScore(value float64, bands []band, fallback float64) float64 {
	for _, b := range bands {
		if value < b.upper {
			return b.score
		}
	}
	return fallback
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
