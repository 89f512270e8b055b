package models

import (
	"fmt"
	"math"
)

// Weights splits the total score between the three composites.
// The three fields must sum to 1.0.
type Weights struct {
	Technical   float64 `mapstructure:"technical" json:"technical"`
	Fundamental float64 `mapstructure:"fundamental" json:"fundamental"`
	Sentiment   float64 `mapstructure:"sentiment" json:"sentiment"`
}

// TechnicalWeights distributes the technical composite across its
// sub-indicators. The nine fields must sum to 1.0.
type TechnicalWeights struct {
	RSI           float64 `mapstructure:"rsi" json:"rsi"`
	MACD          float64 `mapstructure:"macd" json:"macd"`
	Bollinger     float64 `mapstructure:"bollinger" json:"bollinger"`
	Trend         float64 `mapstructure:"trend" json:"trend"`
	Volume        float64 `mapstructure:"volume" json:"volume"`
	ADX           float64 `mapstructure:"adx" json:"adx"`
	WilliamsR     float64 `mapstructure:"williams_r" json:"williams_r"`
	OBV           float64 `mapstructure:"obv" json:"obv"`
	RangePosition float64 `mapstructure:"range_position" json:"range_position"`
}

// Sum returns the total of all sub-indicator weights.
func (w TechnicalWeights) Sum() float64 {
	return w.RSI + w.MACD + w.Bollinger + w.Trend + w.Volume + w.ADX + w.WilliamsR + w.OBV + w.RangePosition
}

// StrategyConfig holds every runtime knob of the scoring and simulation
// engines. It is an immutable value: engines receive a copy and never
// share a mutable default.
type StrategyConfig struct {
	BuyThreshold     float64          `mapstructure:"buy_threshold" json:"buy_threshold"`
	SellThreshold    float64          `mapstructure:"sell_threshold" json:"sell_threshold"`
	Weights          Weights          `mapstructure:"weights" json:"weights"`
	TechnicalWeights TechnicalWeights `mapstructure:"technical_weights" json:"technical_weights"`
	PositionSize     float64          `mapstructure:"position_size" json:"position_size"`
	StopLoss         float64          `mapstructure:"stop_loss" json:"stop_loss"`
	TakeProfit       float64          `mapstructure:"take_profit" json:"take_profit"`
	MinNotional      float64          `mapstructure:"min_notional" json:"min_notional"`
	Universe         []string         `mapstructure:"universe" json:"universe"`
}

// DefaultStrategyConfig returns the stock configuration: 40/40/20 composite
// weights, BUY at 7, SELL at 3, 20% position sizing with a 5% stop and a
// 15% take profit.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		BuyThreshold:  7.0,
		SellThreshold: 3.0,
		Weights: Weights{
			Technical:   0.4,
			Fundamental: 0.4,
			Sentiment:   0.2,
		},
		TechnicalWeights: TechnicalWeights{
			RSI:           0.20,
			MACD:          0.18,
			Bollinger:     0.15,
			Trend:         0.15,
			Volume:        0.12,
			ADX:           0.08,
			WilliamsR:     0.06,
			OBV:           0.03,
			RangePosition: 0.03,
		},
		PositionSize: 0.20,
		StopLoss:     0.05,
		TakeProfit:   0.15,
		MinNotional:  100,
		Universe:     []string{"AAPL", "MSFT", "GOOGL", "NVDA", "TSLA", "AMZN", "META"},
	}
}

const weightTolerance = 1e-6

// Validate rejects configurations before any simulation step runs.
func (c StrategyConfig) Validate() error {
	if c.BuyThreshold < 0 || c.BuyThreshold > 10 {
		return fmt.Errorf("buy_threshold %.2f out of range [0,10]", c.BuyThreshold)
	}
	if c.SellThreshold < 0 || c.SellThreshold > 10 {
		return fmt.Errorf("sell_threshold %.2f out of range [0,10]", c.SellThreshold)
	}
	if c.SellThreshold >= c.BuyThreshold {
		return fmt.Errorf("sell_threshold %.2f must be below buy_threshold %.2f", c.SellThreshold, c.BuyThreshold)
	}
	sum := c.Weights.Technical + c.Weights.Fundamental + c.Weights.Sentiment
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("composite weights sum to %.4f, want 1.0", sum)
	}
	if c.Weights.Technical < 0 || c.Weights.Fundamental < 0 || c.Weights.Sentiment < 0 {
		return fmt.Errorf("composite weights must be non-negative")
	}
	if tsum := c.TechnicalWeights.Sum(); math.Abs(tsum-1.0) > weightTolerance {
		return fmt.Errorf("technical weights sum to %.4f, want 1.0", tsum)
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		return fmt.Errorf("position_size %.2f out of range (0,1]", c.PositionSize)
	}
	if c.StopLoss <= 0 || c.StopLoss >= 1 {
		return fmt.Errorf("stop_loss %.2f out of range (0,1)", c.StopLoss)
	}
	if c.TakeProfit <= 0 || c.TakeProfit > 1 {
		return fmt.Errorf("take_profit %.2f out of range (0,1]", c.TakeProfit)
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("min_notional must be non-negative")
	}
	return nil
}
