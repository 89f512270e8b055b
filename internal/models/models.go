// Package models provides domain models for the market analyzer.
package models

import (
	"time"
)

// Signal represents a trading decision derived from a composite score.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
	SignalSell Signal = "SELL"
)

// TradeAction represents the side of an executed trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Exit and entry reasons recorded on trades and closed positions.
const (
	ReasonStopLoss    = "STOP_LOSS"
	ReasonTakeProfit  = "TAKE_PROFIT"
	ReasonSellSignal  = "SELL_SIGNAL"
	ReasonEndOfPeriod = "END_OF_PERIOD"
	ReasonLowScore    = "LOW_SCORE"
	ReasonHighScore   = "HIGH_SCORE"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// PriceBar represents one trading day of OHLCV data.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// FundamentalSnapshot holds the fundamental metrics known for a symbol.
// Every field is optional; a nil pointer means the provider had no value.
type FundamentalSnapshot struct {
	PE            *float64
	PB            *float64
	ProfitMargin  *float64
	DebtToEquity  *float64
	RevenueGrowth *float64
	ROE           *float64
	FreeCashFlow  *float64
	TotalRevenue  *float64
	CurrentRatio  *float64
}

// IndicatorSnapshot holds per-indicator sub-scores in [0,10].
// A nil pointer means the indicator was undefined for the window
// (insufficient history).
type IndicatorSnapshot struct {
	RSI           *float64
	MACD          *float64
	Bollinger     *float64
	Trend         *float64
	Volume        *float64
	ADX           *float64
	WilliamsR     *float64
	OBV           *float64
	RangePosition *float64
}

// CompositeScore holds the three composite scores and their weighted total,
// each in [0,10].
type CompositeScore struct {
	Technical   float64
	Fundamental float64
	Sentiment   float64
	Total       float64
}

// PriceTargets holds score-derived target and protective stop prices.
type PriceTargets struct {
	Target   float64
	StopLoss float64
}

// Snapshot is an append-only daily record of portfolio value.
type Snapshot struct {
	PortfolioID    string
	Date           time.Time
	TotalValue     float64
	Cash           float64
	PositionsValue float64
	NumPositions   int
	ReturnPct      float64
}

// Trade is an immutable log entry for an executed BUY or SELL.
type Trade struct {
	ID          string
	PortfolioID string
	Date        time.Time
	Symbol      string
	Action      TradeAction
	Price       float64
	Shares      int64
	Value       float64
	Score       float64
	Reason      string
}
