// Package marketdata provides access to daily price history and fundamental
// metrics, with a SQLite cache in front of the upstream source.
package marketdata

import (
	"context"
	"time"

	"market-analyzer/internal/models"
)

// DateFormat is the canonical day key used throughout the data layer.
const DateFormat = "2006-01-02"

// Provider is the market data surface the engines consume. "No bar for a
// date" must surface as a gap or a forward-filled close, never as a zero
// price.
type Provider interface {
	// GetPrices returns daily bars for [start, end], ordered by date.
	GetPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error)

	// GetFundamentals returns the known fundamental metrics for a symbol.
	// Missing metrics are nil fields, not zeros.
	GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error)

	// LastCloseOnOrBefore returns the most recent close at or before the
	// given date. Valuation on non-trading days goes through here so a
	// missing bar is forward-filled rather than priced at zero.
	LastCloseOnOrBefore(ctx context.Context, symbol string, date time.Time) (time.Time, float64, error)
}

// Fetcher is an upstream source the cache fills itself from.
type Fetcher interface {
	Name() string
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error)
	FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error)
}

// Day truncates a timestamp to its UTC trading day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
