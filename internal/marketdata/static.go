package marketdata

import (
	"context"
	"sort"
	"time"

	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/models"
)

// Static is an in-memory Provider serving preloaded series. Backtests over
// fixed fixtures and tests use it in place of the SQLite cache.
type Static struct {
	prices       map[string][]models.PriceBar
	fundamentals map[string]*models.FundamentalSnapshot
}

// NewStatic creates an empty in-memory provider.
func NewStatic() *Static {
	return &Static{
		prices:       make(map[string][]models.PriceBar),
		fundamentals: make(map[string]*models.FundamentalSnapshot),
	}
}

// SetPrices replaces the series for a symbol. Bars are sorted by date.
func (s *Static) SetPrices(symbol string, bars []models.PriceBar) {
	sorted := make([]models.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	s.prices[symbol] = sorted
}

// SetFundamentals replaces the fundamentals for a symbol.
func (s *Static) SetFundamentals(symbol string, f *models.FundamentalSnapshot) {
	s.fundamentals[symbol] = f
}

func (s *Static) GetPrices(_ context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	series, ok := s.prices[symbol]
	if !ok {
		return nil, apperrors.Unavailable("prices", symbol)
	}
	var out []models.PriceBar
	for _, b := range series {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Static) GetFundamentals(_ context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	if f, ok := s.fundamentals[symbol]; ok {
		return f, nil
	}
	return &models.FundamentalSnapshot{}, nil
}

func (s *Static) LastCloseOnOrBefore(_ context.Context, symbol string, date time.Time) (time.Time, float64, error) {
	series, ok := s.prices[symbol]
	if !ok || len(series) == 0 {
		return time.Time{}, 0, apperrors.Unavailable("prices", symbol)
	}
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].Date.After(date) {
			return series[i].Date, series[i].Close, nil
		}
	}
	return time.Time{}, 0, apperrors.Unavailable("prices", symbol)
}
