package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"market-analyzer/internal/models"
)

// YahooFetcher fetches daily bars and fundamentals from the Yahoo Finance
// public API.
type YahooFetcher struct {
	client  *http.Client
	baseURL string
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(timeout time.Duration) *YahooFetcher {
	return &YahooFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://query1.finance.yahoo.com",
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices downloads daily bars for [start, end].
func (f *YahooFetcher) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		f.baseURL, url.PathEscape(symbol), start.Unix(), end.AddDate(0, 0, 1).Unix())

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote data for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			// Null row, market holiday or partial data
			continue
		}
		bar := models.PriceBar{
			Date:  Day(time.Unix(ts, 0).UTC()),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// yahooSummary is the response structure from the quoteSummary API.
type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE  yahooValue `json:"trailingPE"`
				PriceToBook yahooValue `json:"priceToBook"`
			} `json:"summaryDetail"`
			FinancialData struct {
				ProfitMargins yahooValue `json:"profitMargins"`
				DebtToEquity  yahooValue `json:"debtToEquity"`
				RevenueGrowth yahooValue `json:"revenueGrowth"`
				ReturnOnEquity yahooValue `json:"returnOnEquity"`
				FreeCashflow  yahooValue `json:"freeCashflow"`
				TotalRevenue  yahooValue `json:"totalRevenue"`
				CurrentRatio  yahooValue `json:"currentRatio"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type yahooValue struct {
	Raw *float64 `json:"raw"`
}

// FetchFundamentals downloads fundamental metrics. Symbols without coverage
// (ETFs, indexes) return a snapshot of nil fields, not an error.
func (f *YahooFetcher) FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,financialData",
		f.baseURL, url.PathEscape(symbol))

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var summary yahooSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return &models.FundamentalSnapshot{}, nil
	}

	r := summary.QuoteSummary.Result[0]
	return &models.FundamentalSnapshot{
		PE:            r.SummaryDetail.TrailingPE.Raw,
		PB:            r.SummaryDetail.PriceToBook.Raw,
		ProfitMargin:  r.FinancialData.ProfitMargins.Raw,
		DebtToEquity:  r.FinancialData.DebtToEquity.Raw,
		RevenueGrowth: r.FinancialData.RevenueGrowth.Raw,
		ROE:           r.FinancialData.ReturnOnEquity.Raw,
		FreeCashFlow:  r.FinancialData.FreeCashflow.Raw,
		TotalRevenue:  r.FinancialData.TotalRevenue.Raw,
		CurrentRatio:  r.FinancialData.CurrentRatio.Raw,
	}, nil
}

func (f *YahooFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d for %s", resp.StatusCode, u)
	}
	return body, nil
}
