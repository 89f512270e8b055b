package marketdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/models"
)

// Cache is a SQLite-backed price and fundamentals cache sitting in front of
// an upstream Fetcher. It implements Provider: reads come from the local
// database and the upstream is only hit when a symbol has no local history
// at all for the requested range.
type Cache struct {
	db      *sql.DB
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewCache opens or creates the cache database at dbPath. fetcher may be nil
// for a read-only cache that never goes upstream.
func NewCache(dbPath string, fetcher Fetcher, logger zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{db: db, fetcher: fetcher, logger: logger}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS price_history (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL,
		high REAL,
		low REAL,
		close REAL,
		volume INTEGER,
		cached_at TEXT DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, date)
	);

	CREATE TABLE IF NOT EXISTS fundamentals (
		symbol TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		cached_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(symbol, date);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetPrices returns cached daily bars for [start, end]. With no local rows
// in range and no earlier history either, the upstream is fetched once and
// the result cached. An in-range gap with earlier history is treated as a
// non-trading period, not a reason to go upstream.
func (c *Cache) GetPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	bars, err := c.readPrices(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 || c.fetcher == nil {
		return bars, nil
	}

	if _, _, err := c.LastCloseOnOrBefore(ctx, symbol, start); err == nil {
		// We have older history, the gap is a weekend or holiday
		return bars, nil
	}

	if err := c.fill(ctx, symbol, start, end); err != nil {
		return nil, err
	}
	return c.readPrices(ctx, symbol, start, end)
}

func (c *Cache) readPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM price_history
		WHERE symbol = ? AND date BETWEEN ? AND ?
		ORDER BY date`,
		symbol, start.Format(DateFormat), end.Format(DateFormat))
	if err != nil {
		return nil, apperrors.Wrap(err, "querying price history")
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var dateStr string
		var b models.PriceBar
		if err := rows.Scan(&dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, apperrors.Wrap(err, "scanning price row")
		}
		date, err := time.ParseInLocation(DateFormat, dateStr, time.UTC)
		if err != nil {
			return nil, apperrors.Wrapf(err, "parsing cached date %q", dateStr)
		}
		b.Date = date
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// fill downloads bars from the upstream and upserts them.
func (c *Cache) fill(ctx context.Context, symbol string, start, end time.Time) error {
	c.logger.Debug().Str("symbol", symbol).
		Str("start", start.Format(DateFormat)).
		Str("end", end.Format(DateFormat)).
		Msg("Fetching prices from upstream")

	bars, err := c.fetcher.FetchPrices(ctx, symbol, start, end)
	if err != nil {
		return apperrors.NewDataError("prices", symbol, "upstream fetch failed", err)
	}
	if len(bars) == 0 {
		return apperrors.Unavailable("prices", symbol)
	}
	return c.PutPrices(ctx, symbol, bars)
}

// PutPrices upserts bars into the cache.
func (c *Cache) PutPrices(ctx context.Context, symbol string, bars []models.PriceBar) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "beginning cache transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO price_history (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.Wrap(err, "preparing price upsert")
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Date.Format(DateFormat),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return apperrors.Wrap(err, "upserting price row")
		}
	}
	return tx.Commit()
}

// LastCloseOnOrBefore returns the most recent cached close at or before the
// given date.
func (c *Cache) LastCloseOnOrBefore(ctx context.Context, symbol string, date time.Time) (time.Time, float64, error) {
	var dateStr string
	var close float64
	err := c.db.QueryRowContext(ctx, `
		SELECT date, close FROM price_history
		WHERE symbol = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1`,
		symbol, date.Format(DateFormat)).Scan(&dateStr, &close)
	if err == sql.ErrNoRows {
		return time.Time{}, 0, apperrors.Unavailable("prices", symbol)
	}
	if err != nil {
		return time.Time{}, 0, apperrors.Wrap(err, "querying last close")
	}
	d, err := time.ParseInLocation(DateFormat, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, 0, apperrors.Wrapf(err, "parsing cached date %q", dateStr)
	}
	return d, close, nil
}

// GetFundamentals returns cached fundamentals, fetching them once from the
// upstream on a miss. Symbols the upstream cannot serve cache an empty
// snapshot so the miss is not retried every scoring call.
func (c *Cache) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	var data string
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM fundamentals WHERE symbol = ?`, symbol).Scan(&data)
	if err == nil {
		var f models.FundamentalSnapshot
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, apperrors.Wrapf(err, "decoding cached fundamentals for %s", symbol)
		}
		return &f, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.Wrap(err, "querying fundamentals")
	}
	if c.fetcher == nil {
		return &models.FundamentalSnapshot{}, nil
	}

	f, err := c.fetcher.FetchFundamentals(ctx, symbol)
	if err != nil {
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Fundamentals fetch failed")
		f = &models.FundamentalSnapshot{}
	}
	encoded, err := json.Marshal(f)
	if err != nil {
		return nil, apperrors.Wrap(err, "encoding fundamentals")
	}
	if _, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO fundamentals (symbol, data) VALUES (?, ?)`,
		symbol, string(encoded)); err != nil {
		return nil, apperrors.Wrap(err, "caching fundamentals")
	}
	return f, nil
}

// Preload fetches and caches history for a whole universe. Per-symbol
// failures are collected, not fatal.
func (c *Cache) Preload(ctx context.Context, symbols []string, start, end time.Time) (int, []string) {
	var failed []string
	for _, symbol := range symbols {
		if err := c.preloadSymbol(ctx, symbol, start, end); err != nil {
			c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Preload failed")
			failed = append(failed, symbol)
		}
	}
	return len(symbols) - len(failed), failed
}

func (c *Cache) preloadSymbol(ctx context.Context, symbol string, start, end time.Time) error {
	if c.fetcher == nil {
		return fmt.Errorf("no upstream fetcher configured")
	}

	// Skip the download when most of the range is already cached
	var count int
	if err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM price_history
		WHERE symbol = ? AND date BETWEEN ? AND ?`,
		symbol, start.Format(DateFormat), end.Format(DateFormat)).Scan(&count); err != nil {
		return apperrors.Wrap(err, "counting cached rows")
	}
	expectedTradingDays := end.Sub(start).Hours() / 24 * 5 / 7
	if float64(count) > expectedTradingDays*0.7 {
		return nil
	}

	if err := c.fill(ctx, symbol, start, end); err != nil {
		return err
	}
	if _, err := c.GetFundamentals(ctx, symbol); err != nil {
		return err
	}
	c.logger.Info().Str("symbol", symbol).Msg("Symbol preloaded")
	return nil
}

// CacheStats summarizes cache contents.
type CacheStats struct {
	Symbols   int
	PriceRows int
	OldestDay string
	NewestDay string
}

// Stats returns cache statistics.
func (c *Cache) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT symbol), COUNT(*) FROM price_history`).
		Scan(&stats.Symbols, &stats.PriceRows); err != nil {
		return nil, apperrors.Wrap(err, "querying cache stats")
	}
	if stats.PriceRows > 0 {
		if err := c.db.QueryRowContext(ctx,
			`SELECT MIN(date), MAX(date) FROM price_history`).
			Scan(&stats.OldestDay, &stats.NewestDay); err != nil {
			return nil, apperrors.Wrap(err, "querying cache date range")
		}
	}
	return stats, nil
}

// Clear removes cached rows: everything, one symbol, or rows cached before
// a cutoff.
func (c *Cache) Clear(ctx context.Context, symbol string, olderThanDays int) error {
	switch {
	case symbol != "":
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM price_history WHERE symbol = ?`, symbol); err != nil {
			return apperrors.Wrap(err, "clearing price history")
		}
		_, err := c.db.ExecContext(ctx,
			`DELETE FROM fundamentals WHERE symbol = ?`, symbol)
		return apperrors.Wrap(err, "clearing fundamentals")
	case olderThanDays > 0:
		cutoff := time.Now().AddDate(0, 0, -olderThanDays).Format("2006-01-02 15:04:05")
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM price_history WHERE cached_at < ?`, cutoff); err != nil {
			return apperrors.Wrap(err, "clearing old price history")
		}
		_, err := c.db.ExecContext(ctx,
			`DELETE FROM fundamentals WHERE cached_at < ?`, cutoff)
		return apperrors.Wrap(err, "clearing old fundamentals")
	default:
		if _, err := c.db.ExecContext(ctx, `DELETE FROM price_history`); err != nil {
			return apperrors.Wrap(err, "clearing price history")
		}
		_, err := c.db.ExecContext(ctx, `DELETE FROM fundamentals`)
		return apperrors.Wrap(err, "clearing fundamentals")
	}
}
