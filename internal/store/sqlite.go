package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/models"
)

const dateFormat = "2006-01-02"

// SQLiteStore implements PortfolioStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based portfolio store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		initial_capital REAL NOT NULL,
		cash REAL NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		config TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
		symbol TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		entry_price REAL NOT NULL,
		shares INTEGER NOT NULL,
		capital_invested REAL NOT NULL,
		stop_loss_price REAL NOT NULL,
		take_profit_price REAL NOT NULL,
		status TEXT NOT NULL,
		exit_date TEXT,
		exit_price REAL,
		exit_reason TEXT,
		pnl REAL,
		pnl_pct REAL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_portfolio ON positions(portfolio_id, status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open
		ON positions(portfolio_id, symbol) WHERE status = 'open';

	CREATE TABLE IF NOT EXISTS snapshots (
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
		date TEXT NOT NULL,
		total_value REAL NOT NULL,
		cash REAL NOT NULL,
		positions_value REAL NOT NULL,
		num_positions INTEGER NOT NULL,
		return_pct REAL NOT NULL,
		PRIMARY KEY (portfolio_id, date)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
		date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		price REAL NOT NULL,
		shares INTEGER NOT NULL,
		value REAL NOT NULL,
		score REAL NOT NULL,
		reason TEXT NOT NULL,
		seq INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_trades_portfolio ON trades(portfolio_id, date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreatePortfolio inserts a new portfolio. The name must be unique.
func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return apperrors.Wrap(err, "encoding portfolio config")
	}
	endDate := ""
	if !p.EndDate.IsZero() {
		endDate = p.EndDate.Format(dateFormat)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, name, initial_capital, cash, start_date, end_date, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.InitialCapital, p.Cash,
		p.StartDate.Format(dateFormat), endDate, string(cfg), p.CreatedAt)
	return apperrors.Wrap(err, "creating portfolio")
}

// GetPortfolio fetches a portfolio by name.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, initial_capital, cash, start_date, end_date, config, created_at
		FROM portfolios WHERE name = ?`, name)
	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPortfolioNotFound
	}
	return p, err
}

// ListPortfolios returns all portfolios ordered by creation time.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, initial_capital, cash, start_date, end_date, config, created_at
		FROM portfolios ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing portfolios")
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (*models.Portfolio, error) {
	var p models.Portfolio
	var startDate, endDate, cfg string
	if err := row.Scan(&p.ID, &p.Name, &p.InitialCapital, &p.Cash,
		&startDate, &endDate, &cfg, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.StartDate, err = time.ParseInLocation(dateFormat, startDate, time.UTC); err != nil {
		return nil, apperrors.Wrap(err, "parsing portfolio start date")
	}
	if endDate != "" {
		if p.EndDate, err = time.ParseInLocation(dateFormat, endDate, time.UTC); err != nil {
			return nil, apperrors.Wrap(err, "parsing portfolio end date")
		}
	}
	if err := json.Unmarshal([]byte(cfg), &p.Config); err != nil {
		return nil, apperrors.Wrap(err, "decoding portfolio config")
	}
	return &p, nil
}

// UpdatePortfolio persists mutable portfolio state (cash, end date, config).
func (s *SQLiteStore) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return apperrors.Wrap(err, "encoding portfolio config")
	}
	endDate := ""
	if !p.EndDate.IsZero() {
		endDate = p.EndDate.Format(dateFormat)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE portfolios SET cash = ?, end_date = ?, config = ? WHERE id = ?`,
		p.Cash, endDate, string(cfg), p.ID)
	if err != nil {
		return apperrors.Wrap(err, "updating portfolio")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}

// DeletePortfolio removes a portfolio and all of its dependent rows.
func (s *SQLiteStore) DeletePortfolio(ctx context.Context, name string) error {
	p, err := s.GetPortfolio(ctx, name)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "beginning delete transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM trades WHERE portfolio_id = ?`,
		`DELETE FROM snapshots WHERE portfolio_id = ?`,
		`DELETE FROM positions WHERE portfolio_id = ?`,
		`DELETE FROM portfolios WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, p.ID); err != nil {
			return apperrors.Wrap(err, "deleting portfolio")
		}
	}
	return tx.Commit()
}

// SavePosition upserts a position row.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *models.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	exitDate := ""
	if !pos.ExitDate.IsZero() {
		exitDate = pos.ExitDate.Format(dateFormat)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions
		(id, portfolio_id, symbol, entry_date, entry_price, shares, capital_invested,
		 stop_loss_price, take_profit_price, status, exit_date, exit_price, exit_reason, pnl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.PortfolioID, pos.Symbol, pos.EntryDate.Format(dateFormat),
		pos.EntryPrice, pos.Shares, pos.CapitalInvested,
		pos.StopLossPrice, pos.TakeProfitPrice, string(pos.Status),
		exitDate, pos.ExitPrice, pos.ExitReason, pos.PnL, pos.PnLPct)
	return apperrors.Wrap(err, "saving position")
}

// GetOpenPosition fetches the open position for a symbol, if any.
func (s *SQLiteStore) GetOpenPosition(ctx context.Context, portfolioID, symbol string) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, symbol, entry_date, entry_price, shares, capital_invested,
		       stop_loss_price, take_profit_price, status, exit_date, exit_price, exit_reason, pnl, pnl_pct
		FROM positions WHERE portfolio_id = ? AND symbol = ? AND status = 'open'`,
		portfolioID, symbol)
	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPositionNotFound
	}
	return pos, err
}

// ListPositions returns positions for a portfolio, optionally filtered by
// status. An empty status returns everything.
func (s *SQLiteStore) ListPositions(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error) {
	query := `
		SELECT id, portfolio_id, symbol, entry_date, entry_price, shares, capital_invested,
		       stop_loss_price, take_profit_price, status, exit_date, exit_price, exit_reason, pnl, pnl_pct
		FROM positions WHERE portfolio_id = ?`
	args := []interface{}{portfolioID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY entry_date, symbol`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing positions")
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var pos models.Position
	var entryDate, status string
	var exitDate, exitReason sql.NullString
	var exitPrice, pnl, pnlPct sql.NullFloat64
	if err := row.Scan(&pos.ID, &pos.PortfolioID, &pos.Symbol, &entryDate,
		&pos.EntryPrice, &pos.Shares, &pos.CapitalInvested,
		&pos.StopLossPrice, &pos.TakeProfitPrice, &status,
		&exitDate, &exitPrice, &exitReason, &pnl, &pnlPct); err != nil {
		return nil, err
	}
	var err error
	if pos.EntryDate, err = time.ParseInLocation(dateFormat, entryDate, time.UTC); err != nil {
		return nil, apperrors.Wrap(err, "parsing position entry date")
	}
	pos.Status = models.PositionStatus(status)
	if exitDate.Valid && exitDate.String != "" {
		if pos.ExitDate, err = time.ParseInLocation(dateFormat, exitDate.String, time.UTC); err != nil {
			return nil, apperrors.Wrap(err, "parsing position exit date")
		}
	}
	pos.ExitPrice = exitPrice.Float64
	pos.ExitReason = exitReason.String
	pos.PnL = pnl.Float64
	pos.PnLPct = pnlPct.Float64
	return &pos, nil
}

// SaveSnapshot upserts the daily snapshot for a portfolio.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots
		(portfolio_id, date, total_value, cash, positions_value, num_positions, return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.PortfolioID, snap.Date.Format(dateFormat), snap.TotalValue,
		snap.Cash, snap.PositionsValue, snap.NumPositions, snap.ReturnPct)
	return apperrors.Wrap(err, "saving snapshot")
}

// ListSnapshots returns snapshots ordered by date.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, portfolioID string) ([]*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT portfolio_id, date, total_value, cash, positions_value, num_positions, return_pct
		FROM snapshots WHERE portfolio_id = ? ORDER BY date`, portfolioID)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing snapshots")
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// LatestSnapshot returns the most recent snapshot, or ErrDataUnavailable
// when none exist yet.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, portfolioID string) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT portfolio_id, date, total_value, cash, positions_value, num_positions, return_pct
		FROM snapshots WHERE portfolio_id = ? ORDER BY date DESC LIMIT 1`, portfolioID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDataUnavailable
	}
	return snap, err
}

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	var snap models.Snapshot
	var date string
	if err := row.Scan(&snap.PortfolioID, &date, &snap.TotalValue, &snap.Cash,
		&snap.PositionsValue, &snap.NumPositions, &snap.ReturnPct); err != nil {
		return nil, err
	}
	var err error
	if snap.Date, err = time.ParseInLocation(dateFormat, date, time.UTC); err != nil {
		return nil, apperrors.Wrap(err, "parsing snapshot date")
	}
	return &snap, nil
}

// AppendTrade writes one immutable trade log row.
func (s *SQLiteStore) AppendTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, portfolio_id, date, symbol, action, price, shares, value, score, reason, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM trades WHERE portfolio_id = ?))`,
		t.ID, t.PortfolioID, t.Date.Format(dateFormat), t.Symbol, string(t.Action),
		t.Price, t.Shares, t.Value, t.Score, t.Reason, t.PortfolioID)
	return apperrors.Wrap(err, "appending trade")
}

// ListTrades returns the full trade log in execution order.
func (s *SQLiteStore) ListTrades(ctx context.Context, portfolioID string) ([]*models.Trade, error) {
	return s.listTrades(ctx, portfolioID, time.Time{})
}

// ListTradesSince returns trades on or after the given date.
func (s *SQLiteStore) ListTradesSince(ctx context.Context, portfolioID string, since time.Time) ([]*models.Trade, error) {
	return s.listTrades(ctx, portfolioID, since)
}

func (s *SQLiteStore) listTrades(ctx context.Context, portfolioID string, since time.Time) ([]*models.Trade, error) {
	query := `
		SELECT id, portfolio_id, date, symbol, action, price, shares, value, score, reason
		FROM trades WHERE portfolio_id = ?`
	args := []interface{}{portfolioID}
	if !since.IsZero() {
		query += ` AND date >= ?`
		args = append(args, since.Format(dateFormat))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing trades")
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		var date, action string
		if err := rows.Scan(&t.ID, &t.PortfolioID, &date, &t.Symbol, &action,
			&t.Price, &t.Shares, &t.Value, &t.Score, &t.Reason); err != nil {
			return nil, apperrors.Wrap(err, "scanning trade row")
		}
		if t.Date, err = time.ParseInLocation(dateFormat, date, time.UTC); err != nil {
			return nil, apperrors.Wrap(err, "parsing trade date")
		}
		t.Action = models.TradeAction(action)
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}
