package trading

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-analyzer/internal/analysis/scoring"
	apperrors "market-analyzer/internal/errors"
	"market-analyzer/internal/logging"
	"market-analyzer/internal/marketdata"
	"market-analyzer/internal/models"
	"market-analyzer/internal/store"
)

// scoreLookbackDays is the calendar window fetched behind each simulated
// day so the slow indicators have history to work with.
const scoreLookbackDays = 400

// Simulator replays a fixed symbol universe day by day against one shared
// cash pool, persisting positions, trades, and daily snapshots as it goes.
type Simulator struct {
	store    store.PortfolioStore
	provider marketdata.Provider
	logger   zerolog.Logger
}

// NewSimulator creates a portfolio simulator.
func NewSimulator(st store.PortfolioStore, provider marketdata.Provider, logger zerolog.Logger) *Simulator {
	return &Simulator{store: st, provider: provider, logger: logger}
}

// SimulationResult summarizes a completed simulation run.
type SimulationResult struct {
	PortfolioName string
	TradesMade    int
	FinalValue    float64
	ReturnPct     float64
}

// Run simulates the portfolio from its start date through end, weekdays
// only. Each day runs the exit pass, then the entry pass in universe order,
// then writes the daily snapshot. Re-running over an already simulated
// range replays the trade logic from current state and will duplicate
// trades; that is a documented limitation of the replay model.
func (s *Simulator) Run(ctx context.Context, portfolioName string, end time.Time) (*SimulationResult, error) {
	p, err := s.store.GetPortfolio(ctx, portfolioName)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(p.Config)
	if err != nil {
		return nil, err
	}
	logger := logging.WithPortfolio(s.logger, p.Name)

	openList, err := s.store.ListPositions(ctx, p.ID, models.PositionOpen)
	if err != nil {
		return nil, err
	}
	open := make(map[string]*models.Position, len(openList))
	for _, pos := range openList {
		open[pos.Symbol] = pos
	}

	run := &simRun{
		sim:     s,
		scorer:  scorer,
		logger:  logger,
		p:       p,
		cash:    p.Cash,
		open:    open,
		endDate: marketdata.Day(end),
	}

	day := nextWeekday(marketdata.Day(p.StartDate))
	var lastSnapshot *models.Snapshot
	for !day.After(run.endDate) {
		if err := run.exitPass(ctx, day); err != nil {
			return nil, err
		}
		if err := run.entryPass(ctx, day); err != nil {
			return nil, err
		}
		snap, err := run.snapshot(ctx, day)
		if err != nil {
			return nil, err
		}
		lastSnapshot = snap
		day = nextWeekday(day.AddDate(0, 0, 1))
	}

	p.Cash = run.cash
	p.EndDate = run.endDate
	if err := s.store.UpdatePortfolio(ctx, p); err != nil {
		return nil, err
	}

	result := &SimulationResult{
		PortfolioName: p.Name,
		TradesMade:    run.tradesMade,
	}
	if lastSnapshot != nil {
		result.FinalValue = lastSnapshot.TotalValue
		result.ReturnPct = lastSnapshot.ReturnPct
	} else {
		result.FinalValue = run.cash
		result.ReturnPct = p.ReturnPct(run.cash)
	}
	logger.Info().
		Int("trades", result.TradesMade).
		Float64("final_value", result.FinalValue).
		Float64("return_pct", result.ReturnPct).
		Msg("Simulation complete")
	return result, nil
}

// simRun carries the mutable state of one simulation run.
type simRun struct {
	sim        *Simulator
	scorer     *scoring.Scorer
	logger     zerolog.Logger
	p          *models.Portfolio
	cash       float64
	open       map[string]*models.Position
	endDate    time.Time
	tradesMade int
}

// exitPass evaluates every open position against the day's forward-filled
// price. Per-symbol failures skip that symbol, never the day.
func (r *simRun) exitPass(ctx context.Context, day time.Time) error {
	for _, symbol := range r.openSymbols() {
		pos := r.open[symbol]
		price, ok := r.priceOn(ctx, symbol, day)
		if !ok {
			continue
		}

		decision := evaluateExit(pos, price, r.scorer.Config().SellThreshold, func() (float64, bool) {
			total, err := r.totalScore(ctx, symbol, day)
			if err != nil {
				r.logger.Warn().Str("symbol", symbol).Err(err).Msg("Scoring failed during exit pass")
				return 0, false
			}
			return total, true
		})
		if !decision.exit {
			continue
		}

		if err := pos.Close(day, price, decision.reason); err != nil {
			return err
		}
		r.cash += pos.Value(price)
		if err := r.sim.store.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := r.appendTrade(ctx, day, symbol, models.ActionSell, price, pos.Shares, 0, decision.reason); err != nil {
			return err
		}
		delete(r.open, symbol)
		logging.LogTrade(r.logger, day.Format(marketdata.DateFormat), symbol,
			string(models.ActionSell), pos.Shares, price, 0, decision.reason)
	}
	return nil
}

// entryPass scans the universe in configured order. Entries consume cash
// sequentially, so earlier symbols are funded first by design.
func (r *simRun) entryPass(ctx context.Context, day time.Time) error {
	cfg := r.scorer.Config()
	for _, symbol := range cfg.Universe {
		if _, held := r.open[symbol]; held {
			continue
		}

		total, err := r.totalScore(ctx, symbol, day)
		if err != nil {
			if !apperrors.IsUnavailable(err) {
				r.logger.Warn().Str("symbol", symbol).Err(err).Msg("Scoring failed during entry pass")
			}
			continue
		}
		if total < cfg.BuyThreshold {
			continue
		}

		price, ok := r.priceOn(ctx, symbol, day)
		if !ok {
			continue
		}
		shares := sizeEntry(r.cash, price, cfg)
		if shares == 0 {
			logging.LogSkippedEntry(r.logger, day.Format(marketdata.DateFormat), symbol, r.cash, price)
			continue
		}

		pos, err := models.NewPosition(r.p.ID, symbol, day, price, shares, cfg.StopLoss, cfg.TakeProfit)
		if err != nil {
			return err
		}
		r.cash -= pos.CapitalInvested
		if err := r.sim.store.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := r.appendTrade(ctx, day, symbol, models.ActionBuy, price, shares, total, string(models.SignalBuy)); err != nil {
			return err
		}
		r.open[symbol] = pos
		logging.LogTrade(r.logger, day.Format(marketdata.DateFormat), symbol,
			string(models.ActionBuy), shares, price, total, string(models.SignalBuy))
	}
	return nil
}

// snapshot values every open position at the day's forward-filled price and
// appends the daily record. A symbol with no usable price at all values at
// its entry price, never zero.
func (r *simRun) snapshot(ctx context.Context, day time.Time) (*models.Snapshot, error) {
	var positionsValue float64
	for _, symbol := range r.openSymbols() {
		pos := r.open[symbol]
		price, ok := r.priceOn(ctx, symbol, day)
		if !ok {
			price = pos.EntryPrice
		}
		positionsValue += pos.Value(price)
	}

	snap := &models.Snapshot{
		PortfolioID:    r.p.ID,
		Date:           day,
		TotalValue:     r.cash + positionsValue,
		Cash:           r.cash,
		PositionsValue: positionsValue,
		NumPositions:   len(r.open),
	}
	snap.ReturnPct = r.p.ReturnPct(snap.TotalValue)
	if err := r.sim.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// priceOn resolves a symbol's price for a day, forward-filling from the
// latest close on or before it. Missing data skips the symbol for the day.
func (r *simRun) priceOn(ctx context.Context, symbol string, day time.Time) (float64, bool) {
	_, close, err := r.sim.provider.LastCloseOnOrBefore(ctx, symbol, day)
	if err != nil {
		if !apperrors.IsUnavailable(err) {
			r.logger.Warn().Str("symbol", symbol).Err(err).Msg("Price lookup failed")
		}
		return 0, false
	}
	return close, true
}

// totalScore computes the composite score for a symbol as of the given day,
// using only bars up to and including it.
func (r *simRun) totalScore(ctx context.Context, symbol string, day time.Time) (float64, error) {
	bars, err := r.sim.provider.GetPrices(ctx, symbol, day.AddDate(0, 0, -scoreLookbackDays), day)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, apperrors.Unavailable("prices", symbol)
	}
	fundamentals, err := r.sim.provider.GetFundamentals(ctx, symbol)
	if err != nil {
		fundamentals = nil
	}
	composite, _ := r.scorer.Score(bars, fundamentals)
	return composite.Total, nil
}

func (r *simRun) appendTrade(ctx context.Context, day time.Time, symbol string, action models.TradeAction, price float64, shares int64, score float64, reason string) error {
	r.tradesMade++
	return r.sim.store.AppendTrade(ctx, &models.Trade{
		ID:          uuid.NewString(),
		PortfolioID: r.p.ID,
		Date:        day,
		Symbol:      symbol,
		Action:      action,
		Price:       price,
		Shares:      shares,
		Value:       float64(shares) * price,
		Score:       score,
		Reason:      reason,
	})
}

// openSymbols returns held symbols in a deterministic order: universe order
// first, then any others sorted.
func (r *simRun) openSymbols() []string {
	seen := make(map[string]bool, len(r.open))
	var symbols []string
	for _, symbol := range r.scorer.Config().Universe {
		if _, held := r.open[symbol]; held {
			symbols = append(symbols, symbol)
			seen[symbol] = true
		}
	}
	var rest []string
	for symbol := range r.open {
		if !seen[symbol] {
			rest = append(rest, symbol)
		}
	}
	sort.Strings(rest)
	return append(symbols, rest...)
}

// nextWeekday returns d unless it falls on a weekend, in which case the
// following Monday.
func nextWeekday(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
