// Package store provides data persistence for portfolios, positions,
// snapshots, and trades.
package store

import (
	"context"
	"time"

	"market-analyzer/internal/models"
)

// PortfolioStore persists the simulation state. Implementations must keep
// snapshots and trades append-only; positions are upserted in place as they
// close.
type PortfolioStore interface {
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p *models.Portfolio) error
	DeletePortfolio(ctx context.Context, name string) error

	SavePosition(ctx context.Context, pos *models.Position) error
	GetOpenPosition(ctx context.Context, portfolioID, symbol string) (*models.Position, error)
	ListPositions(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error)

	SaveSnapshot(ctx context.Context, s *models.Snapshot) error
	ListSnapshots(ctx context.Context, portfolioID string) ([]*models.Snapshot, error)
	LatestSnapshot(ctx context.Context, portfolioID string) (*models.Snapshot, error)

	AppendTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, portfolioID string) ([]*models.Trade, error)
	ListTradesSince(ctx context.Context, portfolioID string, since time.Time) ([]*models.Trade, error)

	Close() error
}
