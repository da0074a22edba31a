// Package store defines the persistence interface for the market service.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
)

var (
	// ErrNotFound is returned when a market or position does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrMarketExists is returned when creating a market whose id is taken.
	ErrMarketExists = errors.New("store: market already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// Returned markets and positions are copies; callers may run actions on
// them freely and persist the outcome with CommitAction.
type Store interface {
	// --- Markets ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, m *market.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id string) (*market.Market, error)

	// ListMarkets returns all markets ordered by ID.
	ListMarkets(ctx context.Context) ([]*market.Market, error)

	// --- Positions ---

	// GetPosition retrieves a position by its ID.
	GetPosition(ctx context.Context, id string) (*market.Position, error)

	// GetPositionsByOwner returns all open positions of an owner.
	GetPositionsByOwner(ctx context.Context, owner string) ([]*market.Position, error)

	// --- Actions ---

	// CommitAction atomically stores the markets and positions an action
	// touched and appends its ledger entry. Every market must already
	// exist. Empty positions are deleted.
	CommitAction(ctx context.Context, markets []*market.Market, positions []*market.Position, entry *model.ActionEntry) error

	// GetActionEntriesByMarket returns the ledger of a market, oldest first.
	GetActionEntriesByMarket(ctx context.Context, marketID string) ([]model.ActionEntry, error)

	// GetActionEntriesByOwner returns the ledger entries of an owner.
	GetActionEntriesByOwner(ctx context.Context, owner string) ([]model.ActionEntry, error)
}
