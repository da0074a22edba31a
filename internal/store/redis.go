package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *market.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cache(ctx, marketKey(m.ID), m)
	return nil
}

func (s *CachedStore) CommitAction(ctx context.Context, markets []*market.Market, positions []*market.Position, entry *model.ActionEntry) error {
	if err := s.primary.CommitAction(ctx, markets, positions, entry); err != nil {
		return err
	}
	// Invalidate; the next read re-populates from the primary.
	keys := make([]string, 0, len(markets)+2*len(positions))
	for _, m := range markets {
		keys = append(keys, marketKey(m.ID))
	}
	for _, p := range positions {
		keys = append(keys, positionKey(p.ID), ownerKey(p.Owner))
	}
	if len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*market.Market, error) {
	var m market.Market
	if s.lookup(ctx, marketKey(id), &m) {
		return &m, nil
	}

	// Cache miss: read from primary.
	fresh, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, marketKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*market.Position, error) {
	var p market.Position
	if s.lookup(ctx, positionKey(id), &p) {
		return &p, nil
	}

	fresh, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, positionKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetPositionsByOwner(ctx context.Context, owner string) ([]*market.Position, error) {
	var positions []*market.Position
	if s.lookup(ctx, ownerKey(owner), &positions) {
		return positions, nil
	}

	positions, err := s.primary.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, ownerKey(owner), positions)
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]*market.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetActionEntriesByMarket(ctx context.Context, marketID string) ([]model.ActionEntry, error) {
	return s.primary.GetActionEntriesByMarket(ctx, marketID)
}

func (s *CachedStore) GetActionEntriesByOwner(ctx context.Context, owner string) ([]model.ActionEntry, error) {
	return s.primary.GetActionEntriesByOwner(ctx, owner)
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func marketKey(id string) string   { return fmt.Sprintf("market:%s", id) }
func positionKey(id string) string { return fmt.Sprintf("position:%s", id) }
func ownerKey(owner string) string { return fmt.Sprintf("positions:%s", owner) }
