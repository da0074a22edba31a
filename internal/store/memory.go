package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[string]*market.Market
	positions map[string]*market.Position
	ledger    []model.ActionEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[string]*market.Market),
		positions: make(map[string]*market.Position),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *market.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMarketExists, m.ID)
	}
	s.markets[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*market.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, id)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]*market.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]*market.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, m.Clone())
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*market.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPositionsByOwner(_ context.Context, owner string) ([]*market.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*market.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CommitAction applies all writes under one lock; nothing is written when a
// market is missing.
func (s *MemoryStore) CommitAction(_ context.Context, markets []*market.Market, positions []*market.Position, entry *model.ActionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range markets {
		if _, ok := s.markets[m.ID]; !ok {
			return fmt.Errorf("%w: market %s", ErrNotFound, m.ID)
		}
	}
	for _, m := range markets {
		s.markets[m.ID] = m.Clone()
	}
	for _, p := range positions {
		if p.IsEmpty() {
			delete(s.positions, p.ID)
			continue
		}
		cp := *p
		s.positions[p.ID] = &cp
	}
	if entry != nil {
		s.ledger = append(s.ledger, *entry)
	}
	return nil
}

func (s *MemoryStore) GetActionEntriesByMarket(_ context.Context, marketID string) ([]model.ActionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ActionEntry
	for _, e := range s.ledger {
		if e.MarketID == marketID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetActionEntriesByOwner(_ context.Context, owner string) ([]model.ActionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ActionEntry
	for _, e := range s.ledger {
		if e.Owner == owner {
			result = append(result, e)
		}
	}
	return result, nil
}
