package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

func newMarket(t *testing.T, id string) *market.Market {
	t.Helper()
	tokens := market.Tokens{
		IndexToken: "ETH", LongToken: "WETH", ShortToken: "USDC",
		IndexDecimals: 9, LongDecimals: 9, ShortDecimals: 6,
	}
	m, err := market.New(id, "ETH/USD[WETH-USDC]", tokens, 9, market.Config{}, 1_000)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func TestMemoryStore_CreateAndGetMarket(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()

	if err := ms.CreateMarket(ctx, newMarket(t, "m1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ms.CreateMarket(ctx, newMarket(t, "m1")); !errors.Is(err, ErrMarketExists) {
		t.Errorf("expected ErrMarketExists, got %v", err)
	}

	got, err := ms.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tokens.LongToken != "WETH" {
		t.Errorf("expected long token WETH, got %s", got.Tokens.LongToken)
	}

	if _, err := ms.GetMarket(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ms.CreateMarket(ctx, newMarket(t, "m1"))

	m, _ := ms.GetMarket(ctx, "m1")
	p := m.Pools[pool.Primary]
	if err := p.ApplyDeltaToLong(fixed.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	m.Pools[pool.Primary] = p
	m.TotalSupply = fixed.NewUint(5)

	again, _ := ms.GetMarket(ctx, "m1")
	if !again.Pool(pool.Primary).Long().IsZero() {
		t.Error("mutating a returned market must not change the store")
	}
	if !again.TotalSupply.IsZero() {
		t.Error("total supply leaked into the store")
	}
}

func TestMemoryStore_CommitAction(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ms.CreateMarket(ctx, newMarket(t, "m1"))

	m, _ := ms.GetMarket(ctx, "m1")
	m.TotalSupply = fixed.NewUint(42)

	pos := market.NewPosition("p1", "alice", "m1", "USDC", true)
	pos.CollateralAmount = fixed.NewUint(1_000)
	pos.SizeInUsd = fixed.Units(10)

	entry, err := model.NewActionEntry("e1", "increase_position", "m1", map[string]string{"ok": "yes"}, time.Unix(1_000, 0))
	if err != nil {
		t.Fatal(err)
	}
	entry.Owner = "alice"
	entry.PositionID = "p1"

	if err := ms.CommitAction(ctx, []*market.Market{m}, []*market.Position{pos}, entry); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, _ := ms.GetMarket(ctx, "m1")
	if stored.TotalSupply.String() != "42" {
		t.Errorf("expected supply 42, got %s", stored.TotalSupply)
	}
	positions, _ := ms.GetPositionsByOwner(ctx, "alice")
	if len(positions) != 1 || positions[0].ID != "p1" {
		t.Fatalf("expected position p1, got %+v", positions)
	}
	byMarket, _ := ms.GetActionEntriesByMarket(ctx, "m1")
	byOwner, _ := ms.GetActionEntriesByOwner(ctx, "alice")
	if len(byMarket) != 1 || len(byOwner) != 1 {
		t.Errorf("expected one ledger entry, got %d by market and %d by owner", len(byMarket), len(byOwner))
	}
	if string(byMarket[0].Report) != `{"ok":"yes"}` {
		t.Errorf("unexpected report %s", byMarket[0].Report)
	}
}

func TestMemoryStore_CommitDeletesEmptyPositions(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ms.CreateMarket(ctx, newMarket(t, "m1"))

	pos := market.NewPosition("p1", "alice", "m1", "USDC", false)
	pos.CollateralAmount = fixed.NewUint(1)
	ms.CommitAction(ctx, nil, []*market.Position{pos}, nil)

	pos.CollateralAmount = fixed.Zero
	if err := ms.CommitAction(ctx, nil, []*market.Position{pos}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ms.GetPosition(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected closed position to be removed, got %v", err)
	}
}

func TestMemoryStore_CommitUnknownMarketWritesNothing(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ms.CreateMarket(ctx, newMarket(t, "m1"))

	known, _ := ms.GetMarket(ctx, "m1")
	known.TotalSupply = fixed.NewUint(7)
	pos := market.NewPosition("p1", "alice", "m1", "USDC", true)
	pos.CollateralAmount = fixed.NewUint(1)

	err := ms.CommitAction(ctx, []*market.Market{known, newMarket(t, "m2")}, []*market.Position{pos},
		&model.ActionEntry{ID: "e1", MarketID: "m1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, _ := ms.GetMarket(ctx, "m1")
	if !stored.TotalSupply.IsZero() {
		t.Error("market was written despite failed commit")
	}
	if _, err := ms.GetPosition(ctx, "p1"); err == nil {
		t.Error("position was written despite failed commit")
	}
	entries, _ := ms.GetActionEntriesByMarket(ctx, "m1")
	if len(entries) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(entries))
	}
}

func TestMemoryStore_ListMarketsSorted(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		ms.CreateMarket(ctx, newMarket(t, id))
	}
	markets, _ := ms.ListMarkets(ctx)
	if len(markets) != 3 || markets[0].ID != "a" || markets[2].ID != "c" {
		t.Errorf("unexpected order: %v", []string{markets[0].ID, markets[1].ID, markets[2].ID})
	}
}
