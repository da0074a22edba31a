package market

import (
	"errors"
	"reflect"
	"testing"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

func u(x uint64) fixed.Uint { return fixed.NewUint(x) }

func newTestMarket(t *testing.T, tokens Tokens) *Market {
	t.Helper()
	m, err := New("m1", "ETH/USD[ETH-USDC]", tokens, 9, Config{}, 1_000)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

var ethUsdc = Tokens{
	IndexToken: "ETH", LongToken: "ETH", ShortToken: "USDC",
	IndexDecimals: 18, LongDecimals: 18, ShortDecimals: 6,
}

var btcPure = Tokens{
	IndexToken: "BTC", LongToken: "BTC", ShortToken: "BTC",
	IndexDecimals: 8, LongDecimals: 8, ShortDecimals: 8,
}

// --- Price ---

func TestPrice_MidWithinBounds(t *testing.T) {
	tests := []Price{
		{Min: u(1), Max: u(2)},
		{Min: u(99), Max: u(100)},
		{Min: fixed.Units(1), Max: fixed.Units(3)},
		{Min: fixed.MaxUint.SaturatingSub(u(10)), Max: fixed.MaxUint},
	}
	for _, p := range tests {
		mid, err := p.Mid()
		if err != nil {
			// Only the near-max pair may overflow, and then validation must reject it.
			if p.Validate() == nil {
				t.Errorf("%+v: mid failed but price validated", p)
			}
			continue
		}
		if mid.Lt(p.Min) || mid.Gt(p.Max) {
			t.Errorf("%+v: mid %s outside bounds", p, mid)
		}
	}
}

func TestPrice_Validate(t *testing.T) {
	tests := []struct {
		name  string
		price Price
		ok    bool
	}{
		{"valid", Price{Min: u(1), Max: u(2)}, true},
		{"equal", NewPrice(u(5)), true},
		{"zero min", Price{Min: u(0), Max: u(2)}, false},
		{"zero max", Price{Min: u(1), Max: u(0)}, false},
		{"inverted", Price{Min: u(3), Max: u(2)}, false},
	}
	for _, tt := range tests {
		err := tt.price.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: got %v", tt.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: expected invalid argument, got %v", tt.name, err)
		}
	}
}

func TestPrice_PickForPnl(t *testing.T) {
	p := Price{Min: u(1), Max: u(2)}
	if !p.PickForPnl(true, true).Eq(u(2)) || !p.PickForPnl(true, false).Eq(u(1)) {
		t.Error("long pnl should maximize with max price")
	}
	if !p.PickForPnl(false, true).Eq(u(1)) || !p.PickForPnl(false, false).Eq(u(2)) {
		t.Error("short pnl should maximize with min price")
	}
}

// --- Clocks ---

func TestClocks_JustPassedSecondsOnce(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	r, err := NewRevertible(m, FixedClock(1_060))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Discard()

	if got := r.PassedSeconds(BorrowingClock); got != 60 {
		t.Errorf("passed: got %d", got)
	}
	if got := r.PassedSeconds(BorrowingClock); got != 60 {
		t.Errorf("passed should be idempotent, got %d", got)
	}
	if got := r.JustPassedSeconds(BorrowingClock); got != 60 {
		t.Errorf("first just passed: got %d", got)
	}
	if got := r.JustPassedSeconds(BorrowingClock); got != 0 {
		t.Errorf("second just passed: got %d", got)
	}
	if got := r.PassedSeconds(FundingClock); got != 60 {
		t.Errorf("other clocks should be untouched, got %d", got)
	}
}

func TestClocks_NeverMoveBackwards(t *testing.T) {
	c := NewClocks(500)
	if got := c.JustPassedSeconds(FundingClock, 400); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if c[FundingClock] != 500 {
		t.Errorf("clock moved backwards to %d", c[FundingClock])
	}
}

// --- Pools and purity ---

func TestNew_PureMarketPools(t *testing.T) {
	m := newTestMarket(t, btcPure)
	for _, k := range pool.Kinds() {
		if got := m.Pool(k).IsPure(); got != AllowsPure(k) {
			t.Errorf("%s: pure=%v", k, got)
		}
	}
	impure := newTestMarket(t, ethUsdc)
	for _, k := range pool.Kinds() {
		if impure.Pool(k).IsPure() {
			t.Errorf("%s should not be pure in an impure market", k)
		}
	}
}

func TestSetPure_MergesAndSplits(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	p, _ := pool.NewWithAmounts(false, u(7), u(4))
	m.Pools[pool.Primary] = p

	if err := m.SetPure(true); err != nil {
		t.Fatal(err)
	}
	if total, _ := m.Pool(pool.Primary).Total(); !m.Pool(pool.Primary).IsPure() || !total.Eq(u(11)) {
		t.Fatalf("merge: got %+v", m.Pool(pool.Primary))
	}
	if m.Pool(pool.BorrowingFactor).IsPure() {
		t.Error("side-keyed pools stay impure")
	}
	if err := m.SetPure(false); err != nil {
		t.Fatal(err)
	}
	got := m.Pool(pool.Primary)
	if got.IsPure() || !got.Long().Eq(u(6)) || !got.Short().Eq(u(5)) {
		t.Errorf("split: got %s/%s", got.Long(), got.Short())
	}
}

// --- Revertible ---

func TestRevertible_DiscardLeavesMarketUntouched(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	before := m.Clone()

	r, err := NewRevertible(m, FixedClock(2_000))
	if err != nil {
		t.Fatal(err)
	}
	if err := AddToPool(r, pool.Primary, true, u(100)); err != nil {
		t.Fatal(err)
	}
	if err := r.Mint(u(5)); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordTransferredIn("ETH", 100); err != nil {
		t.Fatal(err)
	}
	r.JustPassedSeconds(BorrowingClock)
	r.SetFundingFactorPerSecond(fixed.NewInt(-3))

	if got := r.Pool(pool.Primary).Long(); !got.Eq(u(100)) {
		t.Errorf("overlay should read its own writes, got %s", got)
	}
	if !m.Pool(pool.Primary).Long().IsZero() {
		t.Error("market should not see staged writes")
	}
	r.Discard()

	if !reflect.DeepEqual(m, before) {
		t.Errorf("discard changed the market:\n got %+v\nwant %+v", m, before)
	}
}

func TestRevertible_Commit(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	pos := NewPosition("p1", "alice", m.ID, "USDC", false)

	r, err := NewRevertible(m, FixedClock(2_000))
	if err != nil {
		t.Fatal(err)
	}
	if err := AddToPool(r, pool.Primary, false, u(42)); err != nil {
		t.Fatal(err)
	}
	staged := r.Position(pos)
	staged.CollateralAmount = u(9)
	if r.Position(pos) != staged {
		t.Error("position shadow should be stable within an overlay")
	}
	r.JustPassedSeconds(FundingClock)
	r.Commit()

	if !m.Pool(pool.Primary).Short().Eq(u(42)) {
		t.Errorf("commit lost pool write")
	}
	if !pos.CollateralAmount.Eq(u(9)) {
		t.Errorf("commit lost position write")
	}
	if m.Clocks[FundingClock] != 2_000 || m.Clocks[BorrowingClock] != 1_000 {
		t.Errorf("unexpected clocks %v", m.Clocks)
	}

	r.Discard() // no-op after commit
	if !m.Pool(pool.Primary).Short().Eq(u(42)) {
		t.Error("discard after commit must not revert")
	}
}

func TestRevertible_DoesNotNest(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	r, err := NewRevertible(m, FixedClock(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRevertible(m, FixedClock(1)); !errors.Is(err, ErrOverlayActive) {
		t.Errorf("expected overlay active, got %v", err)
	}
	r.Discard()
	r2, err := NewRevertible(m, FixedClock(1))
	if err != nil {
		t.Fatalf("overlay should be free after discard: %v", err)
	}
	r2.Discard()
}

func TestRevertible_CommitPanicsOnBrokenPurity(t *testing.T) {
	m := newTestMarket(t, btcPure)
	r, err := NewRevertible(m, FixedClock(1))
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.PoolMut(pool.Primary)
	if err != nil {
		t.Fatal(err)
	}
	*p = pool.New(false)

	defer func() {
		if recover() == nil {
			t.Error("expected commit to panic")
		}
	}()
	r.Commit()
}

func TestRevertible_UnknownPool(t *testing.T) {
	m := newTestMarket(t, ethUsdc)
	r, _ := NewRevertible(m, FixedClock(1))
	defer r.Discard()
	if _, err := r.PoolMut(pool.Kind(200)); !errors.Is(err, ErrPoolNotFound) {
		t.Errorf("expected pool not found, got %v", err)
	}
}

// --- Config ---

func TestAdjustedFactors(t *testing.T) {
	p := PriceImpactParams{PositiveFactor: u(10), NegativeFactor: u(5)}
	pos, neg := p.AdjustedFactors()
	if !pos.Eq(u(5)) || !neg.Eq(u(5)) {
		t.Errorf("positive above negative should clamp, got %s/%s", pos, neg)
	}
	p = PriceImpactParams{PositiveFactor: u(3), NegativeFactor: u(5)}
	pos, neg = p.AdjustedFactors()
	if !pos.Eq(u(3)) || !neg.Eq(u(5)) {
		t.Errorf("got %s/%s", pos, neg)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.Fees.ReceiverFactor = fixed.Units(2)
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}
