package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// BaseMarket is the read-only view every computation needs.
type BaseMarket interface {
	ID() string
	Tokens() Tokens
	IsPure() bool
	// Config must not be modified by callers.
	Config() *Config
	Pool(k pool.Kind) pool.Pool
	TotalSupply() fixed.Uint
	UsdToAmountDivisor() fixed.Uint
}

// BaseMarketMut adds pool writes.
type BaseMarketMut interface {
	BaseMarket
	// PoolMut returns a writable pool. Writes stay staged until commit.
	PoolMut(k pool.Kind) (*pool.Pool, error)
}

// SwapMarketMut adds physical token flows.
type SwapMarketMut interface {
	BaseMarketMut
	Balance(token string) uint64
	RecordTransferredIn(token string, amount uint64) error
	RecordTransferredOut(token string, amount uint64) error
}

// LiquidityMarketMut adds market token supply changes.
type LiquidityMarketMut interface {
	SwapMarketMut
	Mint(amount fixed.Uint) error
	Burn(amount fixed.Uint) error
}

// PositionImpactMarket adds time.
type PositionImpactMarket interface {
	BaseMarket
	Now() int64
	PassedSeconds(kind ClockKind) int64
}

// PositionImpactMarketMut adds clock advancement.
type PositionImpactMarketMut interface {
	LiquidityMarketMut
	PositionImpactMarket
	JustPassedSeconds(kind ClockKind) int64
}

// BorrowingFeeMarket reads cumulative borrowing factors and their clock.
type BorrowingFeeMarket interface {
	PositionImpactMarket
	CumulativeBorrowingFactor(isLong bool) fixed.Uint
	TotalBorrowing(isLong bool) fixed.Uint
}

// BorrowingFeeMarketMut updates cumulative borrowing factors.
type BorrowingFeeMarketMut interface {
	PositionImpactMarketMut
	BorrowingFeeMarket
}

// PerpMarket reads funding and ADL state.
type PerpMarket interface {
	BorrowingFeeMarket
	State() State
}

// PerpMarketMut is the full mutable capability set.
type PerpMarketMut interface {
	BorrowingFeeMarketMut
	PerpMarket
	SetFundingFactorPerSecond(v fixed.Int)
	SetSideState(isLong bool, s SideState)
	// Position returns the staged copy of p.
	Position(p *Position) *Position
}

// View is a read-only PerpMarket over durable state.
type View struct {
	m   *Market
	now int64
}

// NewView returns a read-only view of m at the clock's current time.
func NewView(m *Market, clock ClockSource) *View {
	return &View{m: m, now: clock.Now()}
}

func (v *View) ID() string                      { return v.m.ID }
func (v *View) Tokens() Tokens                  { return v.m.Tokens }
func (v *View) IsPure() bool                    { return v.m.IsPure() }
func (v *View) Config() *Config                 { return &v.m.Config }
func (v *View) Pool(k pool.Kind) pool.Pool      { return v.m.Pool(k) }
func (v *View) TotalSupply() fixed.Uint         { return v.m.TotalSupply }
func (v *View) UsdToAmountDivisor() fixed.Uint  { return v.m.UsdToAmountDivisor() }
func (v *View) Now() int64                      { return v.now }
func (v *View) State() State                    { return v.m.State }
func (v *View) PassedSeconds(k ClockKind) int64 { return v.m.Clocks.PassedSeconds(k, v.now) }

func (v *View) CumulativeBorrowingFactor(isLong bool) fixed.Uint {
	return CumulativeBorrowingFactor(v, isLong)
}

func (v *View) TotalBorrowing(isLong bool) fixed.Uint { return TotalBorrowing(v, isLong) }
