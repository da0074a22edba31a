package market

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// Revertible stages every write of an action on top of a Market. Reads
// prefer staged values. Commit copies the staged values into the market in a
// single pass; Discard drops them. A market has at most one open overlay.
type Revertible struct {
	m   *Market
	now int64

	pools     map[pool.Kind]*pool.Pool
	clocks    *Clocks
	supply    *fixed.Uint
	state     *State
	balance   pool.Balance[string]
	positions map[*Position]*Position

	closed bool
}

// NewRevertible opens an overlay on m. It fails with ErrOverlayActive if m
// already has one.
func NewRevertible(m *Market, clock ClockSource) (*Revertible, error) {
	if m.overlayActive {
		return nil, ErrOverlayActive
	}
	m.overlayActive = true
	return &Revertible{
		m:         m,
		now:       clock.Now(),
		pools:     make(map[pool.Kind]*pool.Pool),
		positions: make(map[*Position]*Position),
	}, nil
}

func (r *Revertible) ID() string                     { return r.m.ID }
func (r *Revertible) Tokens() Tokens                 { return r.m.Tokens }
func (r *Revertible) IsPure() bool                   { return r.m.IsPure() }
func (r *Revertible) Config() *Config                { return &r.m.Config }
func (r *Revertible) UsdToAmountDivisor() fixed.Uint { return r.m.UsdToAmountDivisor() }
func (r *Revertible) Now() int64                     { return r.now }

func (r *Revertible) Pool(k pool.Kind) pool.Pool {
	if p, ok := r.pools[k]; ok {
		return *p
	}
	return r.m.Pool(k)
}

func (r *Revertible) PoolMut(k pool.Kind) (*pool.Pool, error) {
	if int(k) >= len(pool.Kinds()) {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, k)
	}
	if p, ok := r.pools[k]; ok {
		return p, nil
	}
	p := r.m.Pool(k)
	r.pools[k] = &p
	return &p, nil
}

func (r *Revertible) TotalSupply() fixed.Uint {
	if r.supply != nil {
		return *r.supply
	}
	return r.m.TotalSupply
}

func (r *Revertible) Mint(amount fixed.Uint) error {
	next, err := r.TotalSupply().Add(amount)
	if err != nil {
		return err
	}
	r.supply = &next
	return nil
}

func (r *Revertible) Burn(amount fixed.Uint) error {
	next, err := r.TotalSupply().Sub(amount)
	if err != nil {
		return err
	}
	r.supply = &next
	return nil
}

func (r *Revertible) clocksView() Clocks {
	if r.clocks != nil {
		return *r.clocks
	}
	return r.m.Clocks
}

func (r *Revertible) PassedSeconds(k ClockKind) int64 {
	return r.clocksView().PassedSeconds(k, r.now)
}

// JustPassedSeconds returns the elapsed seconds and advances the staged
// clock, so later calls within the same overlay return zero.
func (r *Revertible) JustPassedSeconds(k ClockKind) int64 {
	if r.clocks == nil {
		c := r.m.Clocks
		r.clocks = &c
	}
	return r.clocks.JustPassedSeconds(k, r.now)
}

// CumulativeBorrowingFactor reads the staged borrowing factor pool.
func (r *Revertible) CumulativeBorrowingFactor(isLong bool) fixed.Uint {
	return CumulativeBorrowingFactor(r, isLong)
}

func (r *Revertible) TotalBorrowing(isLong bool) fixed.Uint { return TotalBorrowing(r, isLong) }

func (r *Revertible) State() State {
	if r.state != nil {
		return *r.state
	}
	return r.m.State
}

func (r *Revertible) stateMut() *State {
	if r.state == nil {
		s := r.m.State
		r.state = &s
	}
	return r.state
}

func (r *Revertible) SetFundingFactorPerSecond(v fixed.Int) {
	r.stateMut().FundingFactorPerSecond = v
}

func (r *Revertible) SetSideState(isLong bool, s SideState) {
	r.stateMut().setSide(isLong, s)
}

func (r *Revertible) Balance(token string) uint64 {
	if r.balance != nil {
		return r.balance.Balance(token)
	}
	return r.m.Balance.Balance(token)
}

func (r *Revertible) balanceMut() *pool.Balance[string] {
	if r.balance == nil {
		r.balance = r.m.Balance.Clone()
		if r.balance == nil {
			r.balance = pool.Balance[string]{}
		}
	}
	return &r.balance
}

func (r *Revertible) RecordTransferredIn(token string, amount uint64) error {
	return r.balanceMut().RecordTransferredIn(token, amount)
}

func (r *Revertible) RecordTransferredOut(token string, amount uint64) error {
	return r.balanceMut().RecordTransferredOut(token, amount)
}

func (r *Revertible) Position(p *Position) *Position {
	if s, ok := r.positions[p]; ok {
		return s
	}
	s := *p
	r.positions[p] = &s
	return &s
}

// Commit writes every staged value into the market and closes the overlay.
// A staged value that breaks a pool invariant is a bug and panics before
// anything is written.
func (r *Revertible) Commit() {
	if r.closed {
		panic("market: commit on a closed overlay")
	}
	for k, p := range r.pools {
		pure := r.m.IsPure() && AllowsPure(k)
		if p.IsPure() != pure {
			panic(fmt.Sprintf("market %s: staged pool %s changed purity", r.m.ID, k))
		}
		if _, short := p.Stored(); pure && !short.IsZero() {
			panic(fmt.Sprintf("market %s: pure pool %s stores a short amount", r.m.ID, k))
		}
	}
	for orig, staged := range r.positions {
		if staged.MarketID != orig.MarketID {
			panic(fmt.Sprintf("market %s: staged position %s changed market", r.m.ID, orig.ID))
		}
	}

	if r.m.Pools == nil {
		r.m.Pools = make(map[pool.Kind]pool.Pool, len(r.pools))
	}
	for k, p := range r.pools {
		r.m.Pools[k] = *p
	}
	if r.clocks != nil {
		r.m.Clocks = *r.clocks
	}
	if r.supply != nil {
		r.m.TotalSupply = *r.supply
	}
	if r.state != nil {
		r.m.State = *r.state
	}
	if r.balance != nil {
		r.m.Balance = r.balance
	}
	for orig, staged := range r.positions {
		*orig = *staged
	}
	r.close()
}

// Discard drops every staged value. It is a no-op after Commit.
func (r *Revertible) Discard() {
	if r.closed {
		return
	}
	r.close()
}

func (r *Revertible) close() {
	r.closed = true
	r.m.overlayActive = false
	r.pools = nil
	r.positions = nil
}
