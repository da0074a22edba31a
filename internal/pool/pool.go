// Package pool implements the dual-sided token accounting a market is built
// from: pools of (long, short) amounts and the physical balance bank.
package pool

import (
	"encoding/json"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
)

// Pool is a pair of amounts. A pure pool stores a single amount in the long
// slot and reports it split in half (long = ceil, short = floor).
type Pool struct {
	pure  bool
	long  fixed.Uint
	short fixed.Uint
}

// Delta is a pair of signed changes. Zero fields leave the slot untouched.
type Delta struct {
	Long  fixed.Int
	Short fixed.Int
}

// NewDelta returns the delta for one side.
func NewDelta(isLong bool, d fixed.Int) Delta {
	if isLong {
		return Delta{Long: d}
	}
	return Delta{Short: d}
}

// Neg returns the delta that undoes d.
func (d Delta) Neg() Delta {
	return Delta{Long: d.Long.Neg(), Short: d.Short.Neg()}
}

// New returns an empty pool.
func New(pure bool) Pool {
	return Pool{pure: pure}
}

// NewWithAmounts returns a pool holding the given amounts. For a pure pool
// both amounts are summed into the long slot.
func NewWithAmounts(pure bool, long, short fixed.Uint) (Pool, error) {
	p := Pool{pure: pure, long: long}
	if pure {
		total, err := long.Add(short)
		if err != nil {
			return Pool{}, err
		}
		p.long = total
		return p, nil
	}
	p.short = short
	return p, nil
}

func (p Pool) IsPure() bool { return p.pure }

// Long returns the long amount; ceil(x/2) for a pure pool.
func (p Pool) Long() fixed.Uint {
	if p.pure {
		half, _ := p.long.DivCeil(fixed.NewUint(2))
		return half
	}
	return p.long
}

// Short returns the short amount; floor(x/2) for a pure pool.
func (p Pool) Short() fixed.Uint {
	if p.pure {
		half, _ := p.long.Div(fixed.NewUint(2))
		return half
	}
	return p.short
}

// Amount returns Long or Short.
func (p Pool) Amount(isLong bool) fixed.Uint {
	if isLong {
		return p.Long()
	}
	return p.Short()
}

// Total returns long + short. For a pure pool this is the stored amount.
func (p Pool) Total() (fixed.Uint, error) {
	if p.pure {
		return p.long, nil
	}
	return p.long.Add(p.short)
}

// Stored returns the raw slot contents.
func (p Pool) Stored() (long, short fixed.Uint) { return p.long, p.short }

// ApplyDeltaToLong adds d to the long slot.
func (p *Pool) ApplyDeltaToLong(d fixed.Int) error {
	next, err := p.long.AddSigned(d)
	if err != nil {
		return err
	}
	p.long = next
	return nil
}

// ApplyDeltaToShort adds d to the short slot, or to the long slot when pure.
func (p *Pool) ApplyDeltaToShort(d fixed.Int) error {
	if p.pure {
		return p.ApplyDeltaToLong(d)
	}
	next, err := p.short.AddSigned(d)
	if err != nil {
		return err
	}
	p.short = next
	return nil
}

// ApplyDelta adds d to the given side.
func (p *Pool) ApplyDelta(isLong bool, d fixed.Int) error {
	if isLong {
		return p.ApplyDeltaToLong(d)
	}
	return p.ApplyDeltaToShort(d)
}

// CheckedApplyDelta returns a copy of p with both sides of d applied. p is
// left unchanged when either side fails.
func (p Pool) CheckedApplyDelta(d Delta) (Pool, error) {
	next := p
	if err := next.ApplyDeltaToLong(d.Long); err != nil {
		return p, err
	}
	if err := next.ApplyDeltaToShort(d.Short); err != nil {
		return p, err
	}
	return next, nil
}

// MergeIntoPure converts p into a pure pool by summing both slots into long.
// It is a no-op for pools that are already pure.
func (p *Pool) MergeIntoPure() error {
	if p.pure {
		return nil
	}
	total, err := p.long.Add(p.short)
	if err != nil {
		return err
	}
	*p = Pool{pure: true, long: total}
	return nil
}

// SplitFromPure converts a pure pool into an impure one holding the same
// observed amounts (long = ceil, short = floor). It is a no-op for impure pools.
func (p *Pool) SplitFromPure() {
	if !p.pure {
		return
	}
	*p = Pool{long: p.Long(), short: p.Short()}
}

// Value returns long × longPrice + short × shortPrice.
func (p Pool) Value(longPrice, shortPrice fixed.Uint) (fixed.Uint, error) {
	lv, err := p.Long().Mul(longPrice)
	if err != nil {
		return fixed.Zero, err
	}
	sv, err := p.Short().Mul(shortPrice)
	if err != nil {
		return fixed.Zero, err
	}
	return lv.Add(sv)
}

type poolJSON struct {
	Pure  bool       `json:"pure"`
	Long  fixed.Uint `json:"long"`
	Short fixed.Uint `json:"short"`
}

func (p Pool) MarshalJSON() ([]byte, error) {
	return json.Marshal(poolJSON{Pure: p.pure, Long: p.long, Short: p.short})
}

func (p *Pool) UnmarshalJSON(b []byte) error {
	var raw poolJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	next, err := NewWithAmounts(raw.Pure, raw.Long, raw.Short)
	if err != nil {
		return err
	}
	*p = next
	return nil
}
