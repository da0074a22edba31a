package pool

import (
	"maps"
	"math/bits"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
)

// Balance tracks physical token flows into and out of a market vault, keyed
// by token. The zero value is an empty balance.
type Balance[K comparable] map[K]uint64

// RecordTransferredIn adds amount to the balance of k.
func (b *Balance[K]) RecordTransferredIn(k K, amount uint64) error {
	sum, carry := bits.Add64((*b)[k], amount, 0)
	if carry != 0 {
		return fixed.Computation("balance overflow")
	}
	if *b == nil {
		*b = make(Balance[K])
	}
	(*b)[k] = sum
	return nil
}

// RecordTransferredOut subtracts amount from the balance of k.
func (b *Balance[K]) RecordTransferredOut(k K, amount uint64) error {
	cur := (*b)[k]
	if amount > cur {
		return fixed.Computation("balance underflow")
	}
	if amount == 0 {
		return nil
	}
	(*b)[k] = cur - amount
	return nil
}

// Balance returns the recorded balance of k.
func (b Balance[K]) Balance(k K) uint64 { return b[k] }

// BalanceExcluding returns the balance of k minus excluded.
func (b Balance[K]) BalanceExcluding(k K, excluded uint64) (uint64, error) {
	cur := b[k]
	if excluded > cur {
		return 0, fixed.Computation("balance excluding underflow")
	}
	return cur - excluded, nil
}

// Clone returns an independent copy.
func (b Balance[K]) Clone() Balance[K] {
	if b == nil {
		return nil
	}
	return maps.Clone(b)
}
