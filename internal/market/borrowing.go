package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// CumulativeBorrowingFactor returns the side's cumulative borrowing factor.
func CumulativeBorrowingFactor(m BaseMarket, isLong bool) fixed.Uint {
	return m.Pool(pool.BorrowingFactor).Amount(isLong)
}

// TotalBorrowing returns Σ size_in_usd × borrowing_factor over the side's
// open positions.
func TotalBorrowing(m BaseMarket, isLong bool) fixed.Uint {
	return m.Pool(pool.TotalBorrowing).Amount(isLong)
}

// BorrowingFactorPerSecond returns the side's borrowing rate:
//
//	factor × reserved^exponent / pool value
//
// A side without reserved value pays nothing; a side with reserved value and
// an empty pool is an error.
func BorrowingFactorPerSecond(m BaseMarket, prices Prices, isLong bool) (fixed.Uint, error) {
	cfg := m.Config().Borrowing
	if cfg.SkipForSmallerSide {
		longOI, err := OpenInterest(m, true)
		if err != nil {
			return fixed.Zero, err
		}
		shortOI, err := OpenInterest(m, false)
		if err != nil {
			return fixed.Zero, err
		}
		if (isLong && longOI.Lt(shortOI)) || (!isLong && shortOI.Lt(longOI)) {
			return fixed.Zero, nil
		}
	}

	reserved, err := ReservedValue(m, prices.IndexToken, isLong)
	if err != nil {
		return fixed.Zero, err
	}
	if reserved.IsZero() {
		return fixed.Zero, nil
	}
	poolValue, err := PoolValueWithoutPnlForOneSide(m, prices, isLong, false)
	if err != nil {
		return fixed.Zero, err
	}
	if poolValue.IsZero() {
		return fixed.Zero, sideErr(ErrUnableToGetBorrowingFactorEmptyPoolValue, isLong)
	}
	reservedAfterExponent, err := fixed.ApplyExponentFactor(reserved, cfg.Exponent.Get(isLong))
	if err != nil {
		return fixed.Zero, err
	}
	ratio, err := fixed.DivToFactor(reservedAfterExponent, poolValue, false)
	if err != nil {
		return fixed.Zero, err
	}
	return fixed.ApplyFactor(ratio, cfg.Factor.Get(isLong))
}

// TotalPendingBorrowingFees returns the borrowing fees (USD) the side's open
// positions owe but have not paid yet.
func TotalPendingBorrowingFees(m BaseMarket, isLong bool) (fixed.Uint, error) {
	oi, err := OpenInterest(m, isLong)
	if err != nil {
		return fixed.Zero, err
	}
	accrued, err := fixed.ApplyFactor(oi, CumulativeBorrowingFactor(m, isLong))
	if err != nil {
		return fixed.Zero, err
	}
	return accrued.SaturatingSub(TotalBorrowing(m, isLong)), nil
}

// BorrowingSideUpdate is the result of a borrowing update for one side.
type BorrowingSideUpdate struct {
	FactorPerSecond  fixed.Uint `json:"factor_per_second"`
	Delta            fixed.Uint `json:"delta"`
	CumulativeFactor fixed.Uint `json:"cumulative_factor"`
}

// BorrowingUpdate is the result of UpdateBorrowingState.
type BorrowingUpdate struct {
	DurationInSeconds int64               `json:"duration_in_seconds"`
	Long              BorrowingSideUpdate `json:"long"`
	Short             BorrowingSideUpdate `json:"short"`
}

// UpdateBorrowingState advances the borrowing clock and accrues both sides'
// cumulative borrowing factors. Rates are computed before either side is
// written.
func UpdateBorrowingState(m BorrowingFeeMarketMut, prices Prices) (BorrowingUpdate, error) {
	duration := m.JustPassedSeconds(BorrowingClock)
	update := BorrowingUpdate{DurationInSeconds: duration}
	seconds := fixed.NewUint(uint64(duration))

	sides := []*BorrowingSideUpdate{&update.Short, &update.Long}
	for i, isLong := range []bool{false, true} {
		side := sides[i]
		rate, err := BorrowingFactorPerSecond(m, prices, isLong)
		if err != nil {
			return BorrowingUpdate{}, err
		}
		delta, err := rate.Mul(seconds)
		if err != nil {
			return BorrowingUpdate{}, err
		}
		side.FactorPerSecond = rate
		side.Delta = delta
	}
	for i, isLong := range []bool{false, true} {
		side := sides[i]
		if err := AddToPool(m, pool.BorrowingFactor, isLong, side.Delta); err != nil {
			return BorrowingUpdate{}, err
		}
		side.CumulativeFactor = m.CumulativeBorrowingFactor(isLong)
	}
	return update, nil
}

// UpdateTotalBorrowing replaces a position's contribution to the side's
// total borrowing.
func UpdateTotalBorrowing(m BaseMarketMut, isLong bool, prevSize, prevFactor, nextSize, nextFactor fixed.Uint) error {
	prev, err := fixed.ApplyFactor(prevSize, prevFactor)
	if err != nil {
		return err
	}
	next, err := fixed.ApplyFactor(nextSize, nextFactor)
	if err != nil {
		return err
	}
	p, err := m.PoolMut(pool.TotalBorrowing)
	if err != nil {
		return err
	}
	current := p.Amount(isLong)
	updated := current.SaturatingSub(prev)
	if updated, err = updated.Add(next); err != nil {
		return err
	}
	d, err := fixed.Diff(updated, current)
	if err != nil {
		return err
	}
	return p.ApplyDelta(isLong, d)
}
