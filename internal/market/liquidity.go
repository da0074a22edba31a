package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// PoolValue returns the value backing the market token:
//
//	long value + short value
//	+ pending borrowing fees owed to the pool
//	- position impact pool value
//	- capped net trader pnl
//
// The result is negative when trader pnl exceeds the pool.
func PoolValue(m BaseMarket, prices Prices, kind PnlFactorKind, maximize bool) (fixed.Int, error) {
	longValue, err := PoolValueWithoutPnlForOneSide(m, prices, true, maximize)
	if err != nil {
		return fixed.ZeroInt, err
	}
	shortValue, err := PoolValueWithoutPnlForOneSide(m, prices, false, maximize)
	if err != nil {
		return fixed.ZeroInt, err
	}
	value, err := longValue.Add(shortValue)
	if err != nil {
		return fixed.ZeroInt, err
	}

	pendingLong, err := TotalPendingBorrowingFees(m, true)
	if err != nil {
		return fixed.ZeroInt, err
	}
	pendingShort, err := TotalPendingBorrowingFees(m, false)
	if err != nil {
		return fixed.ZeroInt, err
	}
	pending, err := pendingLong.Add(pendingShort)
	if err != nil {
		return fixed.ZeroInt, err
	}
	poolShare := fixed.Unit.SaturatingSub(m.Config().Borrowing.ReceiverFactor)
	pendingForPool, err := fixed.ApplyFactor(pending, poolShare)
	if err != nil {
		return fixed.ZeroInt, err
	}
	if value, err = value.Add(pendingForPool); err != nil {
		return fixed.ZeroInt, err
	}

	impactAmount, err := m.Pool(pool.PositionImpact).Total()
	if err != nil {
		return fixed.ZeroInt, err
	}
	impactValue, err := impactAmount.Mul(prices.IndexToken.Pick(!maximize))
	if err != nil {
		return fixed.ZeroInt, err
	}

	result, err := fixed.Diff(value, impactValue)
	if err != nil {
		return fixed.ZeroInt, err
	}

	for _, side := range []struct {
		isLong bool
		value  fixed.Uint
	}{{true, longValue}, {false, shortValue}} {
		pnl, err := Pnl(m, prices.IndexToken, side.isLong, !maximize)
		if err != nil {
			return fixed.ZeroInt, err
		}
		capped, err := CapPnl(m, side.isLong, pnl, side.value, kind)
		if err != nil {
			return fixed.ZeroInt, err
		}
		if result, err = result.Sub(capped); err != nil {
			return fixed.ZeroInt, err
		}
	}
	return result, nil
}

// MarketTokenPrice returns the USD value of one whole market token (Unit
// scaled). An empty market prices its token at one USD.
func MarketTokenPrice(m BaseMarket, prices Prices, kind PnlFactorKind, maximize bool) (fixed.Int, error) {
	supply := m.TotalSupply()
	if supply.IsZero() {
		return fixed.Unit.Signed()
	}
	value, err := PoolValue(m, prices, kind, maximize)
	if err != nil {
		return fixed.ZeroInt, err
	}
	if !value.IsPositive() {
		return value, nil
	}
	wholeToken, err := fixed.Unit.Div(m.UsdToAmountDivisor())
	if err != nil {
		return fixed.ZeroInt, err
	}
	usd, err := fixed.MarketTokenAmountToUsd(wholeToken, value.Abs(), supply)
	if err != nil {
		return fixed.ZeroInt, err
	}
	return usd.Signed()
}
