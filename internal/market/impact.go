package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

func applyImpactFactor(diff, factor, exponent fixed.Uint) (fixed.Uint, error) {
	return fixed.ApplyFactors(diff, factor, exponent)
}

// PriceImpactUsd returns the USD impact of moving a two-sided balance from
// (initialLong, initialShort) to (nextLong, nextShort). It is positive when
// the imbalance shrinks.
func PriceImpactUsd(params PriceImpactParams, initialLong, initialShort, nextLong, nextShort fixed.Uint) (fixed.Int, error) {
	initialDiff := initialLong.AbsDiff(initialShort)
	nextDiff := nextLong.AbsDiff(nextShort)
	positiveFactor, negativeFactor := params.AdjustedFactors()

	sameSide := initialLong.Lte(initialShort) == nextLong.Lte(nextShort)
	if sameSide {
		positive := nextDiff.Lt(initialDiff)
		factor := negativeFactor
		if positive {
			factor = positiveFactor
		}
		before, err := applyImpactFactor(initialDiff, factor, params.Exponent)
		if err != nil {
			return fixed.ZeroInt, err
		}
		after, err := applyImpactFactor(nextDiff, factor, params.Exponent)
		if err != nil {
			return fixed.ZeroInt, err
		}
		delta, err := before.AbsDiff(after).Signed()
		if err != nil {
			return fixed.ZeroInt, err
		}
		if !positive {
			delta = delta.Neg()
		}
		return delta, nil
	}

	// The balance crosses over: the old imbalance is rewarded and the new one
	// is charged.
	gain, err := applyImpactFactor(initialDiff, positiveFactor, params.Exponent)
	if err != nil {
		return fixed.ZeroInt, err
	}
	loss, err := applyImpactFactor(nextDiff, negativeFactor, params.Exponent)
	if err != nil {
		return fixed.ZeroInt, err
	}
	return fixed.Diff(gain, loss)
}

// PositionPriceImpactUsd returns the impact of changing a side's open
// interest by sizeDeltaUsd (positive for increases).
func PositionPriceImpactUsd(m BaseMarket, isLong bool, sizeDeltaUsd fixed.Int) (fixed.Int, error) {
	longOI, err := OpenInterest(m, true)
	if err != nil {
		return fixed.ZeroInt, err
	}
	shortOI, err := OpenInterest(m, false)
	if err != nil {
		return fixed.ZeroInt, err
	}
	nextLong, nextShort := longOI, shortOI
	if isLong {
		nextLong, err = longOI.AddSigned(sizeDeltaUsd)
	} else {
		nextShort, err = shortOI.AddSigned(sizeDeltaUsd)
	}
	if err != nil {
		return fixed.ZeroInt, err
	}
	return PriceImpactUsd(m.Config().PositionImpact, longOI, shortOI, nextLong, nextShort)
}

// CapPositionImpactUsd caps a position's price impact. Positive impact is
// bounded by the impact pool and max_positive_impact_factor; negative impact
// by max_negative_impact_factor, or max_impact_factor_for_liquidations when
// liquidating.
func CapPositionImpactUsd(m BaseMarket, indexPrice Price, impactUsd fixed.Int, sizeDeltaUsd fixed.Uint, isLiquidation bool) (fixed.Int, error) {
	params := m.Config().Position
	if impactUsd.IsPositive() {
		impactPool, err := m.Pool(pool.PositionImpact).Total()
		if err != nil {
			return fixed.ZeroInt, err
		}
		poolCap, err := impactPool.Mul(indexPrice.Min)
		if err != nil {
			return fixed.ZeroInt, err
		}
		factorCap, err := fixed.ApplyFactor(sizeDeltaUsd, params.MaxPositiveImpactFactor)
		if err != nil {
			return fixed.ZeroInt, err
		}
		capped := fixed.MinUint(impactUsd.Abs(), fixed.MinUint(poolCap, factorCap))
		return capped.Signed()
	}
	factor := params.MaxNegativeImpactFactor
	if isLiquidation {
		factor = params.MaxImpactFactorForLiquidations
	}
	maxNegative, err := fixed.ApplyFactor(sizeDeltaUsd, factor)
	if err != nil {
		return fixed.ZeroInt, err
	}
	if impactUsd.Abs().Gt(maxNegative) {
		return maxNegative.Negated()
	}
	return impactUsd, nil
}

// ImpactAmount converts a USD impact into index tokens. Positive impact is
// rounded down at the max price, negative impact rounded up at the min price.
func ImpactAmount(indexPrice Price, impactUsd fixed.Int) (fixed.Int, error) {
	if impactUsd.IsPositive() {
		return impactUsd.DivUint(indexPrice.Max)
	}
	return impactUsd.DivUintAwayFromZero(indexPrice.Min)
}

// SwapPriceImpactUsd returns the impact of adding usd delta to each side of
// the primary pool, valued at mid prices. Pure markets have no swap impact.
func SwapPriceImpactUsd(m BaseMarket, prices Prices, longDeltaUsd, shortDeltaUsd fixed.Int) (fixed.Int, error) {
	if m.IsPure() {
		return fixed.ZeroInt, nil
	}
	longMid, err := prices.LongToken.Mid()
	if err != nil {
		return fixed.ZeroInt, err
	}
	shortMid, err := prices.ShortToken.Mid()
	if err != nil {
		return fixed.ZeroInt, err
	}
	longUsd, err := PoolAmount(m, true).Mul(longMid)
	if err != nil {
		return fixed.ZeroInt, err
	}
	shortUsd, err := PoolAmount(m, false).Mul(shortMid)
	if err != nil {
		return fixed.ZeroInt, err
	}
	nextLong, err := longUsd.AddSigned(longDeltaUsd)
	if err != nil {
		return fixed.ZeroInt, err
	}
	nextShort, err := shortUsd.AddSigned(shortDeltaUsd)
	if err != nil {
		return fixed.ZeroInt, err
	}
	return PriceImpactUsd(m.Config().SwapImpact, longUsd, shortUsd, nextLong, nextShort)
}

// ApplySwapImpactWithCap moves a swap impact into or out of the swap impact
// pool of a token and returns the token amount. Positive impact is paid from
// the pool and capped by its balance; negative impact is added to it.
func ApplySwapImpactWithCap(m BaseMarketMut, isLongToken bool, price Price, impactUsd fixed.Int) (fixed.Uint, error) {
	if impactUsd.IsPositive() {
		amount, err := impactUsd.Abs().Div(price.Max)
		if err != nil {
			return fixed.Zero, err
		}
		amount = fixed.MinUint(amount, m.Pool(pool.SwapImpact).Amount(isLongToken))
		return amount, SubFromPool(m, pool.SwapImpact, isLongToken, amount)
	}
	amount, err := impactUsd.Abs().DivCeil(price.Min)
	if err != nil {
		return fixed.Zero, err
	}
	return amount, AddToPool(m, pool.SwapImpact, isLongToken, amount)
}

// ImpactDistribution is the result of DistributePositionImpact.
type ImpactDistribution struct {
	DurationInSeconds  int64      `json:"duration_in_seconds"`
	DistributionAmount fixed.Uint `json:"distribution_amount"`
	NextPoolAmount     fixed.Uint `json:"next_pool_amount"`
}

// PendingImpactDistribution returns the amount the position impact pool
// releases over duration: duration × distribute_factor, never taking the
// pool below its configured floor.
func PendingImpactDistribution(m BaseMarket, duration int64) (fixed.Uint, error) {
	params := m.Config().ImpactDistribution
	poolAmount, err := m.Pool(pool.PositionImpact).Total()
	if err != nil {
		return fixed.Zero, err
	}
	if poolAmount.Lte(params.MinPositionImpactPoolAmount) {
		return fixed.Zero, nil
	}
	amount, err := fixed.ApplyFactor(fixed.NewUint(uint64(duration)), params.DistributeFactor)
	if err != nil {
		return fixed.Zero, err
	}
	return fixed.MinUint(amount, poolAmount.SaturatingSub(params.MinPositionImpactPoolAmount)), nil
}

// DistributePositionImpact advances the distribution clock and releases the
// pending amount from the position impact pool. The pool value grows by the
// released value, so it accrues to liquidity providers.
func DistributePositionImpact(m PositionImpactMarketMut) (ImpactDistribution, error) {
	duration := m.JustPassedSeconds(PriceImpactDistributionClock)
	amount, err := PendingImpactDistribution(m, duration)
	if err != nil {
		return ImpactDistribution{}, err
	}
	if err := SubFromPool(m, pool.PositionImpact, true, amount); err != nil {
		return ImpactDistribution{}, err
	}
	next, err := m.Pool(pool.PositionImpact).Total()
	if err != nil {
		return ImpactDistribution{}, err
	}
	return ImpactDistribution{DurationInSeconds: duration, DistributionAmount: amount, NextPoolAmount: next}, nil
}
