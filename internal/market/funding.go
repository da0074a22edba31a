package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// FundingAmountPerSizeUnit scales funding amounts per USD of size. The extra
// 10^10 keeps precision for low-priced collateral tokens.
var FundingAmountPerSizeUnit = fixed.Pow10(fixed.Decimals + 10)

// TokenAmounts is a pair of amounts keyed by collateral token.
type TokenAmounts struct {
	LongToken  fixed.Uint `json:"long_token"`
	ShortToken fixed.Uint `json:"short_token"`
}

// Get returns the amount of the long or short token.
func (a TokenAmounts) Get(isLongToken bool) fixed.Uint {
	if isLongToken {
		return a.LongToken
	}
	return a.ShortToken
}

// SideTokenAmounts is a TokenAmounts per market side.
type SideTokenAmounts struct {
	Long  TokenAmounts `json:"long"`
	Short TokenAmounts `json:"short"`
}

func (s *SideTokenAmounts) side(isLong bool) *TokenAmounts {
	if isLong {
		return &s.Long
	}
	return &s.Short
}

// FundingAmountPerSize returns the funding fee paid per size by positions
// of a side with the given collateral.
func FundingAmountPerSize(m BaseMarket, isLong, isLongCollateral bool) fixed.Uint {
	return m.Pool(pool.FundingAmountPerSize(isLong)).Amount(isLongCollateral)
}

// ClaimableFundingAmountPerSize returns the funding claimable per size by
// positions of a side, in the given token.
func ClaimableFundingAmountPerSize(m BaseMarket, isLong, isLongToken bool) fixed.Uint {
	return m.Pool(pool.ClaimableFundingAmountPerSize(isLong)).Amount(isLongToken)
}

// NextFundingFactorPerSecond returns the funding factor for the elapsed
// duration, whether longs pay shorts, and the next saved factor.
//
// In stable mode (zero increase factor) the factor is Factor × imbalance,
// capped by MaxFactorPerSecond. In adaptive mode the saved factor drifts by
// IncreaseFactorPerSecond while the skew persists above the stable threshold
// and decays by DecreaseFactorPerSecond below the decrease threshold.
func NextFundingFactorPerSecond(m PerpMarket, longOI, shortOI fixed.Uint, duration int64) (fixed.Uint, bool, fixed.Int, error) {
	cfg := m.Config().Funding
	totalOI, err := longOI.Add(shortOI)
	if err != nil {
		return fixed.Zero, false, fixed.ZeroInt, err
	}
	if totalOI.IsZero() {
		return fixed.Zero, false, fixed.ZeroInt, fixed.Computation("funding factor for empty open interest")
	}
	diff := longOI.AbsDiff(shortOI)
	diffAfterExponent, err := fixed.ApplyExponentFactor(diff, cfg.Exponent)
	if err != nil {
		return fixed.Zero, false, fixed.ZeroInt, err
	}
	diffFactor, err := fixed.DivToFactor(diffAfterExponent, totalOI, false)
	if err != nil {
		return fixed.Zero, false, fixed.ZeroInt, err
	}

	if cfg.IncreaseFactorPerSecond.IsZero() {
		factor, err := fixed.ApplyFactor(diffFactor, cfg.Factor)
		if err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
		return fixed.MinUint(factor, cfg.MaxFactorPerSecond), longOI.Gt(shortOI), fixed.ZeroInt, nil
	}

	saved := m.State().FundingFactorPerSecond
	next := saved
	sameDirection := (saved.IsPositive() && longOI.Gt(shortOI)) || (saved.IsNegative() && shortOI.Gt(longOI))
	increase, decrease := !sameDirection, false
	if sameDirection {
		switch {
		case diffFactor.Gt(cfg.ThresholdForStable):
			increase = true
		case diffFactor.Lt(cfg.ThresholdForDecrease):
			decrease = true
		}
	}

	seconds := fixed.NewUint(uint64(duration))
	switch {
	case increase:
		perSecond, err := fixed.ApplyFactor(diffFactor, cfg.IncreaseFactorPerSecond)
		if err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
		step, err := perSecond.Mul(seconds)
		if err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
		delta, err := step.Signed()
		if err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
		if longOI.Lt(shortOI) {
			delta = delta.Neg()
		}
		if next, err = saved.Add(delta); err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
	case decrease && !saved.IsZero():
		step, err := cfg.DecreaseFactorPerSecond.Mul(seconds)
		if err != nil {
			return fixed.Zero, false, fixed.ZeroInt, err
		}
		magnitude := saved.Abs()
		if magnitude.Lte(step) {
			// Keep the direction with the smallest magnitude.
			next = fixed.NewInt(int64(saved.Sign()))
		} else {
			d, err := magnitude.SaturatingSub(step).Signed()
			if err != nil {
				return fixed.Zero, false, fixed.ZeroInt, err
			}
			if saved.IsNegative() {
				d = d.Neg()
			}
			next = d
		}
	}

	next, err = boundMagnitude(next, fixed.Zero, cfg.MaxFactorPerSecond)
	if err != nil {
		return fixed.Zero, false, fixed.ZeroInt, err
	}
	withMin, err := boundMagnitude(next, cfg.MinFactorPerSecond, cfg.MaxFactorPerSecond)
	if err != nil {
		return fixed.Zero, false, fixed.ZeroInt, err
	}
	return withMin.Abs(), withMin.IsPositive(), next, nil
}

// boundMagnitude clamps |v| into [lo, hi] keeping the sign of v. Zero maps
// to +lo.
func boundMagnitude(v fixed.Int, lo, hi fixed.Uint) (fixed.Int, error) {
	mag := v.Abs()
	if mag.Lt(lo) {
		mag = lo
	}
	if mag.Gt(hi) {
		mag = hi
	}
	out, err := mag.Signed()
	if err != nil {
		return fixed.ZeroInt, err
	}
	if v.IsNegative() {
		out = out.Neg()
	}
	return out, nil
}

// FundingUpdate is the result of UpdateFundingState.
type FundingUpdate struct {
	DurationInSeconds               int64            `json:"duration_in_seconds"`
	LongsPayShorts                  bool             `json:"longs_pay_shorts"`
	FundingFactorPerSecond          fixed.Uint       `json:"funding_factor_per_second"`
	NextSavedFundingFactorPerSecond fixed.Int        `json:"next_saved_funding_factor_per_second"`
	FundingUsd                      fixed.Uint       `json:"funding_usd"`
	FundingFeeAmountPerSizeDelta    SideTokenAmounts `json:"funding_fee_amount_per_size_delta"`
	ClaimableAmountPerSizeDelta     SideTokenAmounts `json:"claimable_amount_per_size_delta"`
}

func fundingAmountPerSizeDelta(fundingUsd, openInterest, tokenPrice fixed.Uint, roundUp bool) (fixed.Uint, error) {
	if fundingUsd.IsZero() || openInterest.IsZero() {
		return fixed.Zero, nil
	}
	perSize, err := fixed.MulDivRound(fundingUsd, FundingAmountPerSizeUnit, openInterest, roundUp)
	if err != nil {
		return fixed.Zero, err
	}
	if roundUp {
		return perSize.DivCeil(tokenPrice)
	}
	return perSize.Div(tokenPrice)
}

// UpdateFundingState advances the funding clock, moves funding from the
// paying side to the receiving side and saves the next funding factor. Both
// sides need open interest for funding to accrue; otherwise the saved factor
// resets to zero.
func UpdateFundingState(m PerpMarketMut, prices Prices) (FundingUpdate, error) {
	duration := m.JustPassedSeconds(FundingClock)
	update := FundingUpdate{DurationInSeconds: duration}

	longOI, err := OpenInterest(m, true)
	if err != nil {
		return FundingUpdate{}, err
	}
	shortOI, err := OpenInterest(m, false)
	if err != nil {
		return FundingUpdate{}, err
	}
	if longOI.IsZero() || shortOI.IsZero() {
		m.SetFundingFactorPerSecond(fixed.ZeroInt)
		return update, nil
	}

	factor, longsPayShorts, nextSaved, err := NextFundingFactorPerSecond(m, longOI, shortOI, duration)
	if err != nil {
		return FundingUpdate{}, err
	}
	update.FundingFactorPerSecond = factor
	update.LongsPayShorts = longsPayShorts
	update.NextSavedFundingFactorPerSecond = nextSaved

	larger := fixed.MaxOf(longOI, shortOI)
	factorForDuration, err := factor.Mul(fixed.NewUint(uint64(duration)))
	if err != nil {
		return FundingUpdate{}, err
	}
	fundingUsd, err := fixed.ApplyFactor(larger, factorForDuration)
	if err != nil {
		return FundingUpdate{}, err
	}
	update.FundingUsd = fundingUsd

	payingOI, receivingOI := longOI, shortOI
	if !longsPayShorts {
		payingOI, receivingOI = shortOI, longOI
	}
	payingPool := m.Pool(pool.OpenInterest(longsPayShorts))

	for _, isLongToken := range []bool{true, false} {
		usdForCollateral, err := fixed.MulDiv(fundingUsd, payingPool.Amount(isLongToken), payingOI)
		if err != nil {
			return FundingUpdate{}, err
		}
		price := prices.CollateralTokenPrice(isLongToken).Max
		payDelta, err := fundingAmountPerSizeDelta(usdForCollateral, payingPool.Amount(isLongToken), price, true)
		if err != nil {
			return FundingUpdate{}, err
		}
		claimDelta, err := fundingAmountPerSizeDelta(usdForCollateral, receivingOI, price, false)
		if err != nil {
			return FundingUpdate{}, err
		}
		payTarget := update.FundingFeeAmountPerSizeDelta.side(longsPayShorts)
		claimTarget := update.ClaimableAmountPerSizeDelta.side(!longsPayShorts)
		if isLongToken {
			payTarget.LongToken, claimTarget.LongToken = payDelta, claimDelta
		} else {
			payTarget.ShortToken, claimTarget.ShortToken = payDelta, claimDelta
		}
	}

	for _, isLong := range []bool{true, false} {
		for _, isLongToken := range []bool{true, false} {
			pay := update.FundingFeeAmountPerSizeDelta.side(isLong).Get(isLongToken)
			if err := AddToPool(m, pool.FundingAmountPerSize(isLong), isLongToken, pay); err != nil {
				return FundingUpdate{}, err
			}
			claim := update.ClaimableAmountPerSizeDelta.side(isLong).Get(isLongToken)
			if err := AddToPool(m, pool.ClaimableFundingAmountPerSize(isLong), isLongToken, claim); err != nil {
				return FundingUpdate{}, err
			}
		}
	}
	m.SetFundingFactorPerSecond(nextSaved)
	return update, nil
}
