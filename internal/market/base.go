package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// PoolAmount returns the primary pool amount of a side.
func PoolAmount(m BaseMarket, isLong bool) fixed.Uint {
	return m.Pool(pool.Primary).Amount(isLong)
}

// ApplyDelta applies d to one side of the pool of kind k.
func ApplyDelta(m BaseMarketMut, k pool.Kind, isLong bool, d fixed.Int) error {
	if d.IsZero() {
		return nil
	}
	p, err := m.PoolMut(k)
	if err != nil {
		return err
	}
	return p.ApplyDelta(isLong, d)
}

// AddToPool adds an unsigned amount to one side of a pool.
func AddToPool(m BaseMarketMut, k pool.Kind, isLong bool, amount fixed.Uint) error {
	d, err := amount.Signed()
	if err != nil {
		return err
	}
	return ApplyDelta(m, k, isLong, d)
}

// SubFromPool removes an unsigned amount from one side of a pool.
func SubFromPool(m BaseMarketMut, k pool.Kind, isLong bool, amount fixed.Uint) error {
	d, err := amount.Negated()
	if err != nil {
		return err
	}
	return ApplyDelta(m, k, isLong, d)
}

// PoolValueWithoutPnlForOneSide returns the USD value of one side of the
// primary pool, ignoring trader pnl.
func PoolValueWithoutPnlForOneSide(m BaseMarket, prices Prices, isLong, maximize bool) (fixed.Uint, error) {
	amount := PoolAmount(m, isLong)
	return amount.Mul(prices.CollateralTokenPrice(isLong).Pick(maximize))
}

// OpenInterest returns the open interest (USD) of a side.
func OpenInterest(m BaseMarket, isLong bool) (fixed.Uint, error) {
	return m.Pool(pool.OpenInterest(isLong)).Total()
}

// OpenInterestInTokens returns the open interest in index tokens of a side.
func OpenInterestInTokens(m BaseMarket, isLong bool) (fixed.Uint, error) {
	return m.Pool(pool.OpenInterestInTokens(isLong)).Total()
}

// Pnl returns the aggregate trader pnl of a side at the index price.
func Pnl(m BaseMarket, indexPrice Price, isLong, maximize bool) (fixed.Int, error) {
	oi, err := OpenInterest(m, isLong)
	if err != nil {
		return fixed.ZeroInt, err
	}
	oiTokens, err := OpenInterestInTokens(m, isLong)
	if err != nil {
		return fixed.ZeroInt, err
	}
	if oi.IsZero() && oiTokens.IsZero() {
		return fixed.ZeroInt, nil
	}
	value, err := oiTokens.Mul(indexPrice.PickForPnl(isLong, maximize))
	if err != nil {
		return fixed.ZeroInt, err
	}
	if isLong {
		return fixed.Diff(value, oi)
	}
	return fixed.Diff(oi, value)
}

// PnlToPoolFactor returns pnl / pool value of a side as a signed factor.
func PnlToPoolFactor(m BaseMarket, prices Prices, isLong, maximize bool) (fixed.Int, error) {
	poolValue, err := PoolValueWithoutPnlForOneSide(m, prices, isLong, !maximize)
	if err != nil {
		return fixed.ZeroInt, err
	}
	if poolValue.IsZero() {
		return fixed.ZeroInt, nil
	}
	pnl, err := Pnl(m, prices.IndexToken, isLong, maximize)
	if err != nil {
		return fixed.ZeroInt, err
	}
	return fixed.DivToFactorSigned(pnl, poolValue)
}

// CapPnl clamps a positive pnl to the max pnl factor of kind times the pool value.
func CapPnl(m BaseMarket, isLong bool, pnl fixed.Int, poolValue fixed.Uint, kind PnlFactorKind) (fixed.Int, error) {
	if !pnl.IsPositive() {
		return pnl, nil
	}
	maxPnl, err := fixed.ApplyFactor(poolValue, m.Config().Limits.MaxPnlFactor.Get(kind, isLong))
	if err != nil {
		return fixed.ZeroInt, err
	}
	if pnl.Abs().Gt(maxPnl) {
		return maxPnl.Signed()
	}
	return pnl, nil
}

// IsPnlFactorExceeded reports whether the side's pnl-to-pool factor is
// positive and above the max factor of kind.
func IsPnlFactorExceeded(m BaseMarket, prices Prices, kind PnlFactorKind, isLong bool) (bool, fixed.Int, fixed.Uint, error) {
	factor, err := PnlToPoolFactor(m, prices, isLong, true)
	if err != nil {
		return false, fixed.ZeroInt, fixed.Zero, err
	}
	maxFactor := m.Config().Limits.MaxPnlFactor.Get(kind, isLong)
	exceeded := factor.IsPositive() && factor.Abs().Gt(maxFactor)
	return exceeded, factor, maxFactor, nil
}

// ValidateMaxPnl checks both sides against the max pnl factor of kind.
func ValidateMaxPnl(m BaseMarket, prices Prices, kind PnlFactorKind) error {
	for _, isLong := range []bool{true, false} {
		exceeded, _, _, err := IsPnlFactorExceeded(m, prices, kind, isLong)
		if err != nil {
			return err
		}
		if exceeded {
			return &PnlFactorError{Kind: kind, IsLong: isLong}
		}
	}
	return nil
}

// ReservedValue returns the USD value reserved for a side's open positions.
// Longs reserve the current value of their index tokens, shorts their size.
func ReservedValue(m BaseMarket, indexPrice Price, isLong bool) (fixed.Uint, error) {
	if isLong {
		tokens, err := OpenInterestInTokens(m, true)
		if err != nil {
			return fixed.Zero, err
		}
		return tokens.Mul(indexPrice.Max)
	}
	return OpenInterest(m, false)
}

func validateReserveWith(m BaseMarket, prices Prices, isLong bool, factor fixed.Uint) error {
	poolValue, err := PoolValueWithoutPnlForOneSide(m, prices, isLong, false)
	if err != nil {
		return err
	}
	maxReserved, err := fixed.ApplyFactor(poolValue, factor)
	if err != nil {
		return err
	}
	reserved, err := ReservedValue(m, prices.IndexToken, isLong)
	if err != nil {
		return err
	}
	if reserved.Gt(maxReserved) {
		return sideErr(ErrInsufficientReserve, isLong)
	}
	return nil
}

// ValidateReserve checks the reserved value against reserve_factor.
func ValidateReserve(m BaseMarket, prices Prices, isLong bool) error {
	return validateReserveWith(m, prices, isLong, m.Config().Limits.ReserveFactor)
}

// ValidateOpenInterestReserve checks the reserved value against
// open_interest_reserve_factor.
func ValidateOpenInterestReserve(m BaseMarket, prices Prices, isLong bool) error {
	return validateReserveWith(m, prices, isLong, m.Config().Limits.OpenInterestReserveFactor)
}

// UsageFactor returns max(reserve usage, open interest usage) of a side.
func UsageFactor(m BaseMarket, isLong bool, reserved, poolValue fixed.Uint) (fixed.Uint, error) {
	limits := m.Config().Limits
	maxReserved, err := fixed.ApplyFactor(poolValue, limits.ReserveFactor)
	if err != nil {
		return fixed.Zero, err
	}
	reserveUsage, err := fixed.DivToFactor(reserved, maxReserved, false)
	if err != nil {
		return fixed.Zero, err
	}
	if limits.IgnoreOpenInterestForUsageFactor {
		return reserveUsage, nil
	}
	maxOI := limits.MaxOpenInterest.Get(isLong)
	if maxOI.IsZero() {
		return reserveUsage, nil
	}
	oi, err := OpenInterest(m, isLong)
	if err != nil {
		return fixed.Zero, err
	}
	oiUsage, err := fixed.DivToFactor(oi, maxOI, false)
	if err != nil {
		return fixed.Zero, err
	}
	return fixed.MaxOf(reserveUsage, oiUsage), nil
}

// ValidateUsageFactor rejects a side whose usage factor is above Unit.
func ValidateUsageFactor(m BaseMarket, prices Prices, isLong bool) error {
	reserved, err := ReservedValue(m, prices.IndexToken, isLong)
	if err != nil {
		return err
	}
	if reserved.IsZero() {
		return nil
	}
	poolValue, err := PoolValueWithoutPnlForOneSide(m, prices, isLong, false)
	if err != nil {
		return err
	}
	usage, err := UsageFactor(m, isLong, reserved, poolValue)
	if err != nil {
		return err
	}
	if usage.Gt(fixed.Unit) {
		return sideErr(ErrInsufficientReserve, isLong)
	}
	return nil
}

// ValidateMaxOpenInterest checks the side's open interest against its limit.
func ValidateMaxOpenInterest(m BaseMarket, isLong bool) error {
	limit := m.Config().Limits.MaxOpenInterest.Get(isLong)
	if limit.IsZero() {
		return nil
	}
	oi, err := OpenInterest(m, isLong)
	if err != nil {
		return err
	}
	if oi.Gt(limit) {
		return sideErr(ErrMaxOpenInterestExceeded, isLong)
	}
	return nil
}

// ValidatePoolAmount checks the side's primary pool amount against its limit.
func ValidatePoolAmount(m BaseMarket, isLong bool) error {
	limit := m.Config().Limits.MaxPoolAmount.Get(isLong)
	if limit.IsZero() {
		return nil
	}
	if PoolAmount(m, isLong).Gt(limit) {
		return sideErr(ErrMaxPoolAmountExceeded, isLong)
	}
	return nil
}

// ValidatePoolValueForDeposit checks the side's pool value against
// max_pool_value_for_deposit.
func ValidatePoolValueForDeposit(m BaseMarket, prices Prices, isLong bool) error {
	limit := m.Config().Limits.MaxPoolValueForDeposit.Get(isLong)
	if limit.IsZero() {
		return nil
	}
	value, err := PoolValueWithoutPnlForOneSide(m, prices, isLong, true)
	if err != nil {
		return err
	}
	if value.Gt(limit) {
		return sideErr(ErrMaxPoolAmountExceeded, isLong)
	}
	return nil
}

// MinCollateralFactorForOpenInterest returns the side's open interest plus
// delta times the configured multiplier.
func MinCollateralFactorForOpenInterest(m BaseMarket, isLong bool, delta fixed.Int) (fixed.Uint, error) {
	oi, err := OpenInterest(m, isLong)
	if err != nil {
		return fixed.Zero, err
	}
	next, err := oi.AddSigned(delta)
	if err != nil {
		return fixed.Zero, err
	}
	return fixed.ApplyFactor(next, m.Config().Limits.MinCollateralFactorForOpenInterest.Get(isLong))
}
