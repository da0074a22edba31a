package market

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
)

// Sided holds a value per market side.
type Sided struct {
	Long  fixed.Uint `json:"long"`
	Short fixed.Uint `json:"short"`
}

// Both returns a Sided with the same value on each side.
func Both(v fixed.Uint) Sided { return Sided{Long: v, Short: v} }

// Get returns the value for a side.
func (s Sided) Get(isLong bool) fixed.Uint {
	if isLong {
		return s.Long
	}
	return s.Short
}

// PriceImpactParams configures swap or position price impact.
type PriceImpactParams struct {
	Exponent       fixed.Uint `json:"exponent"`
	PositiveFactor fixed.Uint `json:"positive_factor"`
	NegativeFactor fixed.Uint `json:"negative_factor"`
}

// AdjustedFactors returns the (positive, negative) factors. A positive factor
// larger than the negative one is clamped to it, so that moving the pool back
// and forth can never gain from impact.
func (p PriceImpactParams) AdjustedFactors() (positive, negative fixed.Uint) {
	if p.PositiveFactor.Gt(p.NegativeFactor) {
		return p.NegativeFactor, p.NegativeFactor
	}
	return p.PositiveFactor, p.NegativeFactor
}

// FeeParams configures swap, liquidity and position fees.
type FeeParams struct {
	PositiveImpactFeeFactor fixed.Uint `json:"positive_impact_fee_factor"`
	NegativeImpactFeeFactor fixed.Uint `json:"negative_impact_fee_factor"`
	SwapFeeFactor           fixed.Uint `json:"swap_fee_factor"`
	PositionFeeFactor       fixed.Uint `json:"position_fee_factor"`
	ReceiverFactor          fixed.Uint `json:"receiver_factor"`
}

// ImpactFeeFactor picks the fee factor by the sign of the impact.
func (p FeeParams) ImpactFeeFactor(positiveImpact bool) fixed.Uint {
	if positiveImpact {
		return p.PositiveImpactFeeFactor
	}
	return p.NegativeImpactFeeFactor
}

// BorrowingFeeParams configures borrowing fees.
type BorrowingFeeParams struct {
	Factor             Sided      `json:"factor"`
	Exponent           Sided      `json:"exponent"`
	ReceiverFactor     fixed.Uint `json:"receiver_factor"`
	SkipForSmallerSide bool       `json:"skip_for_smaller_side"`
}

// FundingFeeParams configures funding. With a zero IncreaseFactorPerSecond
// the funding factor is Factor × imbalance (stable mode), otherwise it
// adapts over time (adaptive mode).
type FundingFeeParams struct {
	Exponent                fixed.Uint `json:"exponent"`
	Factor                  fixed.Uint `json:"factor"`
	IncreaseFactorPerSecond fixed.Uint `json:"increase_factor_per_second"`
	DecreaseFactorPerSecond fixed.Uint `json:"decrease_factor_per_second"`
	MinFactorPerSecond      fixed.Uint `json:"min_factor_per_second"`
	MaxFactorPerSecond      fixed.Uint `json:"max_factor_per_second"`
	ThresholdForStable      fixed.Uint `json:"threshold_for_stable"`
	ThresholdForDecrease    fixed.Uint `json:"threshold_for_decrease"`
}

// PositionParams configures position limits.
type PositionParams struct {
	MinPositionSizeUsd             fixed.Uint `json:"min_position_size_usd"`
	MinCollateralValue             fixed.Uint `json:"min_collateral_value"`
	MinCollateralFactor            fixed.Uint `json:"min_collateral_factor"`
	MaxPositiveImpactFactor        fixed.Uint `json:"max_positive_impact_factor"`
	MaxNegativeImpactFactor        fixed.Uint `json:"max_negative_impact_factor"`
	MaxImpactFactorForLiquidations fixed.Uint `json:"max_impact_factor_for_liquidations"`
}

// ImpactDistributionParams configures the position impact distribution.
type ImpactDistributionParams struct {
	DistributeFactor            fixed.Uint `json:"distribute_factor"`
	MinPositionImpactPoolAmount fixed.Uint `json:"min_position_impact_pool_amount"`
}

// PnlFactorKind selects a max pnl factor.
type PnlFactorKind uint8

const (
	MaxForDeposit PnlFactorKind = iota
	MaxForWithdrawal
	MaxForTrader
	MaxForAdl
)

func (k PnlFactorKind) String() string {
	switch k {
	case MaxForDeposit:
		return "max_for_deposit"
	case MaxForWithdrawal:
		return "max_for_withdrawal"
	case MaxForTrader:
		return "max_for_trader"
	case MaxForAdl:
		return "max_for_adl"
	default:
		return fmt.Sprintf("pnl_factor_kind(%d)", uint8(k))
	}
}

// MaxPnlFactors holds the max pnl factor per kind.
type MaxPnlFactors struct {
	Deposit    Sided `json:"deposit"`
	Withdrawal Sided `json:"withdrawal"`
	Trader     Sided `json:"trader"`
	Adl        Sided `json:"adl"`
}

// Get returns the factor for a kind and side.
func (f MaxPnlFactors) Get(kind PnlFactorKind, isLong bool) fixed.Uint {
	switch kind {
	case MaxForDeposit:
		return f.Deposit.Get(isLong)
	case MaxForWithdrawal:
		return f.Withdrawal.Get(isLong)
	case MaxForTrader:
		return f.Trader.Get(isLong)
	default:
		return f.Adl.Get(isLong)
	}
}

// Limits bounds pool, open interest and pnl. A zero MaxPoolAmount,
// MaxPoolValueForDeposit or MaxOpenInterest means no limit.
type Limits struct {
	MaxPoolAmount                      Sided         `json:"max_pool_amount"`
	MaxPoolValueForDeposit             Sided         `json:"max_pool_value_for_deposit"`
	MaxPnlFactor                       MaxPnlFactors `json:"max_pnl_factor"`
	MaxOpenInterest                    Sided         `json:"max_open_interest"`
	ReserveFactor                      fixed.Uint    `json:"reserve_factor"`
	OpenInterestReserveFactor          fixed.Uint    `json:"open_interest_reserve_factor"`
	MinCollateralFactorForOpenInterest Sided         `json:"min_collateral_factor_for_open_interest"`
	IgnoreOpenInterestForUsageFactor   bool          `json:"ignore_open_interest_for_usage_factor"`
}

// Config is the per-market configuration. It is read-only during an action.
type Config struct {
	SwapImpact         PriceImpactParams        `json:"swap_impact"`
	PositionImpact     PriceImpactParams        `json:"position_impact"`
	Fees               FeeParams                `json:"fees"`
	Borrowing          BorrowingFeeParams       `json:"borrowing"`
	Funding            FundingFeeParams         `json:"funding"`
	Position           PositionParams           `json:"position"`
	ImpactDistribution ImpactDistributionParams `json:"impact_distribution"`
	Limits             Limits                   `json:"limits"`
}

// Validate rejects configurations whose factors are out of range.
func (c *Config) Validate() error {
	factors := map[string]fixed.Uint{
		"fees.receiver_factor":            c.Fees.ReceiverFactor,
		"borrowing.receiver_factor":       c.Borrowing.ReceiverFactor,
		"limits.reserve_factor":           c.Limits.ReserveFactor,
		"limits.open_interest_reserve":    c.Limits.OpenInterestReserveFactor,
		"fees.position_fee_factor":        c.Fees.PositionFeeFactor,
		"fees.swap_fee_factor":            c.Fees.SwapFeeFactor,
		"fees.positive_impact_fee_factor": c.Fees.PositiveImpactFeeFactor,
		"fees.negative_impact_fee_factor": c.Fees.NegativeImpactFeeFactor,
	}
	for name, f := range factors {
		if f.Gt(fixed.Unit) {
			return invalidArgument("%s above unit", name)
		}
	}
	if c.Funding.MinFactorPerSecond.Gt(c.Funding.MaxFactorPerSecond) {
		return invalidArgument("funding min factor above max factor")
	}
	return nil
}
