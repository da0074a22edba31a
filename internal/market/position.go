package market

import "github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"

// Position is a trader's position in one market, bound to a collateral token
// and a side. The market is referenced by id only.
type Position struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	MarketID        string `json:"market_id"`
	CollateralToken string `json:"collateral_token"`
	IsLong          bool   `json:"is_long"`

	SizeInUsd        fixed.Uint `json:"size_in_usd"`
	SizeInTokens     fixed.Uint `json:"size_in_tokens"`
	CollateralAmount fixed.Uint `json:"collateral_amount"`

	// Snapshots taken at the last update.
	BorrowingFactor               fixed.Uint   `json:"borrowing_factor"`
	FundingFeeAmountPerSize       fixed.Uint   `json:"funding_fee_amount_per_size"`
	ClaimableFundingAmountPerSize TokenAmounts `json:"claimable_funding_amount_per_size"`

	IncreasedAt int64 `json:"increased_at"`
	DecreasedAt int64 `json:"decreased_at"`
}

// NewPosition returns an empty position.
func NewPosition(id, owner, marketID, collateralToken string, isLong bool) *Position {
	return &Position{
		ID:              id,
		Owner:           owner,
		MarketID:        marketID,
		CollateralToken: collateralToken,
		IsLong:          isLong,
	}
}

// IsEmpty reports whether the position holds neither size nor collateral.
func (p *Position) IsEmpty() bool {
	return p.SizeInUsd.IsZero() && p.SizeInTokens.IsZero() && p.CollateralAmount.IsZero()
}

// Snapshot records the market's current borrowing and funding accumulators.
func (p *Position) Snapshot(m BaseMarket) error {
	isLongCollateral, err := m.Tokens().IsCollateralLong(p.CollateralToken)
	if err != nil {
		return err
	}
	p.BorrowingFactor = CumulativeBorrowingFactor(m, p.IsLong)
	p.FundingFeeAmountPerSize = FundingAmountPerSize(m, p.IsLong, isLongCollateral)
	p.ClaimableFundingAmountPerSize = TokenAmounts{
		LongToken:  ClaimableFundingAmountPerSize(m, p.IsLong, true),
		ShortToken: ClaimableFundingAmountPerSize(m, p.IsLong, false),
	}
	return nil
}

// PositionPnl is the pnl of a (partial) position close.
type PositionPnl struct {
	Pnl               fixed.Int  `json:"pnl"`
	UncappedPnl       fixed.Int  `json:"uncapped_pnl"`
	SizeDeltaInTokens fixed.Uint `json:"size_delta_in_tokens"`
}

// PositionPnlUsd returns the pnl of closing sizeDeltaUsd of p at indexPrice.
// A profit is scaled down when the side's pool pnl is capped by the trader
// max pnl factor.
func PositionPnlUsd(m BaseMarket, prices Prices, p *Position, indexPrice, sizeDeltaUsd fixed.Uint) (PositionPnl, error) {
	if p.SizeInUsd.IsZero() {
		return PositionPnl{}, nil
	}
	value, err := p.SizeInTokens.Mul(indexPrice)
	if err != nil {
		return PositionPnl{}, err
	}
	var total fixed.Int
	if p.IsLong {
		total, err = fixed.Diff(value, p.SizeInUsd)
	} else {
		total, err = fixed.Diff(p.SizeInUsd, value)
	}
	if err != nil {
		return PositionPnl{}, err
	}
	uncapped := total

	if total.IsPositive() {
		poolValue, err := PoolValueWithoutPnlForOneSide(m, prices, p.IsLong, false)
		if err != nil {
			return PositionPnl{}, err
		}
		poolPnl, err := Pnl(m, prices.IndexToken, p.IsLong, true)
		if err != nil {
			return PositionPnl{}, err
		}
		capped, err := CapPnl(m, p.IsLong, poolPnl, poolValue, MaxForTrader)
		if err != nil {
			return PositionPnl{}, err
		}
		if capped.Cmp(poolPnl) != 0 && poolPnl.IsPositive() {
			scaled, err := fixed.MulDiv(total.Abs(), capped.PositivePart(), poolPnl.Abs())
			if err != nil {
				return PositionPnl{}, err
			}
			if total, err = scaled.Signed(); err != nil {
				return PositionPnl{}, err
			}
		}
	}

	var sizeDeltaInTokens fixed.Uint
	if sizeDeltaUsd.Eq(p.SizeInUsd) {
		sizeDeltaInTokens = p.SizeInTokens
	} else {
		sizeDeltaInTokens, err = fixed.MulDivRound(p.SizeInTokens, sizeDeltaUsd, p.SizeInUsd, p.IsLong)
		if err != nil {
			return PositionPnl{}, err
		}
	}
	if p.SizeInTokens.IsZero() {
		return PositionPnl{SizeDeltaInTokens: sizeDeltaInTokens}, nil
	}
	pnl, err := fixed.MulDivSigned(sizeDeltaInTokens, total, p.SizeInTokens)
	if err != nil {
		return PositionPnl{}, err
	}
	uncappedPnl, err := fixed.MulDivSigned(sizeDeltaInTokens, uncapped, p.SizeInTokens)
	if err != nil {
		return PositionPnl{}, err
	}
	return PositionPnl{Pnl: pnl, UncappedPnl: uncappedPnl, SizeDeltaInTokens: sizeDeltaInTokens}, nil
}

// CheckLiquidatable returns the first reason p is liquidatable, or zero.
// Reasons are checked in the order MinCollateral, Insolvent,
// MinCollateralFactor, MinPositionSize.
func CheckLiquidatable(m BaseMarket, prices Prices, p *Position, validateMinCollateral bool) (LiquidatableReason, error) {
	isLongCollateral, err := m.Tokens().IsCollateralLong(p.CollateralToken)
	if err != nil {
		return 0, err
	}
	collateralPrice := prices.CollateralTokenPrice(isLongCollateral)
	cfg := m.Config()

	collateralUsd, err := p.CollateralAmount.Mul(collateralPrice.Min)
	if err != nil {
		return 0, err
	}
	remaining, err := collateralUsd.Signed()
	if err != nil {
		return 0, err
	}

	pnl, err := PositionPnlUsd(m, prices, p, prices.IndexToken.PickForPnl(p.IsLong, false), p.SizeInUsd)
	if err != nil {
		return 0, err
	}
	if remaining, err = remaining.Add(pnl.Pnl); err != nil {
		return 0, err
	}

	closeDelta, err := p.SizeInUsd.Negated()
	if err != nil {
		return 0, err
	}
	impact, err := PositionPriceImpactUsd(m, p.IsLong, closeDelta)
	if err != nil {
		return 0, err
	}
	if impact.IsPositive() {
		impact = fixed.ZeroInt
	}
	if impact, err = CapPositionImpactUsd(m, prices.IndexToken, impact, p.SizeInUsd, true); err != nil {
		return 0, err
	}
	if remaining, err = remaining.Add(impact); err != nil {
		return 0, err
	}

	fees, err := ComputePositionFees(m, collateralPrice, p, p.SizeInUsd)
	if err != nil {
		return 0, err
	}
	costAmount, err := fees.TotalCost()
	if err != nil {
		return 0, err
	}
	costUsd, err := costAmount.Mul(collateralPrice.Min)
	if err != nil {
		return 0, err
	}
	cost, err := costUsd.Signed()
	if err != nil {
		return 0, err
	}
	if remaining, err = remaining.Sub(cost); err != nil {
		return 0, err
	}

	minCollateralValue, err := cfg.Position.MinCollateralValue.Signed()
	if err != nil {
		return 0, err
	}
	if validateMinCollateral && remaining.Lt(minCollateralValue) {
		return MinCollateral, nil
	}
	if !remaining.IsPositive() {
		return Insolvent, nil
	}

	forOI, err := MinCollateralFactorForOpenInterest(m, p.IsLong, fixed.ZeroInt)
	if err != nil {
		return 0, err
	}
	minFactor := fixed.MaxOf(cfg.Position.MinCollateralFactor, forOI)
	minForLeverage, err := fixed.ApplyFactor(p.SizeInUsd, minFactor)
	if err != nil {
		return 0, err
	}
	if remaining.Abs().Lte(minForLeverage) && !minForLeverage.IsZero() {
		return MinCollateralFactor, nil
	}

	if !p.SizeInUsd.IsZero() && p.SizeInUsd.Lt(cfg.Position.MinPositionSizeUsd) {
		return MinPositionSize, nil
	}
	return 0, nil
}
