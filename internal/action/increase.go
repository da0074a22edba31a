package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// IncreaseParams are the inputs of a position increase. A nil
// AcceptablePrice accepts any execution price.
type IncreaseParams struct {
	CollateralDeltaAmount uint64      `json:"collateral_delta_amount"`
	SizeDeltaUsd          fixed.Uint  `json:"size_delta_usd"`
	AcceptablePrice       *fixed.Uint `json:"acceptable_price,omitempty"`
}

// IncreasePositionReport is the result of a position increase.
type IncreasePositionReport struct {
	Params            IncreaseParams      `json:"params"`
	ExecutionPrice    fixed.Uint          `json:"execution_price"`
	PriceImpactUsd    fixed.Int           `json:"price_impact_usd"`
	PriceImpactAmount fixed.Int           `json:"price_impact_amount"`
	SizeDeltaInTokens fixed.Uint          `json:"size_delta_in_tokens"`
	Fees              market.PositionFees `json:"fees"`
	ClaimableFunding  market.TokenAmounts `json:"claimable_funding"`
	Settlement        Settlement          `json:"settlement"`
}

// IncreasePosition adds collateral and size to a position. The position may
// be new.
type IncreasePosition struct {
	m        *market.Market
	clock    market.ClockSource
	position *market.Position
	params   IncreaseParams
	prices   market.Prices
}

// NewIncreasePosition validates a position increase.
func NewIncreasePosition(m *market.Market, clock market.ClockSource, position *market.Position, params IncreaseParams, prices market.Prices) (*IncreasePosition, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if err := validatePosition(m, position); err != nil {
		return nil, err
	}
	if params.CollateralDeltaAmount == 0 && params.SizeDeltaUsd.IsZero() {
		return nil, fmt.Errorf("%w: empty position increase", market.ErrInvalidArgument)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &IncreasePosition{m: m, clock: clock, position: position, params: params, prices: prices}, nil
}

// Execute runs the increase. A position left liquidatable fails with a
// *market.LiquidatableError.
func (a *IncreasePosition) Execute() (IncreasePositionReport, error) {
	return run("increase_position", a.m, a.clock, a.execute)
}

func (a *IncreasePosition) execute(r *market.Revertible) (IncreasePositionReport, error) {
	report := IncreasePositionReport{Params: a.params}
	settlement, err := settlePosition(r, a.prices)
	if err != nil {
		return IncreasePositionReport{}, err
	}
	report.Settlement = settlement

	p := r.Position(a.position)
	isLongCollateral, err := r.Tokens().IsCollateralLong(p.CollateralToken)
	if err != nil {
		return IncreasePositionReport{}, err
	}
	collateralPrice := a.prices.CollateralTokenPrice(isLongCollateral)
	index := a.prices.IndexToken
	sizeDelta := a.params.SizeDeltaUsd

	// Pending fees are settled against the collateral before the size changes.
	fees, err := market.ComputePositionFees(r, collateralPrice, p, sizeDelta)
	if err != nil {
		return IncreasePositionReport{}, err
	}
	report.Fees = fees
	report.ClaimableFunding = fees.Funding.Claimable
	cost, err := fees.TotalCost()
	if err != nil {
		return IncreasePositionReport{}, err
	}
	collateral, err := p.CollateralAmount.Add(amountOf(a.params.CollateralDeltaAmount))
	if err != nil {
		return IncreasePositionReport{}, err
	}
	if collateral.Lt(cost) {
		return IncreasePositionReport{}, fmt.Errorf("%w: collateral %s, costs %s", market.ErrInsufficientFundsToPayForCosts, collateral, cost)
	}

	report.ExecutionPrice = index.PickForPnl(p.IsLong, true)
	if !sizeDelta.IsZero() {
		if err := a.priceSizeDelta(r, p, &report); err != nil {
			return IncreasePositionReport{}, err
		}
	}

	p.CollateralAmount = collateral.SaturatingSub(cost)
	if err := payPositionFees(r, isLongCollateral, fees); err != nil {
		return IncreasePositionReport{}, err
	}

	prevSize, prevFactor := p.SizeInUsd, p.BorrowingFactor
	if p.SizeInUsd, err = p.SizeInUsd.Add(sizeDelta); err != nil {
		return IncreasePositionReport{}, err
	}
	if p.SizeInTokens, err = p.SizeInTokens.Add(report.SizeDeltaInTokens); err != nil {
		return IncreasePositionReport{}, err
	}
	if err := p.Snapshot(r); err != nil {
		return IncreasePositionReport{}, err
	}
	p.IncreasedAt = r.Now()

	sizeDeltaSigned, err := sizeDelta.Signed()
	if err != nil {
		return IncreasePositionReport{}, err
	}
	tokensDelta, err := report.SizeDeltaInTokens.Signed()
	if err != nil {
		return IncreasePositionReport{}, err
	}
	if err := applyOpenInterest(r, p, isLongCollateral, sizeDeltaSigned, tokensDelta, prevSize, prevFactor); err != nil {
		return IncreasePositionReport{}, err
	}
	if err := market.ApplyDelta(r, pool.PositionImpact, true, report.PriceImpactAmount.Neg()); err != nil {
		return IncreasePositionReport{}, err
	}

	if !sizeDelta.IsZero() {
		if err := market.ValidateMaxOpenInterest(r, p.IsLong); err != nil {
			return IncreasePositionReport{}, err
		}
		if err := market.ValidateReserve(r, a.prices, p.IsLong); err != nil {
			return IncreasePositionReport{}, err
		}
		if err := market.ValidateOpenInterestReserve(r, a.prices, p.IsLong); err != nil {
			return IncreasePositionReport{}, err
		}
		if err := market.ValidateUsageFactor(r, a.prices, p.IsLong); err != nil {
			return IncreasePositionReport{}, err
		}
	}
	reason, err := market.CheckLiquidatable(r, a.prices, p, true)
	if err != nil {
		return IncreasePositionReport{}, err
	}
	if reason != 0 {
		return IncreasePositionReport{}, &market.LiquidatableError{Reason: reason}
	}

	if err := transferIn(r, p.CollateralToken, amountOf(a.params.CollateralDeltaAmount)); err != nil {
		return IncreasePositionReport{}, err
	}
	if err := transferClaimableFunding(r, report.ClaimableFunding); err != nil {
		return IncreasePositionReport{}, err
	}
	return report, nil
}

// priceSizeDelta computes the capped price impact, the size delta in index
// tokens and the execution price of the increase.
func (a *IncreasePosition) priceSizeDelta(r *market.Revertible, p *market.Position, report *IncreasePositionReport) error {
	index := a.prices.IndexToken
	sizeDelta := a.params.SizeDeltaUsd

	delta, err := sizeDelta.Signed()
	if err != nil {
		return err
	}
	impactUsd, err := market.PositionPriceImpactUsd(r, p.IsLong, delta)
	if err != nil {
		return err
	}
	if impactUsd, err = market.CapPositionImpactUsd(r, index, impactUsd, sizeDelta, false); err != nil {
		return err
	}
	impactAmount, err := market.ImpactAmount(index, impactUsd)
	if err != nil {
		return err
	}

	// Longs buy at the max price, shorts sell at the min price. Positive
	// impact gives longs more tokens and shorts fewer.
	var base fixed.Uint
	if p.IsLong {
		base, err = sizeDelta.Div(index.Max)
	} else {
		base, err = sizeDelta.DivCeil(index.Min)
	}
	if err != nil {
		return err
	}
	adjustment := impactAmount
	if !p.IsLong {
		adjustment = adjustment.Neg()
	}
	tokens, err := base.AddSigned(adjustment)
	if err != nil || tokens.IsZero() {
		return &market.InvalidPositionError{Reason: "price impact larger than order size"}
	}
	executionPrice, err := sizeDelta.Div(tokens)
	if err != nil {
		return err
	}
	if err := checkAcceptablePrice(p.IsLong, true, executionPrice, a.params.AcceptablePrice); err != nil {
		return err
	}

	report.PriceImpactUsd = impactUsd
	report.PriceImpactAmount = impactAmount
	report.SizeDeltaInTokens = tokens
	report.ExecutionPrice = executionPrice
	return nil
}
