package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// SwapType selects the internal swap run on the output of a decrease.
type SwapType uint8

const (
	NoSwap SwapType = iota
	SwapPnlTokenToCollateralToken
	SwapCollateralTokenToPnlToken
)

func (t SwapType) String() string {
	switch t {
	case SwapPnlTokenToCollateralToken:
		return "pnl_token_to_collateral_token"
	case SwapCollateralTokenToPnlToken:
		return "collateral_token_to_pnl_token"
	default:
		return "none"
	}
}

// ParseSwapType is the inverse of SwapType.String. The empty string means
// NoSwap.
func ParseSwapType(s string) (SwapType, error) {
	for _, t := range []SwapType{NoSwap, SwapPnlTokenToCollateralToken, SwapCollateralTokenToPnlToken} {
		if s == t.String() {
			return t, nil
		}
	}
	if s == "" {
		return NoSwap, nil
	}
	return NoSwap, fmt.Errorf("%w: unknown swap type %q", market.ErrInvalidArgument, s)
}

// DecreaseParams are the inputs of a position decrease. A nil
// AcceptablePrice accepts any execution price.
type DecreaseParams struct {
	CollateralWithdrawalAmount uint64      `json:"collateral_withdrawal_amount"`
	SizeDeltaUsd               fixed.Uint  `json:"size_delta_usd"`
	AcceptablePrice            *fixed.Uint `json:"acceptable_price,omitempty"`
	SwapType                   SwapType    `json:"swap_type"`
	IsLiquidation              bool        `json:"is_liquidation"`
	IsInsolventCloseAllowed    bool        `json:"is_insolvent_close_allowed"`
	IsAdl                      bool        `json:"is_adl"`
}

// ClaimableCollateral is what a decrease owes the trader, in the collateral
// token and in the secondary output token.
type ClaimableCollateral struct {
	OutputAmount          fixed.Uint `json:"output_amount"`
	SecondaryOutputAmount fixed.Uint `json:"secondary_output_amount"`
}

// TryAddAmount adds amount to the output (or secondary output) with
// overflow checking.
func (c *ClaimableCollateral) TryAddAmount(secondary bool, amount fixed.Uint) error {
	target := &c.OutputAmount
	if secondary {
		target = &c.SecondaryOutputAmount
	}
	next, err := target.Add(amount)
	if err != nil {
		return err
	}
	*target = next
	return nil
}

// Debt accumulates the costs of a decrease left unpaid, in collateral token
// amounts.
type Debt struct {
	Pool     fixed.Uint `json:"pool"`
	Receiver fixed.Uint `json:"receiver"`
}

// payForPoolDebt runs f and fails with ErrInsufficientFundsToPayForCosts if
// it left pool debt behind, unless insolvent closes are allowed.
func payForPoolDebt(debt *Debt, insolventCloseAllowed bool, f func() error) error {
	if err := f(); err != nil {
		return err
	}
	if !debt.Pool.IsZero() && !insolventCloseAllowed {
		return fmt.Errorf("%w: %s unpaid", market.ErrInsufficientFundsToPayForCosts, debt.Pool)
	}
	return nil
}

// DecreasePositionReport is the result of a position decrease.
type DecreasePositionReport struct {
	Params               DecreaseParams      `json:"params"`
	SizeDeltaUsd         fixed.Uint          `json:"size_delta_usd"`
	ExecutionPrice       fixed.Uint          `json:"execution_price"`
	PriceImpactUsd       fixed.Int           `json:"price_impact_usd"`
	PriceImpactAmount    fixed.Int           `json:"price_impact_amount"`
	Pnl                  market.PositionPnl  `json:"pnl"`
	Fees                 market.PositionFees `json:"fees"`
	OutputToken          string              `json:"output_token"`
	SecondaryOutputToken string              `json:"secondary_output_token"`
	ClaimableCollateral  ClaimableCollateral `json:"claimable_collateral"`
	ClaimableFunding     market.TokenAmounts `json:"claimable_funding"`
	Debt                 Debt                `json:"debt"`
	InsolventUsd         fixed.Uint          `json:"insolvent_usd"`
	IsFullClose          bool                `json:"is_full_close"`
	Settlement           Settlement          `json:"settlement"`
}

// DecreasePosition realizes pnl, pays a position's costs and returns
// collateral to the trader.
type DecreasePosition struct {
	m        *market.Market
	clock    market.ClockSource
	position *market.Position
	params   DecreaseParams
	prices   market.Prices
}

// NewDecreasePosition validates a position decrease.
func NewDecreasePosition(m *market.Market, clock market.ClockSource, position *market.Position, params DecreaseParams, prices market.Prices) (*DecreasePosition, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if err := validatePosition(m, position); err != nil {
		return nil, err
	}
	if params.SizeDeltaUsd.Gt(position.SizeInUsd) {
		return nil, fmt.Errorf("%w: size delta %s above position size %s", market.ErrInvalidArgument, params.SizeDeltaUsd, position.SizeInUsd)
	}
	if params.IsLiquidation && params.IsAdl {
		return nil, fmt.Errorf("%w: a decrease is either a liquidation or an adl", market.ErrInvalidArgument)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &DecreasePosition{m: m, clock: clock, position: position, params: params, prices: prices}, nil
}

// Execute runs the decrease. A partial decrease that leaves the position
// liquidatable fails with a *market.LiquidatableError.
func (a *DecreasePosition) Execute() (DecreasePositionReport, error) {
	return run("decrease_position", a.m, a.clock, a.execute)
}

// decreaseState carries the token flows of a decrease while its costs are
// paid.
type decreaseState struct {
	r               *market.Revertible
	collateralLong  bool
	secondaryLong   bool
	collateralPrice market.Price
	secondaryPrice  market.Price
	collateral      fixed.Uint
	out             ClaimableCollateral
	debt            Debt
}

// sink receives the part of a cost paid in one token.
type sink func(isLongToken bool, amount fixed.Uint) error

func noSink(bool, fixed.Uint) error { return nil }

func poolSink(r *market.Revertible, k pool.Kind) sink {
	return func(isLongToken bool, amount fixed.Uint) error {
		return market.AddToPool(r, k, isLongToken, amount)
	}
}

// pay takes cost, in collateral tokens, from the output, then the remaining
// collateral, then the secondary output at its min price. It returns what
// is left unpaid.
func (s *decreaseState) pay(cost fixed.Uint, to sink) (fixed.Uint, error) {
	if cost.IsZero() {
		return fixed.Zero, nil
	}
	for _, src := range []*fixed.Uint{&s.out.OutputAmount, &s.collateral} {
		taken := fixed.MinUint(cost, *src)
		*src = src.SaturatingSub(taken)
		cost = cost.SaturatingSub(taken)
		if err := to(s.collateralLong, taken); err != nil {
			return fixed.Zero, err
		}
	}
	if cost.IsZero() || s.out.SecondaryOutputAmount.IsZero() {
		return cost, nil
	}

	needed, err := fixed.MulDivCeil(cost, s.collateralPrice.Min, s.secondaryPrice.Min)
	if err != nil {
		return fixed.Zero, err
	}
	taken := fixed.MinUint(needed, s.out.SecondaryOutputAmount)
	s.out.SecondaryOutputAmount = s.out.SecondaryOutputAmount.SaturatingSub(taken)
	if err := to(s.secondaryLong, taken); err != nil {
		return fixed.Zero, err
	}
	if taken.Eq(needed) {
		return fixed.Zero, nil
	}
	covered, err := fixed.MulDiv(taken, s.secondaryPrice.Min, s.collateralPrice.Min)
	if err != nil {
		return fixed.Zero, err
	}
	return cost.SaturatingSub(covered), nil
}

func (s *decreaseState) payToPool(cost fixed.Uint, to sink) error {
	unpaid, err := s.pay(cost, to)
	if err != nil {
		return err
	}
	s.debt.Pool, err = s.debt.Pool.Add(unpaid)
	return err
}

func (s *decreaseState) payToReceiver(cost fixed.Uint) error {
	unpaid, err := s.pay(cost, poolSink(s.r, pool.ClaimableFee))
	if err != nil {
		return err
	}
	s.debt.Receiver, err = s.debt.Receiver.Add(unpaid)
	return err
}

func (a *DecreasePosition) execute(r *market.Revertible) (DecreasePositionReport, error) {
	report := DecreasePositionReport{Params: a.params}
	settlement, err := settlePosition(r, a.prices)
	if err != nil {
		return DecreasePositionReport{}, err
	}
	report.Settlement = settlement

	p := r.Position(a.position)
	cfg := r.Config()
	tokens := r.Tokens()
	isLongCollateral, err := tokens.IsCollateralLong(p.CollateralToken)
	if err != nil {
		return DecreasePositionReport{}, err
	}
	sizeDelta := a.params.SizeDeltaUsd
	if sizeDelta.Gt(p.SizeInUsd) {
		return DecreasePositionReport{}, fmt.Errorf("%w: size delta %s above position size %s", market.ErrInvalidArgument, sizeDelta, p.SizeInUsd)
	}
	withdrawal := amountOf(a.params.CollateralWithdrawalAmount)

	switch {
	case a.params.IsLiquidation:
		reason, err := market.CheckLiquidatable(r, a.prices, p, true)
		if err != nil {
			return DecreasePositionReport{}, err
		}
		if reason == 0 {
			return DecreasePositionReport{}, market.ErrNotLiquidatable
		}
		sizeDelta, withdrawal = p.SizeInUsd, fixed.Zero
	case a.params.IsAdl:
		if !market.IsAdlEnabled(r, p.IsLong) {
			return DecreasePositionReport{}, fmt.Errorf("%s: %w", r.ID(), &market.SideError{Err: market.ErrAdlNotEnabled, IsLong: p.IsLong})
		}
	}
	if !sizeDelta.IsZero() && p.SizeInUsd.SaturatingSub(sizeDelta).Lt(cfg.Position.MinPositionSizeUsd) {
		sizeDelta = p.SizeInUsd
	}
	isFullClose := !p.SizeInUsd.IsZero() && sizeDelta.Eq(p.SizeInUsd)
	report.SizeDeltaUsd = sizeDelta
	report.IsFullClose = isFullClose

	// The pnl token is the side's own token.
	pnlIsLongToken := p.IsLong
	secondaryDiffers := pnlIsLongToken != isLongCollateral && !r.IsPure()
	report.OutputToken = p.CollateralToken
	report.SecondaryOutputToken = tokens.CollateralToken(pnlIsLongToken)

	if err := a.priceSizeDelta(r, p, sizeDelta, &report); err != nil {
		return DecreasePositionReport{}, err
	}
	if report.Pnl, err = market.PositionPnlUsd(r, a.prices, p, report.ExecutionPrice, sizeDelta); err != nil {
		return DecreasePositionReport{}, err
	}
	collateralPrice := a.prices.CollateralTokenPrice(isLongCollateral)
	if report.Fees, err = market.ComputePositionFees(r, collateralPrice, p, sizeDelta); err != nil {
		return DecreasePositionReport{}, err
	}
	report.ClaimableFunding = report.Fees.Funding.Claimable

	s := &decreaseState{
		r:               r,
		collateralLong:  isLongCollateral,
		secondaryLong:   pnlIsLongToken,
		collateralPrice: collateralPrice,
		secondaryPrice:  a.prices.CollateralTokenPrice(pnlIsLongToken),
		collateral:      p.CollateralAmount,
	}

	if report.Pnl.Pnl.IsPositive() {
		profit, err := report.Pnl.Pnl.Abs().Div(s.secondaryPrice.Max)
		if err != nil {
			return DecreasePositionReport{}, err
		}
		if err := takeFromPool(r, pnlIsLongToken, profit); err != nil {
			return DecreasePositionReport{}, err
		}
		if err := s.out.TryAddAmount(secondaryDiffers, profit); err != nil {
			return DecreasePositionReport{}, err
		}
	}

	fees := report.Fees
	err = payForPoolDebt(&s.debt, a.params.IsInsolventCloseAllowed, func() error {
		if err := s.payToPool(fees.Funding.Amount, noSink); err != nil {
			return err
		}
		borrowingForPool := fees.Borrowing.Amount.SaturatingSub(fees.Borrowing.AmountForReceiver)
		if err := s.payToPool(borrowingForPool, poolSink(r, pool.Primary)); err != nil {
			return err
		}
		if err := s.payToReceiver(fees.Borrowing.AmountForReceiver); err != nil {
			return err
		}
		if err := s.payToPool(fees.Order.FeeAmountForPool, poolSink(r, pool.Primary)); err != nil {
			return err
		}
		if err := s.payToReceiver(fees.Order.FeeAmountForReceiver); err != nil {
			return err
		}
		if report.Pnl.Pnl.IsNegative() {
			loss, err := report.Pnl.Pnl.Abs().DivCeil(collateralPrice.Min)
			if err != nil {
				return err
			}
			return s.payToPool(loss, poolSink(r, pool.Primary))
		}
		return nil
	})
	if err != nil {
		return DecreasePositionReport{}, err
	}
	report.Debt = s.debt
	if report.InsolventUsd, err = s.debt.Pool.Mul(collateralPrice.Min); err != nil {
		return DecreasePositionReport{}, err
	}

	if withdrawal.Gt(s.collateral) {
		return DecreasePositionReport{}, &market.InvalidPositionError{Reason: "collateral withdrawal exceeds collateral"}
	}
	if isFullClose {
		withdrawal = s.collateral
	}
	s.collateral = s.collateral.SaturatingSub(withdrawal)
	if err := s.out.TryAddAmount(false, withdrawal); err != nil {
		return DecreasePositionReport{}, err
	}

	prevSize, prevFactor := p.SizeInUsd, p.BorrowingFactor
	tokensDelta := report.Pnl.SizeDeltaInTokens
	if isFullClose {
		tokensDelta = p.SizeInTokens
	}
	p.SizeInUsd = p.SizeInUsd.SaturatingSub(sizeDelta)
	if p.SizeInTokens, err = p.SizeInTokens.Sub(tokensDelta); err != nil {
		return DecreasePositionReport{}, err
	}
	p.CollateralAmount = s.collateral
	if err := p.Snapshot(r); err != nil {
		return DecreasePositionReport{}, err
	}
	p.DecreasedAt = r.Now()

	sizeDeltaNeg, err := sizeDelta.Negated()
	if err != nil {
		return DecreasePositionReport{}, err
	}
	tokensDeltaNeg, err := tokensDelta.Negated()
	if err != nil {
		return DecreasePositionReport{}, err
	}
	if err := applyOpenInterest(r, p, isLongCollateral, sizeDeltaNeg, tokensDeltaNeg, prevSize, prevFactor); err != nil {
		return DecreasePositionReport{}, err
	}
	if err := market.ApplyDelta(r, pool.PositionImpact, true, report.PriceImpactAmount.Neg()); err != nil {
		return DecreasePositionReport{}, err
	}

	if secondaryDiffers {
		if err := a.swapOutput(r, s, isLongCollateral); err != nil {
			return DecreasePositionReport{}, err
		}
	}
	report.ClaimableCollateral = s.out

	if !isFullClose {
		reason, err := market.CheckLiquidatable(r, a.prices, p, true)
		if err != nil {
			return DecreasePositionReport{}, err
		}
		if reason != 0 {
			return DecreasePositionReport{}, &market.LiquidatableError{Reason: reason}
		}
	}

	if err := transferOut(r, report.OutputToken, s.out.OutputAmount); err != nil {
		return DecreasePositionReport{}, err
	}
	if err := transferOut(r, report.SecondaryOutputToken, s.out.SecondaryOutputAmount); err != nil {
		return DecreasePositionReport{}, err
	}
	if err := transferClaimableFunding(r, report.ClaimableFunding); err != nil {
		return DecreasePositionReport{}, err
	}
	return report, nil
}

// priceSizeDelta computes the capped price impact and the execution price
// of closing sizeDelta.
func (a *DecreasePosition) priceSizeDelta(r *market.Revertible, p *market.Position, sizeDelta fixed.Uint, report *DecreasePositionReport) error {
	index := a.prices.IndexToken
	base := index.PickForPnl(p.IsLong, false)
	report.ExecutionPrice = base
	if sizeDelta.IsZero() {
		return nil
	}

	delta, err := sizeDelta.Negated()
	if err != nil {
		return err
	}
	impactUsd, err := market.PositionPriceImpactUsd(r, p.IsLong, delta)
	if err != nil {
		return err
	}
	if impactUsd, err = market.CapPositionImpactUsd(r, index, impactUsd, sizeDelta, a.params.IsLiquidation); err != nil {
		return err
	}
	impactAmount, err := market.ImpactAmount(index, impactUsd)
	if err != nil {
		return err
	}
	report.PriceImpactUsd = impactUsd
	report.PriceImpactAmount = impactAmount

	if !p.SizeInTokens.IsZero() {
		// Closing a long is a sell, so positive impact raises its price; a
		// short closes with a buy and the sign flips.
		adjusted := impactUsd
		if !p.IsLong {
			adjusted = adjusted.Neg()
		}
		perToken, err := fixed.MulDivSigned(p.SizeInUsd, adjusted, p.SizeInTokens)
		if err != nil {
			return err
		}
		adjustment, err := perToken.DivUint(sizeDelta)
		if err != nil {
			return err
		}
		if report.ExecutionPrice, err = base.AddSigned(adjustment); err != nil || report.ExecutionPrice.IsZero() {
			return &market.InvalidPositionError{Reason: "price impact larger than execution price"}
		}
	}
	return checkAcceptablePrice(p.IsLong, false, report.ExecutionPrice, a.params.AcceptablePrice)
}

// swapOutput runs the internal swap selected by the decrease params against
// the market's own pool.
func (a *DecreasePosition) swapOutput(r *market.Revertible, s *decreaseState, isLongCollateral bool) error {
	swapFee := r.Config().Fees.SwapFeeFactor
	switch a.params.SwapType {
	case SwapPnlTokenToCollateralToken:
		if s.out.SecondaryOutputAmount.IsZero() {
			return nil
		}
		res, err := swapInPool(r, a.prices, !isLongCollateral, s.out.SecondaryOutputAmount, false, swapFee)
		if err != nil {
			return err
		}
		s.out.SecondaryOutputAmount = fixed.Zero
		return s.out.TryAddAmount(false, res.amountOut)
	case SwapCollateralTokenToPnlToken:
		if s.out.OutputAmount.IsZero() {
			return nil
		}
		res, err := swapInPool(r, a.prices, isLongCollateral, s.out.OutputAmount, false, swapFee)
		if err != nil {
			return err
		}
		s.out.OutputAmount = fixed.Zero
		return s.out.TryAddAmount(true, res.amountOut)
	}
	return nil
}
