package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// UpdateBorrowing accrues borrowing on both sides of a market.
type UpdateBorrowing struct {
	m      *market.Market
	clock  market.ClockSource
	prices market.Prices
}

// NewUpdateBorrowing validates prices and returns the action.
func NewUpdateBorrowing(m *market.Market, clock market.ClockSource, prices market.Prices) (*UpdateBorrowing, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &UpdateBorrowing{m: m, clock: clock, prices: prices}, nil
}

// Execute advances the borrowing clock and accrues both sides.
func (a *UpdateBorrowing) Execute() (market.BorrowingUpdate, error) {
	return run("update_borrowing", a.m, a.clock, func(r *market.Revertible) (market.BorrowingUpdate, error) {
		return market.UpdateBorrowingState(r, a.prices)
	})
}

// UpdateFunding moves the funding factor and the per-size funding amounts
// forward to now.
type UpdateFunding struct {
	m      *market.Market
	clock  market.ClockSource
	prices market.Prices
}

// NewUpdateFunding validates prices and returns the action.
func NewUpdateFunding(m *market.Market, clock market.ClockSource, prices market.Prices) (*UpdateFunding, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &UpdateFunding{m: m, clock: clock, prices: prices}, nil
}

// Execute runs the funding update and commits it.
func (a *UpdateFunding) Execute() (market.FundingUpdate, error) {
	return run("update_funding", a.m, a.clock, func(r *market.Revertible) (market.FundingUpdate, error) {
		return market.UpdateFundingState(r, a.prices)
	})
}

// UpdateAdl recomputes the ADL flag of one side.
type UpdateAdl struct {
	m      *market.Market
	clock  market.ClockSource
	prices market.Prices
	isLong bool
}

// NewUpdateAdl returns the action for one side.
func NewUpdateAdl(m *market.Market, clock market.ClockSource, prices market.Prices, isLong bool) (*UpdateAdl, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &UpdateAdl{m: m, clock: clock, prices: prices, isLong: isLong}, nil
}

// Execute records whether ADL is enabled for the side.
func (a *UpdateAdl) Execute() (market.AdlUpdate, error) {
	return run("update_adl", a.m, a.clock, func(r *market.Revertible) (market.AdlUpdate, error) {
		return market.UpdateAdlState(r, a.prices, a.isLong)
	})
}

// DistributePositionImpact releases position impact pool tokens into the
// primary pool.
type DistributePositionImpact struct {
	m     *market.Market
	clock market.ClockSource
}

// NewDistributePositionImpact returns the action for m.
func NewDistributePositionImpact(m *market.Market, clock market.ClockSource) (*DistributePositionImpact, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	return &DistributePositionImpact{m: m, clock: clock}, nil
}

// Execute moves the distributable amount and advances the distribution clock.
func (a *DistributePositionImpact) Execute() (market.ImpactDistribution, error) {
	return run("distribute_position_impact", a.m, a.clock, func(r *market.Revertible) (market.ImpactDistribution, error) {
		return market.DistributePositionImpact(r)
	})
}

// ClaimFeesReport is the result of a fee claim.
type ClaimFeesReport struct {
	Token  string     `json:"token"`
	Amount fixed.Uint `json:"amount"`
}

// ClaimFees pays out the fees accrued for the receiver in one collateral
// token.
type ClaimFees struct {
	m           *market.Market
	clock       market.ClockSource
	token       string
	isLongToken bool
}

// NewClaimFees fails with ErrInvalidArgument if token is not a collateral
// token of m.
func NewClaimFees(m *market.Market, clock market.ClockSource, token string) (*ClaimFees, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	isLongToken, err := m.Tokens.IsCollateralLong(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrInvalidArgument, err)
	}
	return &ClaimFees{m: m, clock: clock, token: token, isLongToken: isLongToken}, nil
}

// Execute transfers the claimable amount out. A pure market pays both slots.
func (a *ClaimFees) Execute() (ClaimFeesReport, error) {
	return run("claim_fees", a.m, a.clock, func(r *market.Revertible) (ClaimFeesReport, error) {
		fees := r.Pool(pool.ClaimableFee)
		amount := fees.Amount(a.isLongToken)
		if fees.IsPure() {
			total, err := fees.Total()
			if err != nil {
				return ClaimFeesReport{}, err
			}
			amount = total
		}
		if err := market.SubFromPool(r, pool.ClaimableFee, a.isLongToken, amount); err != nil {
			return ClaimFeesReport{}, err
		}
		if err := transferOut(r, a.token, amount); err != nil {
			return ClaimFeesReport{}, err
		}
		return ClaimFeesReport{Token: a.token, Amount: amount}, nil
	})
}
