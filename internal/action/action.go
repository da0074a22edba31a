// Package action implements the market actions.
//
// Every action is built by a New* constructor that validates its inputs and
// returns an executor. Execute runs the action against a revertible overlay
// of the market and commits it only when every step succeeded, so a failed
// action leaves the market and its positions untouched.
//
// Actions never log and never read the process clock; time comes from the
// market.ClockSource given to the constructor.
package action

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

var debugLogger atomic.Pointer[slog.Logger]

// SetDebugLogger enables debug output for executed actions. A nil logger
// turns it off again, which is the default.
func SetDebugLogger(l *slog.Logger) {
	debugLogger.Store(l)
}

func debug(msg string, args ...any) {
	if l := debugLogger.Load(); l != nil {
		l.Debug(msg, args...)
	}
}

// run executes fn against a fresh overlay of m and commits on success.
func run[R any](name string, m *market.Market, clock market.ClockSource, fn func(r *market.Revertible) (R, error)) (R, error) {
	var zero R
	r, err := market.NewRevertible(m, clock)
	if err != nil {
		return zero, err
	}
	defer r.Discard()

	report, err := fn(r)
	if err != nil {
		debug("action failed", "action", name, "market", m.ID, "error", err)
		return zero, err
	}
	r.Commit()
	debug("action committed", "action", name, "market", m.ID)
	return report, nil
}

func validateMarket(m *market.Market, clock market.ClockSource) error {
	if m == nil {
		return fmt.Errorf("%w: nil market", market.ErrInvalidArgument)
	}
	if clock == nil {
		return fmt.Errorf("%w: nil clock", market.ErrInvalidArgument)
	}
	return nil
}

func amountOf(x uint64) fixed.Uint { return fixed.NewUint(x) }

// Settlement holds the time-dependent updates run before a trading action.
type Settlement struct {
	Distribution market.ImpactDistribution `json:"distribution"`
	Borrowing    market.BorrowingUpdate    `json:"borrowing"`
	Funding      *market.FundingUpdate     `json:"funding,omitempty"`
}

// settle runs the time-dependent updates every trading action starts with.
func settle(r *market.Revertible, prices market.Prices) (Settlement, error) {
	distribution, err := market.DistributePositionImpact(r)
	if err != nil {
		return Settlement{}, err
	}
	borrowing, err := market.UpdateBorrowingState(r, prices)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Distribution: distribution, Borrowing: borrowing}, nil
}

// settlePosition is settle followed by the funding update position actions
// need before fees are computed.
func settlePosition(r *market.Revertible, prices market.Prices) (Settlement, error) {
	s, err := settle(r, prices)
	if err != nil {
		return Settlement{}, err
	}
	funding, err := market.UpdateFundingState(r, prices)
	if err != nil {
		return Settlement{}, err
	}
	s.Funding = &funding
	return s, nil
}

func validatePosition(m *market.Market, p *market.Position) error {
	if p == nil {
		return fmt.Errorf("%w: nil position", market.ErrInvalidArgument)
	}
	if p.MarketID != m.ID {
		return fmt.Errorf("%w: position %s belongs to market %s, not %s", market.ErrInvalidArgument, p.ID, p.MarketID, m.ID)
	}
	if _, err := m.Tokens.IsCollateralLong(p.CollateralToken); err != nil {
		return err
	}
	return nil
}

// checkAcceptablePrice fails when a buy executes above, or a sell below, the
// acceptable price. Increasing a long and decreasing a short are buys.
func checkAcceptablePrice(isLong, isIncrease bool, executionPrice fixed.Uint, acceptable *fixed.Uint) error {
	if acceptable == nil {
		return nil
	}
	isBuy := isLong == isIncrease
	if (isBuy && executionPrice.Gt(*acceptable)) || (!isBuy && executionPrice.Lt(*acceptable)) {
		return fmt.Errorf("%w: execution price %s, acceptable %s", market.ErrAcceptablePriceExceeded, executionPrice, *acceptable)
	}
	return nil
}

// payPositionFees credits the order and borrowing fees to the pool and the
// fee receiver. Funding fees stay in the market for the receiving side.
func payPositionFees(r *market.Revertible, isLongCollateral bool, fees market.PositionFees) error {
	forPool, err := fees.Order.FeeAmountForPool.Add(fees.Borrowing.Amount.SaturatingSub(fees.Borrowing.AmountForReceiver))
	if err != nil {
		return err
	}
	forReceiver, err := fees.Order.FeeAmountForReceiver.Add(fees.Borrowing.AmountForReceiver)
	if err != nil {
		return err
	}
	return creditFees(r, isLongCollateral, forPool, forReceiver)
}

// applyOpenInterest moves a position's open interest and total borrowing
// from its previous to its current size.
func applyOpenInterest(r *market.Revertible, p *market.Position, isLongCollateral bool, sizeDelta, tokensDelta fixed.Int, prevSize, prevFactor fixed.Uint) error {
	if err := market.ApplyDelta(r, pool.OpenInterest(p.IsLong), isLongCollateral, sizeDelta); err != nil {
		return err
	}
	if err := market.ApplyDelta(r, pool.OpenInterestInTokens(p.IsLong), isLongCollateral, tokensDelta); err != nil {
		return err
	}
	return market.UpdateTotalBorrowing(r, p.IsLong, prevSize, prevFactor, p.SizeInUsd, p.BorrowingFactor)
}

func transferClaimableFunding(r *market.Revertible, claimable market.TokenAmounts) error {
	tokens := r.Tokens()
	if err := transferOut(r, tokens.LongToken, claimable.LongToken); err != nil {
		return err
	}
	return transferOut(r, tokens.ShortToken, claimable.ShortToken)
}

// takeFromPool removes amount from one side of the primary pool, failing
// with ErrInsufficientLiquidity when the side holds less.
func takeFromPool(r *market.Revertible, isLong bool, amount fixed.Uint) error {
	if market.PoolAmount(r, isLong).Lt(amount) {
		return fmt.Errorf("%w: need %s, pool holds %s", market.ErrInsufficientLiquidity, amount, market.PoolAmount(r, isLong))
	}
	return market.SubFromPool(r, pool.Primary, isLong, amount)
}

// creditFees adds the pool share of fees to the primary pool and the
// receiver share to the claimable fee pool.
func creditFees(r *market.Revertible, isLongToken bool, forPool, forReceiver fixed.Uint) error {
	if err := market.AddToPool(r, pool.Primary, isLongToken, forPool); err != nil {
		return err
	}
	return market.AddToPool(r, pool.ClaimableFee, isLongToken, forReceiver)
}

func transferIn(r *market.Revertible, token string, amount fixed.Uint) error {
	if amount.IsZero() {
		return nil
	}
	v, err := amount.Uint64()
	if err != nil {
		return err
	}
	return r.RecordTransferredIn(token, v)
}

func transferOut(r *market.Revertible, token string, amount fixed.Uint) error {
	if amount.IsZero() {
		return nil
	}
	v, err := amount.Uint64()
	if err != nil {
		return err
	}
	return r.RecordTransferredOut(token, v)
}
