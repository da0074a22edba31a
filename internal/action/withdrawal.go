package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// WithdrawalReport is the result of a withdrawal. In a pure market the whole
// output is reported as long token.
type WithdrawalReport struct {
	MarketTokenAmount uint64      `json:"market_token_amount"`
	LongTokenOutput   fixed.Uint  `json:"long_token_output"`
	ShortTokenOutput  fixed.Uint  `json:"short_token_output"`
	LongTokenFees     market.Fees `json:"long_token_fees"`
	ShortTokenFees    market.Fees `json:"short_token_fees"`
	PoolValue         fixed.Int   `json:"pool_value"`
	Settlement        Settlement  `json:"settlement"`
}

// Withdrawal burns market tokens for a proportional share of both sides of
// the primary pool.
type Withdrawal struct {
	m      *market.Market
	clock  market.ClockSource
	amount uint64
	prices market.Prices
}

// NewWithdrawal validates a withdrawal of marketTokenAmount market tokens.
func NewWithdrawal(m *market.Market, clock market.ClockSource, marketTokenAmount uint64, prices market.Prices) (*Withdrawal, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if marketTokenAmount == 0 {
		return nil, fmt.Errorf("%w: %w", market.ErrInvalidArgument, market.ErrEmptyWithdrawal)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &Withdrawal{m: m, clock: clock, amount: marketTokenAmount, prices: prices}, nil
}

// Execute runs the withdrawal.
func (w *Withdrawal) Execute() (WithdrawalReport, error) {
	return run("withdrawal", w.m, w.clock, func(r *market.Revertible) (WithdrawalReport, error) {
		report, err := executeWithdrawal(r, w.prices, w.amount)
		if err != nil {
			return WithdrawalReport{}, err
		}
		tokens := r.Tokens()
		if err := transferOut(r, tokens.LongToken, report.LongTokenOutput); err != nil {
			return WithdrawalReport{}, err
		}
		if err := transferOut(r, tokens.ShortToken, report.ShortTokenOutput); err != nil {
			return WithdrawalReport{}, err
		}
		return report, nil
	})
}

// executeWithdrawal removes the withdrawn amounts from the pool and burns the
// market tokens. The caller decides where the output goes.
func executeWithdrawal(r *market.Revertible, prices market.Prices, marketTokenAmount uint64) (WithdrawalReport, error) {
	report := WithdrawalReport{MarketTokenAmount: marketTokenAmount}
	s, err := settle(r, prices)
	if err != nil {
		return WithdrawalReport{}, err
	}
	report.Settlement = s

	poolValue, err := market.PoolValue(r, prices, market.MaxForWithdrawal, false)
	if err != nil {
		return WithdrawalReport{}, err
	}
	if !poolValue.IsPositive() {
		return WithdrawalReport{}, fmt.Errorf("%w: %s", market.ErrInvalidPoolValue, poolValue)
	}
	report.PoolValue = poolValue

	amount := amountOf(marketTokenAmount)
	supply := r.TotalSupply()
	if amount.Gt(supply) {
		return WithdrawalReport{}, fmt.Errorf("%w: withdrawing %s of %s market tokens", market.ErrInvalidArgument, amount, supply)
	}
	usd, err := fixed.MarketTokenAmountToUsd(amount, poolValue.Abs(), supply)
	if err != nil {
		return WithdrawalReport{}, err
	}

	longPoolUsd, err := market.PoolAmount(r, true).Mul(prices.LongToken.Max)
	if err != nil {
		return WithdrawalReport{}, err
	}
	shortPoolUsd, err := market.PoolAmount(r, false).Mul(prices.ShortToken.Max)
	if err != nil {
		return WithdrawalReport{}, err
	}
	totalPoolUsd, err := longPoolUsd.Add(shortPoolUsd)
	if err != nil {
		return WithdrawalReport{}, err
	}
	if totalPoolUsd.IsZero() {
		return WithdrawalReport{}, fmt.Errorf("%w: empty pool", market.ErrInsufficientLiquidity)
	}
	longUsd, err := fixed.MulDiv(usd, longPoolUsd, totalPoolUsd)
	if err != nil {
		return WithdrawalReport{}, err
	}
	shortUsd := usd.SaturatingSub(longUsd)

	outputs := []struct {
		isLong bool
		usd    fixed.Uint
		output *fixed.Uint
		fees   *market.Fees
	}{
		{true, longUsd, &report.LongTokenOutput, &report.LongTokenFees},
		{false, shortUsd, &report.ShortTokenOutput, &report.ShortTokenFees},
	}
	cfg := r.Config()
	for _, side := range outputs {
		gross, err := side.usd.Div(prices.CollateralTokenPrice(side.isLong).Max)
		if err != nil {
			return WithdrawalReport{}, err
		}
		if gross.IsZero() {
			continue
		}
		fees, err := market.NewFees(gross, cfg.Fees.NegativeImpactFeeFactor, cfg.Fees.ReceiverFactor)
		if err != nil {
			return WithdrawalReport{}, err
		}
		totalFee, err := fees.Total()
		if err != nil {
			return WithdrawalReport{}, err
		}
		out, err := gross.Sub(totalFee)
		if err != nil {
			return WithdrawalReport{}, err
		}
		// The pool keeps its share of the fee; everything else leaves it.
		leaving, err := gross.Sub(fees.FeeAmountForPool)
		if err != nil {
			return WithdrawalReport{}, err
		}
		if err := takeFromPool(r, side.isLong, leaving); err != nil {
			return WithdrawalReport{}, err
		}
		if err := market.AddToPool(r, pool.ClaimableFee, side.isLong, fees.FeeAmountForReceiver); err != nil {
			return WithdrawalReport{}, err
		}
		*side.output = out
		*side.fees = fees
	}

	if r.IsPure() {
		folded, err := report.LongTokenOutput.Add(report.ShortTokenOutput)
		if err != nil {
			return WithdrawalReport{}, err
		}
		report.LongTokenOutput, report.ShortTokenOutput = folded, fixed.Zero
	}

	if err := r.Burn(amount); err != nil {
		return WithdrawalReport{}, err
	}
	if err := market.ValidateMaxPnl(r, prices, market.MaxForWithdrawal); err != nil {
		return WithdrawalReport{}, err
	}
	for _, isLong := range []bool{true, false} {
		if err := market.ValidateReserve(r, prices, isLong); err != nil {
			return WithdrawalReport{}, err
		}
	}
	return report, nil
}
