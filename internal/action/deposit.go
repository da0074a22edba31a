package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// DepositReport is the result of a deposit.
type DepositReport struct {
	LongTokenAmount  uint64      `json:"long_token_amount"`
	ShortTokenAmount uint64      `json:"short_token_amount"`
	MintedAmount     fixed.Uint  `json:"minted_amount"`
	PriceImpactUsd   fixed.Int   `json:"price_impact_usd"`
	LongTokenFees    market.Fees `json:"long_token_fees"`
	ShortTokenFees   market.Fees `json:"short_token_fees"`
	PoolValue        fixed.Int   `json:"pool_value"`
	Settlement       Settlement  `json:"settlement"`
}

// Deposit adds long and short tokens to the primary pool and mints market
// tokens for their value.
type Deposit struct {
	m           *market.Market
	clock       market.ClockSource
	longAmount  uint64
	shortAmount uint64
	prices      market.Prices
}

// NewDeposit validates a deposit. At least one amount must be non-zero.
func NewDeposit(m *market.Market, clock market.ClockSource, longTokenAmount, shortTokenAmount uint64, prices market.Prices) (*Deposit, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if longTokenAmount == 0 && shortTokenAmount == 0 {
		return nil, fmt.Errorf("%w: %w", market.ErrInvalidArgument, market.ErrEmptyDeposit)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &Deposit{
		m:           m,
		clock:       clock,
		longAmount:  longTokenAmount,
		shortAmount: shortTokenAmount,
		prices:      prices,
	}, nil
}

// Execute runs the deposit.
func (d *Deposit) Execute() (DepositReport, error) {
	return run("deposit", d.m, d.clock, func(r *market.Revertible) (DepositReport, error) {
		return executeDeposit(r, d.prices, d.longAmount, d.shortAmount)
	})
}

func usdAtMid(price market.Price, amount fixed.Uint) (fixed.Uint, error) {
	mid, err := price.Mid()
	if err != nil {
		return fixed.Zero, err
	}
	return amount.Mul(mid)
}

func executeDeposit(r *market.Revertible, prices market.Prices, longAmount, shortAmount uint64) (DepositReport, error) {
	report := DepositReport{LongTokenAmount: longAmount, ShortTokenAmount: shortAmount}
	s, err := settle(r, prices)
	if err != nil {
		return DepositReport{}, err
	}
	report.Settlement = s

	// Pool value and supply are taken before any token moves.
	poolValue, err := market.PoolValue(r, prices, market.MaxForDeposit, true)
	if err != nil {
		return DepositReport{}, err
	}
	if poolValue.IsNegative() {
		return DepositReport{}, fmt.Errorf("%w: %s", market.ErrInvalidPoolValue, poolValue)
	}
	report.PoolValue = poolValue
	supply := r.TotalSupply()

	long, short := amountOf(longAmount), amountOf(shortAmount)
	longUsd, err := usdAtMid(prices.LongToken, long)
	if err != nil {
		return DepositReport{}, err
	}
	shortUsd, err := usdAtMid(prices.ShortToken, short)
	if err != nil {
		return DepositReport{}, err
	}
	longDelta, err := longUsd.Signed()
	if err != nil {
		return DepositReport{}, err
	}
	shortDelta, err := shortUsd.Signed()
	if err != nil {
		return DepositReport{}, err
	}
	impact, err := market.SwapPriceImpactUsd(r, prices, longDelta, shortDelta)
	if err != nil {
		return DepositReport{}, err
	}
	report.PriceImpactUsd = impact
	totalUsd, err := longUsd.Add(shortUsd)
	if err != nil {
		return DepositReport{}, err
	}

	sides := []struct {
		isLong bool
		amount fixed.Uint
		usd    fixed.Uint
		fees   *market.Fees
	}{
		{true, long, longUsd, &report.LongTokenFees},
		{false, short, shortUsd, &report.ShortTokenFees},
	}
	var mintUsd fixed.Uint
	for _, side := range sides {
		if side.amount.IsZero() {
			continue
		}
		var share fixed.Int
		if !totalUsd.IsZero() {
			if share, err = fixed.MulDivSigned(side.usd, impact, totalUsd); err != nil {
				return DepositReport{}, err
			}
		}
		usd, fees, err := depositSide(r, prices, side.isLong, side.amount, share)
		if err != nil {
			return DepositReport{}, err
		}
		*side.fees = fees
		if mintUsd, err = mintUsd.Add(usd); err != nil {
			return DepositReport{}, err
		}
	}

	minted, err := fixed.UsdToMarketTokenAmount(mintUsd, poolValue.Abs(), supply, r.UsdToAmountDivisor())
	if err != nil {
		return DepositReport{}, err
	}
	if minted.IsZero() {
		return DepositReport{}, fmt.Errorf("%w: nothing to mint", market.ErrEmptyDeposit)
	}
	if err := r.Mint(minted); err != nil {
		return DepositReport{}, err
	}
	report.MintedAmount = minted

	for _, side := range sides {
		if err := market.ValidatePoolAmount(r, side.isLong); err != nil {
			return DepositReport{}, err
		}
		if side.amount.IsZero() {
			continue
		}
		if err := market.ValidatePoolValueForDeposit(r, prices, side.isLong); err != nil {
			return DepositReport{}, err
		}
	}
	if err := market.ValidateMaxPnl(r, prices, market.MaxForDeposit); err != nil {
		return DepositReport{}, err
	}

	tokens := r.Tokens()
	if err := transferIn(r, tokens.LongToken, long); err != nil {
		return DepositReport{}, err
	}
	if err := transferIn(r, tokens.ShortToken, short); err != nil {
		return DepositReport{}, err
	}
	return report, nil
}

// depositSide moves one side of a deposit into the pool and returns the USD
// value it mints for. Positive impact is paid out of the other token's swap
// impact pool and deposited too; negative impact is kept in this token's
// swap impact pool.
func depositSide(r *market.Revertible, prices market.Prices, isLong bool, amount fixed.Uint, impact fixed.Int) (fixed.Uint, market.Fees, error) {
	cfg := r.Config()
	price := prices.CollateralTokenPrice(isLong)

	fees, err := market.NewFees(amount, cfg.Fees.ImpactFeeFactor(impact.IsPositive()), cfg.Fees.ReceiverFactor)
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	totalFee, err := fees.Total()
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	remaining, err := amount.Sub(totalFee)
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	if err := market.AddToPool(r, pool.ClaimableFee, isLong, fees.FeeAmountForReceiver); err != nil {
		return fixed.Zero, market.Fees{}, err
	}

	var mintUsd fixed.Uint
	switch {
	case impact.IsPositive():
		otherPrice := prices.CollateralTokenPrice(!isLong)
		bonus, err := market.ApplySwapImpactWithCap(r, !isLong, otherPrice, impact)
		if err != nil {
			return fixed.Zero, market.Fees{}, err
		}
		if err := market.AddToPool(r, pool.Primary, !isLong, bonus); err != nil {
			return fixed.Zero, market.Fees{}, err
		}
		if mintUsd, err = bonus.Mul(otherPrice.Max); err != nil {
			return fixed.Zero, market.Fees{}, err
		}
	case impact.IsNegative():
		charged, err := market.ApplySwapImpactWithCap(r, isLong, price, impact)
		if err != nil {
			return fixed.Zero, market.Fees{}, err
		}
		if remaining, err = remaining.Sub(charged); err != nil {
			return fixed.Zero, market.Fees{}, err
		}
	}

	toPool, err := remaining.Add(fees.FeeAmountForPool)
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	if err := market.AddToPool(r, pool.Primary, isLong, toPool); err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	inUsd, err := remaining.Mul(price.Min)
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	mintUsd, err = mintUsd.Add(inUsd)
	if err != nil {
		return fixed.Zero, market.Fees{}, err
	}
	return mintUsd, fees, nil
}
