package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// SwapReport is the result of a swap.
type SwapReport struct {
	TokenIn           string      `json:"token_in"`
	TokenOut          string      `json:"token_out"`
	AmountIn          uint64      `json:"amount_in"`
	AmountOut         fixed.Uint  `json:"amount_out"`
	Fees              market.Fees `json:"fees"`
	PriceImpactUsd    fixed.Int   `json:"price_impact_usd"`
	PriceImpactAmount fixed.Uint  `json:"price_impact_amount"`
	Settlement        Settlement  `json:"settlement"`
}

// Swap exchanges one collateral token of a market for the other against the
// primary pool.
type Swap struct {
	m        *market.Market
	clock    market.ClockSource
	isLongIn bool
	amountIn uint64
	prices   market.Prices
}

// NewSwap validates a swap of amountIn of tokenIn. Pure markets have nothing
// to swap.
func NewSwap(m *market.Market, clock market.ClockSource, tokenIn string, amountIn uint64, prices market.Prices) (*Swap, error) {
	if err := validateMarket(m, clock); err != nil {
		return nil, err
	}
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: %w", market.ErrInvalidArgument, market.ErrEmptySwap)
	}
	if m.IsPure() {
		return nil, fmt.Errorf("%w: market %s has a single collateral token", market.ErrInvalidSwapPath, m.ID)
	}
	isLongIn, err := m.Tokens.IsCollateralLong(tokenIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrInvalidSwapPath, err)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return &Swap{m: m, clock: clock, isLongIn: isLongIn, amountIn: amountIn, prices: prices}, nil
}

// Execute runs the swap.
func (s *Swap) Execute() (SwapReport, error) {
	return run("swap", s.m, s.clock, func(r *market.Revertible) (SwapReport, error) {
		tokens := r.Tokens()
		report := SwapReport{
			TokenIn:  tokens.CollateralToken(s.isLongIn),
			TokenOut: tokens.CollateralToken(!s.isLongIn),
			AmountIn: s.amountIn,
		}
		settlement, err := settle(r, s.prices)
		if err != nil {
			return SwapReport{}, err
		}
		report.Settlement = settlement

		res, err := swapInPool(r, s.prices, s.isLongIn, amountOf(s.amountIn), true, fixed.Zero)
		if err != nil {
			return SwapReport{}, err
		}
		report.AmountOut = res.amountOut
		report.Fees = res.fees
		report.PriceImpactUsd = res.impactUsd
		report.PriceImpactAmount = res.impactAmount

		if err := transferIn(r, report.TokenIn, amountOf(s.amountIn)); err != nil {
			return SwapReport{}, err
		}
		if err := transferOut(r, report.TokenOut, report.AmountOut); err != nil {
			return SwapReport{}, err
		}
		return report, nil
	})
}

type swapResult struct {
	amountOut    fixed.Uint
	fees         market.Fees
	impactUsd    fixed.Int
	impactAmount fixed.Uint
}

// swapInPool swaps amountIn of the long (or short) token for the other token
// of the same market. With impact set the fee factor follows the sign of the
// swap impact, otherwise feeFactor is charged and impact is ignored.
func swapInPool(r *market.Revertible, prices market.Prices, isLongIn bool, amountIn fixed.Uint, impact bool, feeFactor fixed.Uint) (swapResult, error) {
	cfg := r.Config()
	priceIn := prices.CollateralTokenPrice(isLongIn)
	priceOut := prices.CollateralTokenPrice(!isLongIn)

	var res swapResult
	if impact {
		usdIn, err := usdAtMid(priceIn, amountIn)
		if err != nil {
			return swapResult{}, err
		}
		outPoolUsd, err := usdAtMid(priceOut, market.PoolAmount(r, !isLongIn))
		if err != nil {
			return swapResult{}, err
		}
		if usdIn.Gt(outPoolUsd) {
			return swapResult{}, fmt.Errorf("%w: swap of %s usd against %s usd", market.ErrInsufficientLiquidity, usdIn, outPoolUsd)
		}
		in, err := usdIn.Signed()
		if err != nil {
			return swapResult{}, err
		}
		longDelta, shortDelta := in, in.Neg()
		if !isLongIn {
			longDelta, shortDelta = shortDelta, longDelta
		}
		if res.impactUsd, err = market.SwapPriceImpactUsd(r, prices, longDelta, shortDelta); err != nil {
			return swapResult{}, err
		}
		feeFactor = cfg.Fees.ImpactFeeFactor(res.impactUsd.IsPositive())
	}

	fees, err := market.NewFees(amountIn, feeFactor, cfg.Fees.ReceiverFactor)
	if err != nil {
		return swapResult{}, err
	}
	res.fees = fees
	totalFee, err := fees.Total()
	if err != nil {
		return swapResult{}, err
	}
	afterFees, err := amountIn.Sub(totalFee)
	if err != nil {
		return swapResult{}, err
	}
	if err := market.AddToPool(r, pool.ClaimableFee, isLongIn, fees.FeeAmountForReceiver); err != nil {
		return swapResult{}, err
	}

	var bonus fixed.Uint
	switch {
	case res.impactUsd.IsPositive():
		if bonus, err = market.ApplySwapImpactWithCap(r, !isLongIn, priceOut, res.impactUsd); err != nil {
			return swapResult{}, err
		}
		res.impactAmount = bonus
	case res.impactUsd.IsNegative():
		charged, err := market.ApplySwapImpactWithCap(r, isLongIn, priceIn, res.impactUsd)
		if err != nil {
			return swapResult{}, err
		}
		if afterFees, err = afterFees.Sub(charged); err != nil {
			return swapResult{}, err
		}
		res.impactAmount = charged
	}

	fromPool, err := fixed.MulDiv(afterFees, priceIn.Min, priceOut.Max)
	if err != nil {
		return swapResult{}, err
	}
	if res.amountOut, err = fromPool.Add(bonus); err != nil {
		return swapResult{}, err
	}

	toPool, err := afterFees.Add(fees.FeeAmountForPool)
	if err != nil {
		return swapResult{}, err
	}
	if err := market.AddToPool(r, pool.Primary, isLongIn, toPool); err != nil {
		return swapResult{}, err
	}
	if err := takeFromPool(r, !isLongIn, fromPool); err != nil {
		return swapResult{}, err
	}

	if err := market.ValidatePoolAmount(r, isLongIn); err != nil {
		return swapResult{}, err
	}
	if err := market.ValidateReserve(r, prices, !isLongIn); err != nil {
		return swapResult{}, err
	}
	return res, nil
}
