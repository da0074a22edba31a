// Package correlation implements per-owner exposure limits that account for
// correlation between markets.
//
// Markets sharing an index token move together: a trader long ETH in an
// ETH/USD[WETH-USDC] market and in an ETH/USD[ETH] market holds one
// correlated exposure. The limiter enforces a cap per market and an
// aggregate cap per index token.
package correlation

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPerMarketLimitExceeded is returned when a trade would push the net
	// exposure in a single market beyond the per-market maximum.
	ErrPerMarketLimitExceeded = errors.New("correlation: per-market exposure limit exceeded")

	// ErrCorrelatedLimitExceeded is returned when a trade would push the
	// aggregate exposure across markets with the same index token beyond
	// the correlated maximum.
	ErrCorrelatedLimitExceeded = errors.New("correlation: correlated exposure limit exceeded")
)

// Exposure is an owner's net USD exposure in one market: positive for net
// long, negative for net short.
type Exposure struct {
	MarketID   string
	IndexToken string
	NetUsd     decimal.Decimal
}

// PositionLimiter enforces exposure limits with correlation awareness.
// A zero limit is not enforced.
type PositionLimiter struct {
	// MaxPerMarket is the maximum absolute net exposure in any market.
	MaxPerMarket decimal.Decimal

	// MaxCorrelated is the maximum aggregate absolute exposure across all
	// markets sharing an index token.
	MaxCorrelated decimal.Decimal
}

// NewPositionLimiter creates a limiter with the given per-market and
// correlated exposure limits.
func NewPositionLimiter(maxPerMarket, maxCorrelated decimal.Decimal) *PositionLimiter {
	return &PositionLimiter{
		MaxPerMarket:  maxPerMarket,
		MaxCorrelated: maxCorrelated,
	}
}

// CheckLimit validates whether a trade respects the limits.
//
// Parameters:
//   - target: the market being traded; its NetUsd is ignored
//   - exposureDelta: signed change in exposure (+long / -short)
//   - existing: the owner's current exposures, at most one per market
//
// Returns nil if the trade is within limits, or an error describing the violation.
func (l *PositionLimiter) CheckLimit(target Exposure, exposureDelta decimal.Decimal, existing []Exposure) error {
	current := decimal.Zero
	for _, e := range existing {
		if e.MarketID == target.MarketID {
			current = current.Add(e.NetUsd)
		}
	}
	next := current.Add(exposureDelta)

	// Reducing exposure is always allowed.
	if next.Abs().LessThanOrEqual(current.Abs()) {
		return nil
	}

	// 1. Per-market limit.
	if l.MaxPerMarket.IsPositive() && next.Abs().GreaterThan(l.MaxPerMarket) {
		return ErrPerMarketLimitExceeded
	}

	// 2. Correlated exposure: sum |exposure| across markets sharing the index token.
	total := next.Abs()
	for _, e := range existing {
		if e.MarketID == target.MarketID {
			continue // already counted via next above
		}
		if e.IndexToken == target.IndexToken {
			total = total.Add(e.NetUsd.Abs())
		}
	}
	if l.MaxCorrelated.IsPositive() && total.GreaterThan(l.MaxCorrelated) {
		return ErrCorrelatedLimitExceeded
	}
	return nil
}
