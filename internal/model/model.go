// Package model defines the records the service persists and returns next
// to the market state itself: the action ledger and human-readable market
// and position summaries.
//
// Summaries render fixed-point values with shopspring/decimal; nothing here
// feeds back into market math.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// ActionEntry is an immutable record of an executed action.
// Once created, these are never modified or deleted.
type ActionEntry struct {
	ID         string          `json:"id" db:"id"`
	Action     string          `json:"action" db:"action"`
	MarketID   string          `json:"market_id" db:"market_id"`
	Owner      string          `json:"owner,omitempty" db:"owner"`
	PositionID string          `json:"position_id,omitempty" db:"position_id"`
	Report     json.RawMessage `json:"report" db:"report"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// NewActionEntry encodes report into a ledger record.
func NewActionEntry(id, action, marketID string, report any, at time.Time) (*ActionEntry, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	return &ActionEntry{
		ID:        id,
		Action:    action,
		MarketID:  marketID,
		Report:    data,
		Timestamp: at.UTC(),
	}, nil
}

// MarketSummary is a decimal view of a market for API responses.
type MarketSummary struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	IndexToken      string          `json:"index_token"`
	LongToken       string          `json:"long_token"`
	ShortToken      string          `json:"short_token"`
	IsPure          bool            `json:"is_pure"`
	TotalSupply     decimal.Decimal `json:"total_supply"`
	LongPoolAmount  decimal.Decimal `json:"long_pool_amount"`
	ShortPoolAmount decimal.Decimal `json:"short_pool_amount"`
	OpenInterestUsd SidedDecimal    `json:"open_interest_usd"`
	ClaimableFees   SidedDecimal    `json:"claimable_fees"`
	PositionImpact  decimal.Decimal `json:"position_impact_pool_amount"`
	FundingFactor   decimal.Decimal `json:"funding_factor_per_second"`
	AdlEnabled      SidedBool       `json:"adl_enabled"`
}

// SidedDecimal is a decimal per market side.
type SidedDecimal struct {
	Long  decimal.Decimal `json:"long"`
	Short decimal.Decimal `json:"short"`
}

// SidedBool is a flag per market side.
type SidedBool struct {
	Long  bool `json:"long"`
	Short bool `json:"short"`
}

// SummarizeMarket renders token amounts in whole tokens and USD values in
// dollars.
func SummarizeMarket(m *market.Market) MarketSummary {
	t := m.Tokens
	primary := m.Pool(pool.Primary)
	fees := m.Pool(pool.ClaimableFee)
	// Open interest pools keep one slot per collateral token.
	oiLong, _ := m.Pool(pool.OpenInterestLong).Total()
	oiShort, _ := m.Pool(pool.OpenInterestShort).Total()
	return MarketSummary{
		ID:              m.ID,
		Name:            m.Name,
		IndexToken:      t.IndexToken,
		LongToken:       t.LongToken,
		ShortToken:      t.ShortToken,
		IsPure:          m.IsPure(),
		TotalSupply:     m.TotalSupply.Decimal(int32(m.MarketTokenDecimals)),
		LongPoolAmount:  primary.Long().Decimal(int32(t.LongDecimals)),
		ShortPoolAmount: primary.Short().Decimal(int32(t.ShortDecimals)),
		OpenInterestUsd: SidedDecimal{Long: oiLong.Usd(), Short: oiShort.Usd()},
		ClaimableFees: SidedDecimal{
			Long:  fees.Long().Decimal(int32(t.LongDecimals)),
			Short: fees.Short().Decimal(int32(t.ShortDecimals)),
		},
		PositionImpact: m.Pool(pool.PositionImpact).Long().Decimal(int32(t.IndexDecimals)),
		FundingFactor:  m.State.FundingFactorPerSecond.Usd(),
		AdlEnabled:     SidedBool{Long: m.State.Long.AdlEnabled, Short: m.State.Short.AdlEnabled},
	}
}

// PositionSummary is a decimal view of a position.
type PositionSummary struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	MarketID        string          `json:"market_id"`
	IndexToken      string          `json:"index_token"`
	CollateralToken string          `json:"collateral_token"`
	IsLong          bool            `json:"is_long"`
	SizeUsd         decimal.Decimal `json:"size_usd"`
	SizeInTokens    decimal.Decimal `json:"size_in_tokens"`
	Collateral      decimal.Decimal `json:"collateral"`
	IncreasedAt     int64           `json:"increased_at"`
	DecreasedAt     int64           `json:"decreased_at"`
}

// NetUsd is the signed size: positive for longs, negative for shorts.
func (p PositionSummary) NetUsd() decimal.Decimal {
	if p.IsLong {
		return p.SizeUsd
	}
	return p.SizeUsd.Neg()
}

// SummarizePosition renders p using the token decimals of its market.
func SummarizePosition(p *market.Position, tokens market.Tokens) PositionSummary {
	collateralDecimals := tokens.ShortDecimals
	if p.CollateralToken == tokens.LongToken {
		collateralDecimals = tokens.LongDecimals
	}
	return PositionSummary{
		ID:              p.ID,
		Owner:           p.Owner,
		MarketID:        p.MarketID,
		IndexToken:      tokens.IndexToken,
		CollateralToken: p.CollateralToken,
		IsLong:          p.IsLong,
		SizeUsd:         p.SizeInUsd.Usd(),
		SizeInTokens:    p.SizeInTokens.Decimal(int32(tokens.IndexDecimals)),
		Collateral:      p.CollateralAmount.Decimal(int32(collateralDecimals)),
		IncreasedAt:     p.IncreasedAt,
		DecreasedAt:     p.DecreasedAt,
	}
}

// Portfolio aggregates all positions of an owner.
type Portfolio struct {
	Owner            string                     `json:"owner"`
	Positions        []PositionSummary          `json:"positions"`
	TotalSizeUsd     decimal.Decimal            `json:"total_size_usd"`
	ExposureByIndex  map[string]decimal.Decimal `json:"exposure_by_index"` // index token → net USD
	ExposureByMarket map[string]decimal.Decimal `json:"exposure_by_market"`
}

// NewPortfolio sums position sizes and net exposures.
func NewPortfolio(owner string, positions []PositionSummary) Portfolio {
	pf := Portfolio{
		Owner:            owner,
		Positions:        positions,
		ExposureByIndex:  make(map[string]decimal.Decimal),
		ExposureByMarket: make(map[string]decimal.Decimal),
	}
	if pf.Positions == nil {
		pf.Positions = []PositionSummary{}
	}
	for _, p := range positions {
		pf.TotalSizeUsd = pf.TotalSizeUsd.Add(p.SizeUsd)
		pf.ExposureByIndex[p.IndexToken] = pf.ExposureByIndex[p.IndexToken].Add(p.NetUsd())
		pf.ExposureByMarket[p.MarketID] = pf.ExposureByMarket[p.MarketID].Add(p.NetUsd())
	}
	return pf
}
