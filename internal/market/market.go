// Package market holds the market data model and the math every action is
// built from: pool value, pnl, price impact, fees, borrowing, funding and ADL.
//
// Durable state lives in Market. Actions never mutate a Market directly; they
// run against a Revertible overlay which is committed or discarded as a unit.
package market

import (
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

// Tokens describes the tokens of a market.
type Tokens struct {
	IndexToken    string `json:"index_token"`
	LongToken     string `json:"long_token"`
	ShortToken    string `json:"short_token"`
	IndexDecimals uint8  `json:"index_decimals"`
	LongDecimals  uint8  `json:"long_decimals"`
	ShortDecimals uint8  `json:"short_decimals"`
}

// IsPure reports whether the long and short tokens are the same.
func (t Tokens) IsPure() bool { return t.LongToken == t.ShortToken }

// CollateralToken returns the long or short token.
func (t Tokens) CollateralToken(isLong bool) string {
	if isLong {
		return t.LongToken
	}
	return t.ShortToken
}

// IsCollateralLong resolves which side a collateral token belongs to. The long
// token wins for pure markets.
func (t Tokens) IsCollateralLong(token string) (bool, error) {
	switch token {
	case t.LongToken:
		return true, nil
	case t.ShortToken:
		return false, nil
	default:
		return false, invalidArgument("token %q is not a collateral token of the market", token)
	}
}

// SideState is the ADL state of one side.
type SideState struct {
	AdlEnabled   bool  `json:"adl_enabled"`
	AdlUpdatedAt int64 `json:"adl_updated_at"`
}

// State is the mutable non-pool state of a market.
type State struct {
	// FundingFactorPerSecond is the saved (adaptive) funding factor. A
	// positive value means longs pay shorts.
	FundingFactorPerSecond fixed.Int `json:"funding_factor_per_second"`
	Long                   SideState `json:"long"`
	Short                  SideState `json:"short"`
}

// Side returns the state of a side.
func (s State) Side(isLong bool) SideState {
	if isLong {
		return s.Long
	}
	return s.Short
}

func (s *State) setSide(isLong bool, v SideState) {
	if isLong {
		s.Long = v
	} else {
		s.Short = v
	}
}

// Market is the durable state of a market.
type Market struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Tokens              Tokens                  `json:"tokens"`
	MarketTokenDecimals uint8                   `json:"market_token_decimals"`
	Pools               map[pool.Kind]pool.Pool `json:"pools"`
	Clocks              Clocks                  `json:"clocks"`
	TotalSupply         fixed.Uint              `json:"total_supply"`
	Config              Config                  `json:"config"`
	State               State                   `json:"state"`
	Balance             pool.Balance[string]    `json:"balance"`

	overlayActive bool
}

// AllowsPure reports whether pools of this kind become pure in a pure
// market. Pools whose slots are sides rather than tokens, and per-size
// accumulators, keep both slots.
func AllowsPure(k pool.Kind) bool {
	switch k {
	case pool.Primary, pool.SwapImpact, pool.ClaimableFee,
		pool.OpenInterestLong, pool.OpenInterestShort,
		pool.OpenInterestInTokensLong, pool.OpenInterestInTokensShort:
		return true
	default:
		return false
	}
}

// New returns an empty market with every pool present and all clocks at now.
func New(id, name string, tokens Tokens, marketTokenDecimals uint8, cfg Config, now int64) (*Market, error) {
	if marketTokenDecimals > fixed.Decimals {
		return nil, invalidArgument("market token decimals %d above %d", marketTokenDecimals, fixed.Decimals)
	}
	if tokens.IndexToken == "" || tokens.LongToken == "" || tokens.ShortToken == "" {
		return nil, invalidArgument("missing market token")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Market{
		ID:                  id,
		Name:                name,
		Tokens:              tokens,
		MarketTokenDecimals: marketTokenDecimals,
		Pools:               make(map[pool.Kind]pool.Pool),
		Clocks:              NewClocks(now),
		Config:              cfg,
		Balance:             pool.Balance[string]{},
	}
	for _, k := range pool.Kinds() {
		m.Pools[k] = m.emptyPool(k)
	}
	return m, nil
}

func (m *Market) emptyPool(k pool.Kind) pool.Pool {
	return pool.New(m.Tokens.IsPure() && AllowsPure(k))
}

// IsPure reports whether the market's long and short tokens are the same.
func (m *Market) IsPure() bool { return m.Tokens.IsPure() }

// Pool returns the pool of a kind; a missing pool reads as empty.
func (m *Market) Pool(k pool.Kind) pool.Pool {
	if p, ok := m.Pools[k]; ok {
		return p
	}
	return m.emptyPool(k)
}

// UsdToAmountDivisor returns 10^(Decimals - market token decimals).
func (m *Market) UsdToAmountDivisor() fixed.Uint {
	return fixed.Pow10(uint(fixed.Decimals - m.MarketTokenDecimals))
}

// Clone returns a deep copy of m. The copy has no active overlay.
func (m *Market) Clone() *Market {
	c := *m
	c.Pools = make(map[pool.Kind]pool.Pool, len(m.Pools))
	for k, p := range m.Pools {
		c.Pools[k] = p
	}
	c.Balance = m.Balance.Clone()
	c.overlayActive = false
	return &c
}

// SetPure converts the market between pure and impure pool layout after the
// tokens changed. Impure pools are merged, pure pools are split ceil/floor.
func (m *Market) SetPure(pure bool) error {
	if m.overlayActive {
		return ErrOverlayActive
	}
	next := make(map[pool.Kind]pool.Pool, len(m.Pools))
	for k, p := range m.Pools {
		if AllowsPure(k) {
			if pure {
				if err := p.MergeIntoPure(); err != nil {
					return err
				}
			} else {
				p.SplitFromPure()
			}
		}
		next[k] = p
	}
	m.Pools = next
	return nil
}
