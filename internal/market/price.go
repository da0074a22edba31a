package market

import "github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"

// Price is a bid/ask pair in USD per smallest token unit, scaled so that
// amount × price is a Unit-scaled USD value.
type Price struct {
	Min fixed.Uint `json:"min"`
	Max fixed.Uint `json:"max"`
}

// NewPrice returns a price with equal min and max.
func NewPrice(p fixed.Uint) Price { return Price{Min: p, Max: p} }

// Mid returns (min + max) / 2.
func (p Price) Mid() (fixed.Uint, error) {
	sum, err := p.Min.Add(p.Max)
	if err != nil {
		return fixed.Zero, err
	}
	return sum.Div(fixed.NewUint(2))
}

// Validate checks that both bounds are positive, min <= max, and the mid
// price is representable.
func (p Price) Validate() error {
	if p.Min.IsZero() || p.Max.IsZero() {
		return invalidArgument("zero price")
	}
	if p.Min.Gt(p.Max) {
		return invalidArgument("min price %s above max price %s", p.Min, p.Max)
	}
	if _, err := p.Mid(); err != nil {
		return invalidArgument("mid price: %v", err)
	}
	return nil
}

// Pick returns Max when maximize is set and Min otherwise.
func (p Price) Pick(maximize bool) fixed.Uint {
	if maximize {
		return p.Max
	}
	return p.Min
}

// PickForPnl returns the price that maximizes (or minimizes) the pnl of the
// given side.
func (p Price) PickForPnl(isLong, maximize bool) fixed.Uint {
	if isLong == maximize {
		return p.Max
	}
	return p.Min
}

// Prices is the bundle of prices an action runs against.
type Prices struct {
	IndexToken Price `json:"index_token"`
	LongToken  Price `json:"long_token"`
	ShortToken Price `json:"short_token"`
}

// Validate checks every component.
func (p Prices) Validate() error {
	for _, price := range []Price{p.IndexToken, p.LongToken, p.ShortToken} {
		if err := price.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CollateralTokenPrice returns the long or short token price.
func (p Prices) CollateralTokenPrice(isLong bool) Price {
	if isLong {
		return p.LongToken
	}
	return p.ShortToken
}
