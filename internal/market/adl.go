package market

import "github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"

// AdlUpdate is the result of UpdateAdlState.
type AdlUpdate struct {
	IsLong          bool       `json:"is_long"`
	Enabled         bool       `json:"enabled"`
	PnlToPoolFactor fixed.Int  `json:"pnl_to_pool_factor"`
	MaxPnlFactor    fixed.Uint `json:"max_pnl_factor"`
}

// UpdateAdlState enables ADL for a side when its pnl-to-pool factor exceeds
// the ADL max pnl factor, and disables it otherwise.
func UpdateAdlState(m PerpMarketMut, prices Prices, isLong bool) (AdlUpdate, error) {
	exceeded, factor, maxFactor, err := IsPnlFactorExceeded(m, prices, MaxForAdl, isLong)
	if err != nil {
		return AdlUpdate{}, err
	}
	m.SetSideState(isLong, SideState{AdlEnabled: exceeded, AdlUpdatedAt: m.Now()})
	return AdlUpdate{IsLong: isLong, Enabled: exceeded, PnlToPoolFactor: factor, MaxPnlFactor: maxFactor}, nil
}

// IsAdlEnabled reports the stored ADL flag of a side.
func IsAdlEnabled(m PerpMarket, isLong bool) bool {
	return m.State().Side(isLong).AdlEnabled
}
