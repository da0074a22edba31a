package trade

import (
	"net/http"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/action"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
)

// UpdateRequest carries the prices for a keeper update.
type UpdateRequest struct {
	Prices PricesRequest `json:"prices"`
}

// UpdateAdlRequest refreshes the ADL flag of one side.
type UpdateAdlRequest struct {
	Prices PricesRequest `json:"prices"`
	IsLong bool          `json:"is_long"`
}

// ClaimFeesRequest claims the receiver fees of one collateral token.
type ClaimFeesRequest struct {
	Receiver string `json:"receiver"`
	Token    string `json:"token"`
}

// UpdateBorrowing handles POST /api/v1/markets/{marketID}/borrowing
func (s *Service) UpdateBorrowing(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "update_borrowing", "", func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewUpdateBorrowing(m, s.clock, prices)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// UpdateFunding handles POST /api/v1/markets/{marketID}/funding
func (s *Service) UpdateFunding(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "update_funding", "", func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewUpdateFunding(m, s.clock, prices)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// UpdateAdl handles POST /api/v1/markets/{marketID}/adl
func (s *Service) UpdateAdl(w http.ResponseWriter, r *http.Request) {
	var req UpdateAdlRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "update_adl", "", func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewUpdateAdl(m, s.clock, prices, req.IsLong)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// DistributePositionImpact handles POST /api/v1/markets/{marketID}/distribute
// No body is required.
func (s *Service) DistributePositionImpact(w http.ResponseWriter, r *http.Request) {
	s.marketAction(w, r, "distribute_position_impact", "", func(m *market.Market) (any, error) {
		a, err := action.NewDistributePositionImpact(m, s.clock)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// ClaimFees handles POST /api/v1/markets/{marketID}/claim-fees
func (s *Service) ClaimFees(w http.ResponseWriter, r *http.Request) {
	var req ClaimFeesRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "claim_fees", req.Receiver, func(m *market.Market) (any, error) {
		a, err := action.NewClaimFees(m, s.clock, req.Token)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}
