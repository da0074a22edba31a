package trade

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/action"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
)

// DepositRequest adds liquidity in exchange for market tokens. Amounts are
// in the smallest unit of each token.
type DepositRequest struct {
	Owner            string        `json:"owner"`
	LongTokenAmount  uint64        `json:"long_token_amount"`
	ShortTokenAmount uint64        `json:"short_token_amount"`
	Prices           PricesRequest `json:"prices"`
}

// WithdrawRequest burns market tokens.
type WithdrawRequest struct {
	Owner             string        `json:"owner"`
	MarketTokenAmount uint64        `json:"market_token_amount"`
	Prices            PricesRequest `json:"prices"`
}

// SwapRequest swaps one collateral token of the market for the other.
type SwapRequest struct {
	Owner    string        `json:"owner"`
	TokenIn  string        `json:"token_in"`
	AmountIn uint64        `json:"amount_in"`
	Prices   PricesRequest `json:"prices"`
}

// ShiftRequest moves liquidity between two markets sharing collateral tokens.
type ShiftRequest struct {
	Owner             string        `json:"owner"`
	FromMarketID      string        `json:"from_market_id"`
	ToMarketID        string        `json:"to_market_id"`
	MarketTokenAmount uint64        `json:"market_token_amount"`
	FromPrices        PricesRequest `json:"from_prices"`
	ToPrices          PricesRequest `json:"to_prices"`
}

// Deposit handles POST /api/v1/markets/{marketID}/deposit
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "deposit", req.Owner, func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewDeposit(m, s.clock, req.LongTokenAmount, req.ShortTokenAmount, prices)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// Withdraw handles POST /api/v1/markets/{marketID}/withdraw
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "withdrawal", req.Owner, func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewWithdrawal(m, s.clock, req.MarketTokenAmount, prices)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// Swap handles POST /api/v1/markets/{marketID}/swap
func (s *Service) Swap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !decode(w, r, &req) {
		return
	}
	s.marketAction(w, r, "swap", req.Owner, func(m *market.Market) (any, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return nil, err
		}
		a, err := action.NewSwap(m, s.clock, req.TokenIn, req.AmountIn, prices)
		if err != nil {
			return nil, err
		}
		return a.Execute()
	})
}

// Shift handles POST /api/v1/shift
// Both markets are committed together.
func (s *Service) Shift(w http.ResponseWriter, r *http.Request) {
	const name = "shift"
	started := time.Now()
	var req ShiftRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FromMarketID == "" || req.ToMarketID == "" {
		writeError(w, "from_market_id and to_market_id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.store.GetMarket(ctx, req.FromMarketID)
	if err != nil {
		s.fail(w, name, started, fmt.Errorf("source market %s: %w", req.FromMarketID, err))
		return
	}
	to, err := s.store.GetMarket(ctx, req.ToMarketID)
	if err != nil {
		s.fail(w, name, started, fmt.Errorf("destination market %s: %w", req.ToMarketID, err))
		return
	}

	report, err := func() (action.ShiftReport, error) {
		fromPrices, err := req.FromPrices.toPrices(from.Tokens)
		if err != nil {
			return action.ShiftReport{}, err
		}
		toPrices, err := req.ToPrices.toPrices(to.Tokens)
		if err != nil {
			return action.ShiftReport{}, err
		}
		a, err := action.NewShift(from, to, s.clock, req.MarketTokenAmount, fromPrices, toPrices)
		if err != nil {
			return action.ShiftReport{}, err
		}
		return a.Execute()
	}()
	if err != nil {
		s.fail(w, name, started, err)
		return
	}

	resp, err := s.commit(ctx, commitment{
		action:    name,
		markets:   []*market.Market{from, to},
		owner:     req.Owner,
		report:    report,
		startedAt: started,
	})
	if err != nil {
		s.fail(w, name, started, err)
		return
	}

	slog.Info("liquidity shifted",
		"id", resp.ID,
		"from", from.ID,
		"to", to.ID,
		"amount", req.MarketTokenAmount,
		"minted", report.Deposit.MintedAmount,
	)
	writeJSON(w, http.StatusOK, resp)
}
