package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/action"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/correlation"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/metrics"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/store"
)

// IncreasePositionRequest opens or grows a position. Without a position_id
// the owner's position matching market, collateral token and side is
// increased, or a new one is opened.
type IncreasePositionRequest struct {
	PositionID       string           `json:"position_id"`
	Owner            string           `json:"owner"`
	MarketID         string           `json:"market_id"`
	CollateralToken  string           `json:"collateral_token"`
	IsLong           bool             `json:"is_long"`
	CollateralAmount uint64           `json:"collateral_amount"`
	SizeDeltaUsd     decimal.Decimal  `json:"size_delta_usd"`
	AcceptablePrice  *decimal.Decimal `json:"acceptable_price,omitempty"`
	Prices           PricesRequest    `json:"prices"`
}

// DecreasePositionRequest shrinks or closes a position. CloseAll ignores
// size_delta_usd and closes the whole size.
type DecreasePositionRequest struct {
	PositionID                 string           `json:"position_id"`
	CollateralWithdrawalAmount uint64           `json:"collateral_withdrawal_amount"`
	SizeDeltaUsd               decimal.Decimal  `json:"size_delta_usd"`
	CloseAll                   bool             `json:"close_all"`
	AcceptablePrice            *decimal.Decimal `json:"acceptable_price,omitempty"`
	SwapType                   string           `json:"swap_type"`
	IsLiquidation              bool             `json:"is_liquidation"`
	IsInsolventCloseAllowed    bool             `json:"is_insolvent_close_allowed"`
	IsAdl                      bool             `json:"is_adl"`
	Prices                     PricesRequest    `json:"prices"`
}

// IncreasePosition handles POST /api/v1/positions/increase
func (s *Service) IncreasePosition(w http.ResponseWriter, r *http.Request) {
	const name = "increase_position"
	started := time.Now()
	var req IncreasePositionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.findPosition(ctx, req)
	if err != nil {
		s.fail(w, name, started, err)
		return
	}
	m, err := s.store.GetMarket(ctx, p.MarketID)
	if err != nil {
		s.fail(w, name, started, fmt.Errorf("market %s: %w", p.MarketID, err))
		return
	}

	if err := s.checkExposure(ctx, m, p, req.SizeDeltaUsd); err != nil {
		metrics.PositionLimitRejections.Inc()
		s.fail(w, name, started, err)
		return
	}

	report, err := func() (action.IncreasePositionReport, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return action.IncreasePositionReport{}, err
		}
		size, err := usd(req.SizeDeltaUsd)
		if err != nil {
			return action.IncreasePositionReport{}, err
		}
		acceptable, err := indexPrice(req.AcceptablePrice, m.Tokens)
		if err != nil {
			return action.IncreasePositionReport{}, err
		}
		a, err := action.NewIncreasePosition(m, s.clock, p, action.IncreaseParams{
			CollateralDeltaAmount: req.CollateralAmount,
			SizeDeltaUsd:          size,
			AcceptablePrice:       acceptable,
		}, prices)
		if err != nil {
			return action.IncreasePositionReport{}, err
		}
		return a.Execute()
	}()
	if err != nil {
		s.fail(w, name, started, err)
		return
	}

	resp, err := s.commit(ctx, commitment{
		action:    name,
		markets:   []*market.Market{m},
		position:  p,
		owner:     p.Owner,
		report:    report,
		startedAt: started,
	})
	if err != nil {
		s.fail(w, name, started, err)
		return
	}
	metrics.SizeDeltaUsd.WithLabelValues(m.ID, "increase").Add(req.SizeDeltaUsd.InexactFloat64())

	slog.Info("position increased",
		"id", resp.ID,
		"position", p.ID,
		"owner", p.Owner,
		"market", m.ID,
		"is_long", p.IsLong,
		"size_delta_usd", req.SizeDeltaUsd.String(),
		"execution_price", report.ExecutionPrice,
	)
	writeJSON(w, http.StatusOK, resp)
}

// findPosition returns the position an increase applies to, creating an
// empty one when the owner has none matching.
func (s *Service) findPosition(ctx context.Context, req IncreasePositionRequest) (*market.Position, error) {
	if req.PositionID != "" {
		p, err := s.store.GetPosition(ctx, req.PositionID)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", req.PositionID, err)
		}
		if p.Owner != req.Owner {
			return nil, fmt.Errorf("%w: position %s is not owned by %s", errBadRequest, p.ID, req.Owner)
		}
		return p, nil
	}
	if req.MarketID == "" || req.CollateralToken == "" {
		return nil, fmt.Errorf("%w: market_id and collateral_token are required for a new position", errBadRequest)
	}

	positions, err := s.store.GetPositionsByOwner(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if p.MarketID == req.MarketID && p.CollateralToken == req.CollateralToken && p.IsLong == req.IsLong {
			return p, nil
		}
	}
	return market.NewPosition(uuid.New().String(), req.Owner, req.MarketID, req.CollateralToken, req.IsLong), nil
}

// checkExposure runs the limiter against the owner's current positions.
// Must be called with s.mu held.
func (s *Service) checkExposure(ctx context.Context, m *market.Market, p *market.Position, sizeDelta decimal.Decimal) error {
	if s.limiter == nil || sizeDelta.IsZero() {
		return nil
	}
	positions, err := s.store.GetPositionsByOwner(ctx, p.Owner)
	if err != nil {
		return err
	}

	tokens := map[string]market.Tokens{m.ID: m.Tokens}
	byMarket := make(map[string]*correlation.Exposure)
	var order []string
	for _, held := range positions {
		t, ok := tokens[held.MarketID]
		if !ok {
			hm, err := s.store.GetMarket(ctx, held.MarketID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			t = hm.Tokens
			tokens[held.MarketID] = t
		}
		e, ok := byMarket[held.MarketID]
		if !ok {
			e = &correlation.Exposure{MarketID: held.MarketID, IndexToken: t.IndexToken}
			byMarket[held.MarketID] = e
			order = append(order, held.MarketID)
		}
		e.NetUsd = e.NetUsd.Add(model.SummarizePosition(held, t).NetUsd())
	}

	existing := make([]correlation.Exposure, 0, len(order))
	for _, id := range order {
		existing = append(existing, *byMarket[id])
	}
	delta := sizeDelta
	if !p.IsLong {
		delta = delta.Neg()
	}
	target := correlation.Exposure{MarketID: m.ID, IndexToken: m.Tokens.IndexToken}
	if err := s.limiter.CheckLimit(target, delta, existing); err != nil {
		return fmt.Errorf("owner %s in market %s: %w", p.Owner, m.ID, err)
	}
	return nil
}

// DecreasePosition handles POST /api/v1/positions/decrease
func (s *Service) DecreasePosition(w http.ResponseWriter, r *http.Request) {
	const name = "decrease_position"
	started := time.Now()
	var req DecreasePositionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PositionID == "" {
		writeError(w, "position_id is required", http.StatusBadRequest)
		return
	}
	swapType, err := action.ParseSwapType(req.SwapType)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPosition(ctx, req.PositionID)
	if err != nil {
		s.fail(w, name, started, fmt.Errorf("position %s: %w", req.PositionID, err))
		return
	}
	m, err := s.store.GetMarket(ctx, p.MarketID)
	if err != nil {
		s.fail(w, name, started, fmt.Errorf("market %s: %w", p.MarketID, err))
		return
	}

	report, err := func() (action.DecreasePositionReport, error) {
		prices, err := req.Prices.toPrices(m.Tokens)
		if err != nil {
			return action.DecreasePositionReport{}, err
		}
		size := p.SizeInUsd
		if !req.CloseAll {
			if size, err = usd(req.SizeDeltaUsd); err != nil {
				return action.DecreasePositionReport{}, err
			}
		}
		acceptable, err := indexPrice(req.AcceptablePrice, m.Tokens)
		if err != nil {
			return action.DecreasePositionReport{}, err
		}
		a, err := action.NewDecreasePosition(m, s.clock, p, action.DecreaseParams{
			CollateralWithdrawalAmount: req.CollateralWithdrawalAmount,
			SizeDeltaUsd:               size,
			AcceptablePrice:            acceptable,
			SwapType:                   swapType,
			IsLiquidation:              req.IsLiquidation,
			IsInsolventCloseAllowed:    req.IsInsolventCloseAllowed,
			IsAdl:                      req.IsAdl,
		}, prices)
		if err != nil {
			return action.DecreasePositionReport{}, err
		}
		return a.Execute()
	}()
	if err != nil {
		s.fail(w, name, started, err)
		return
	}

	resp, err := s.commit(ctx, commitment{
		action:    name,
		markets:   []*market.Market{m},
		position:  p,
		owner:     p.Owner,
		report:    report,
		startedAt: started,
	})
	if err != nil {
		s.fail(w, name, started, err)
		return
	}
	metrics.SizeDeltaUsd.WithLabelValues(m.ID, "decrease").Add(report.SizeDeltaUsd.Usd().InexactFloat64())

	slog.Info("position decreased",
		"id", resp.ID,
		"position", p.ID,
		"owner", p.Owner,
		"market", m.ID,
		"size_delta_usd", report.SizeDeltaUsd,
		"full_close", report.IsFullClose,
		"liquidation", req.IsLiquidation,
	)
	writeJSON(w, http.StatusOK, resp)
}

// GetPositions handles GET /api/v1/positions/{owner}
// Returns the owner's portfolio with net exposure per index token.
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	ctx := r.Context()

	positions, err := s.store.GetPositionsByOwner(ctx, owner)
	if err != nil {
		writeError(w, "failed to get positions", http.StatusInternalServerError)
		return
	}

	tokens := make(map[string]market.Tokens)
	summaries := make([]model.PositionSummary, 0, len(positions))
	for _, p := range positions {
		t, ok := tokens[p.MarketID]
		if !ok {
			m, err := s.store.GetMarket(ctx, p.MarketID)
			if err != nil {
				slog.Error("position without market", "position", p.ID, "market", p.MarketID, "err", err)
				continue
			}
			t = m.Tokens
			tokens[p.MarketID] = t
		}
		summaries = append(summaries, model.SummarizePosition(p, t))
	}
	writeJSON(w, http.StatusOK, model.NewPortfolio(owner, summaries))
}

// GetOwnerHistory handles GET /api/v1/positions/{owner}/history
func (s *Service) GetOwnerHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetActionEntriesByOwner(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, "failed to get history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.ActionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
