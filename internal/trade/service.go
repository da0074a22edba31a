// Package trade provides the HTTP handlers that run market actions: market
// creation, liquidity (deposit, withdraw, shift, swap), positions and the
// keeper-style updates (borrowing, funding, ADL, impact distribution, fee
// claims).
//
// Request prices and sizes are shopspring/decimal values in human units;
// they are converted to fixed-point before they reach the market math.
// Token amounts are integers in the token's smallest unit.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/config"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/correlation"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/events"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/metrics"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/store"
)

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("trade: bad request")

// Service handles market actions. Uses a mutex for serialized action
// execution (single-instance): every action reads, executes and commits
// while holding it.
type Service struct {
	store     store.Store
	limiter   *correlation.PositionLimiter
	publisher events.Publisher
	wsHub     *WSHub // optional WebSocket hub for real-time broadcasts
	clock     market.ClockSource
	mu        sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the system clock, e.g. with a market.FixedClock.
func WithClock(c market.ClockSource) Option {
	return func(s *Service) { s.clock = c }
}

// WithPublisher publishes every committed action.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *correlation.PositionLimiter, hub *WSHub, opts ...Option) *Service {
	s := &Service{
		store:     st,
		limiter:   limiter,
		publisher: events.NopPublisher{},
		wsHub:     hub,
		clock:     market.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes mounts the API under r. The WebSocket endpoint is mounted by the
// caller since the hub is optional.
func (s *Service) Routes(r chi.Router) {
	// Markets.
	r.Get("/markets", s.ListMarkets)
	r.Post("/markets", s.CreateMarket)
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Get("/markets/{marketID}/history", s.GetMarketHistory)

	// Liquidity.
	r.Post("/markets/{marketID}/deposit", s.Deposit)
	r.Post("/markets/{marketID}/withdraw", s.Withdraw)
	r.Post("/markets/{marketID}/swap", s.Swap)
	r.Post("/shift", s.Shift)

	// Maintenance.
	r.Post("/markets/{marketID}/borrowing", s.UpdateBorrowing)
	r.Post("/markets/{marketID}/funding", s.UpdateFunding)
	r.Post("/markets/{marketID}/distribute", s.DistributePositionImpact)
	r.Post("/markets/{marketID}/adl", s.UpdateAdl)
	r.Post("/markets/{marketID}/claim-fees", s.ClaimFees)

	// Positions.
	r.Post("/positions/increase", s.IncreasePosition)
	r.Post("/positions/decrease", s.DecreasePosition)
	r.Get("/positions/{owner}", s.GetPositions)
	r.Get("/positions/{owner}/history", s.GetOwnerHistory)
}

// --- Request/Response types ---

// PriceRequest is a token price in USD per whole token. A zero Max means
// Max equals Min.
type PriceRequest struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// PricesRequest carries the prices of the market's index, long and short
// tokens.
type PricesRequest struct {
	Index PriceRequest `json:"index"`
	Long  PriceRequest `json:"long"`
	Short PriceRequest `json:"short"`
}

// ActionResponse is the JSON body returned by every action.
type ActionResponse struct {
	ID       string                 `json:"id"`
	Action   string                 `json:"action"`
	Report   any                    `json:"report"`
	Markets  []model.MarketSummary  `json:"markets"`
	Position *model.PositionSummary `json:"position,omitempty"`
}

// --- Conversions ---

// tokenPrice converts a USD price per whole token into the per-unit price
// used by the market math.
func tokenPrice(p PriceRequest, tokenDecimals uint8) (market.Price, error) {
	upper := p.Max
	if upper.IsZero() {
		upper = p.Min
	}
	shift := int32(fixed.Decimals) - int32(tokenDecimals)
	lo, err := fixed.FromDecimal(p.Min, shift)
	if err != nil {
		return market.Price{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	hi, err := fixed.FromDecimal(upper, shift)
	if err != nil {
		return market.Price{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return market.Price{Min: lo, Max: hi}, nil
}

func (p PricesRequest) toPrices(t market.Tokens) (market.Prices, error) {
	index, err := tokenPrice(p.Index, t.IndexDecimals)
	if err != nil {
		return market.Prices{}, err
	}
	long, err := tokenPrice(p.Long, t.LongDecimals)
	if err != nil {
		return market.Prices{}, err
	}
	short, err := tokenPrice(p.Short, t.ShortDecimals)
	if err != nil {
		return market.Prices{}, err
	}
	prices := market.Prices{IndexToken: index, LongToken: long, ShortToken: short}
	if err := prices.Validate(); err != nil {
		return market.Prices{}, err
	}
	return prices, nil
}

func usd(d decimal.Decimal) (fixed.Uint, error) {
	v, err := fixed.FromDecimal(d, fixed.Decimals)
	if err != nil {
		return fixed.Zero, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return v, nil
}

// indexPrice converts an optional acceptable price in USD per whole index
// token.
func indexPrice(d *decimal.Decimal, t market.Tokens) (*fixed.Uint, error) {
	if d == nil {
		return nil, nil
	}
	p, err := fixed.FromDecimal(*d, int32(fixed.Decimals)-int32(t.IndexDecimals))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return &p, nil
}

// --- Execution ---

// commitment is an executed action waiting to be persisted.
type commitment struct {
	action    string
	markets   []*market.Market
	position  *market.Position
	owner     string
	report    any
	startedAt time.Time
}

// commit persists an executed action, then publishes and broadcasts it.
// Must be called with s.mu held.
func (s *Service) commit(ctx context.Context, c commitment) (ActionResponse, error) {
	entry, err := model.NewActionEntry(uuid.New().String(), c.action, c.markets[0].ID, c.report, time.Unix(s.clock.Now(), 0))
	if err != nil {
		return ActionResponse{}, err
	}
	entry.Owner = c.owner
	var positions []*market.Position
	if c.position != nil {
		entry.PositionID = c.position.ID
		positions = append(positions, c.position)
	}

	if err := s.store.CommitAction(ctx, c.markets, positions, entry); err != nil {
		return ActionResponse{}, fmt.Errorf("commit %s: %w", c.action, err)
	}

	if err := s.publisher.Publish(ctx, events.FromEntry(entry)); err != nil {
		metrics.PublishFailures.Inc()
		slog.Error("event publish failed", "action", c.action, "id", entry.ID, "err", err)
	}

	resp := ActionResponse{ID: entry.ID, Action: c.action, Report: c.report}
	for _, m := range c.markets {
		summary := model.SummarizeMarket(m)
		resp.Markets = append(resp.Markets, summary)
		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{Type: "market_updated", Action: c.action, MarketID: m.ID, Market: &summary})
		}
	}
	if c.position != nil {
		summary := model.SummarizePosition(c.position, c.markets[0].Tokens)
		resp.Position = &summary
	}
	metrics.ObserveAction(c.action, "ok", c.startedAt)
	return resp, nil
}

// marketAction loads the market named by the URL, runs fn on it under the
// service lock and commits the outcome on behalf of owner.
func (s *Service) marketAction(w http.ResponseWriter, r *http.Request, name, owner string, fn func(m *market.Market) (any, error)) {
	started := time.Now()
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, chi.URLParam(r, "marketID"))
	if err != nil {
		s.fail(w, name, started, err)
		return
	}
	report, err := fn(m)
	if err != nil {
		s.fail(w, name, started, err)
		return
	}
	resp, err := s.commit(ctx, commitment{action: name, markets: []*market.Market{m}, owner: owner, report: report, startedAt: started})
	if err != nil {
		s.fail(w, name, started, err)
		return
	}

	slog.Info("action executed", "action", name, "id", resp.ID, "market", m.ID)
	writeJSON(w, http.StatusOK, resp)
}

// fail records a failed action and writes the error response.
func (s *Service) fail(w http.ResponseWriter, action string, started time.Time, err error) {
	status := statusFor(err)
	outcome := "rejected"
	if status >= http.StatusInternalServerError {
		outcome = "error"
		slog.Error("action failed", "action", action, "err", err)
	} else {
		slog.Info("action rejected", "action", action, "err", err)
	}
	metrics.ObserveAction(action, outcome, started)
	writeError(w, err.Error(), status)
}

// rejections are the market errors that describe a valid request the
// current market state cannot serve.
var rejections = []error{
	market.ErrMaxPoolAmountExceeded,
	market.ErrMaxPnlFactorExceeded,
	market.ErrMaxOpenInterestExceeded,
	market.ErrInsufficientReserve,
	market.ErrUnableToGetBorrowingFactorEmptyPoolValue,
	market.ErrInvalidPoolValue,
	market.ErrInvalidPosition,
	market.ErrLiquidatable,
	market.ErrNotLiquidatable,
	market.ErrAcceptablePriceExceeded,
	market.ErrInvalidSwapPath,
	market.ErrInsufficientFundsToPayForCosts,
	market.ErrInsufficientLiquidity,
	market.ErrAdlNotEnabled,
	correlation.ErrPerMarketLimitExceeded,
	correlation.ErrCorrelatedLimitExceeded,
	store.ErrMarketExists,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, market.ErrInvalidArgument),
		errors.Is(err, config.ErrInvalidMarketName),
		errors.Is(err, config.ErrInvalidSeed):
		return http.StatusBadRequest
	case errors.Is(err, fixed.ErrComputation):
		return http.StatusUnprocessableEntity
	}
	for _, target := range rejections {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// --- Market handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var seed config.MarketSeed
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if seed.ID == "" {
		seed.ID = uuid.New().String()
	}

	m, err := seed.Build(s.clock.Now())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if err := s.store.CreateMarket(r.Context(), m); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	metrics.Markets.Inc()

	slog.Info("market created",
		"id", m.ID,
		"name", m.Name,
		"pure", m.IsPure(),
	)
	writeJSON(w, http.StatusCreated, model.SummarizeMarket(m))
}

// GetMarket handles GET /api/v1/markets/{marketID}
// Returns the full market state.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, "market not found", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets handles GET /api/v1/markets
// Returns market summaries, optionally filtered by ?index=<token>.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}

	index := r.URL.Query().Get("index")
	summaries := []model.MarketSummary{}
	for _, m := range markets {
		if index != "" && m.Tokens.IndexToken != index {
			continue
		}
		summaries = append(summaries, model.SummarizeMarket(m))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetMarketHistory handles GET /api/v1/markets/{marketID}/history
// Returns the action ledger of the market.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetActionEntriesByMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.ActionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// SeedMarkets creates the given markets, skipping those that already exist.
func (s *Service) SeedMarkets(ctx context.Context, seeds []config.MarketSeed) error {
	for _, seed := range seeds {
		m, err := seed.Build(s.clock.Now())
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.ID, err)
		}
		err = s.store.CreateMarket(ctx, m)
		if errors.Is(err, store.ErrMarketExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.ID, err)
		}
		metrics.Markets.Inc()
		slog.Info("market seeded", "id", m.ID, "name", m.Name)
	}
	return nil
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
