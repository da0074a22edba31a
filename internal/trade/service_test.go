package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/config"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/correlation"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/store"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/trade"
)

const (
	oneEth  = 1_000_000_000_000_000_000
	oneUsdc = 1_000_000
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// ethSeed has no fees or impact and leaves every limit open.
func ethSeed(id string) config.MarketSeed {
	one := decimal.NewFromInt(1)
	s := config.MarketSeed{
		ID:                  id,
		Name:                "ETH/USD[ETH-USDC]",
		IndexDecimals:       18,
		LongDecimals:        18,
		ShortDecimals:       6,
		MarketTokenDecimals: 18,
	}
	s.SwapImpact.Exponent = one
	s.PositionImpact.Exponent = one
	s.Borrowing.Exponent = config.Sided{Long: one, Short: one}
	s.Funding.Exponent = one
	s.Limits.ReserveFactor = one
	s.Limits.OpenInterestReserveFactor = one
	all := config.Sided{Long: one, Short: one}
	s.Limits.MaxPnlFactor.Deposit = all
	s.Limits.MaxPnlFactor.Withdrawal = all
	s.Limits.MaxPnlFactor.Trader = all
	s.Limits.MaxPnlFactor.Adl = all
	return s
}

// ETH at 2000 USD, USDC at 1 USD.
var flat = trade.PricesRequest{
	Index: trade.PriceRequest{Min: d(2000)},
	Long:  trade.PriceRequest{Min: d(2000)},
	Short: trade.PriceRequest{Min: d(1)},
}

type testEnv struct {
	ms     *store.MemoryStore
	router chi.Router
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T, limiter *correlation.PositionLimiter, hub *trade.WSHub) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := trade.NewService(ms, limiter, hub, trade.WithClock(market.FixedClock(1_000)))
	if err := svc.SeedMarkets(context.Background(), []config.MarketSeed{ethSeed("eth-usdc")}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	if hub != nil {
		r.Get("/api/v1/ws", hub.HandleWS)
	}
	return &testEnv{ms: ms, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) trade.ActionResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp trade.ActionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func (e *testEnv) deposit(t *testing.T) trade.ActionResponse {
	t.Helper()
	return decodeAction(t, e.do(t, "POST", "/api/v1/markets/eth-usdc/deposit", trade.DepositRequest{
		Owner:            "lp",
		LongTokenAmount:  oneEth,
		ShortTokenAmount: 2000 * oneUsdc,
		Prices:           flat,
	}))
}

func (e *testEnv) increase(owner string, size float64) trade.IncreasePositionRequest {
	return trade.IncreasePositionRequest{
		Owner:            owner,
		MarketID:         "eth-usdc",
		CollateralToken:  "USDC",
		IsLong:           true,
		CollateralAmount: 100 * oneUsdc,
		SizeDeltaUsd:     d(size),
		Prices:           flat,
	}
}

// --- Markets ---

func TestCreateMarket(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, "POST", "/api/v1/markets", ethSeed("eth-usdc-2"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var summary model.MarketSummary
	json.NewDecoder(w.Body).Decode(&summary)
	if summary.IndexToken != "ETH" || summary.ShortToken != "USDC" || summary.IsPure {
		t.Errorf("unexpected summary %+v", summary)
	}

	w = env.do(t, "POST", "/api/v1/markets", ethSeed("eth-usdc-2"))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate market: expected 409, got %d", w.Code)
	}

	bad := ethSeed("bad")
	bad.Name = "ETH-USDC"
	if w := env.do(t, "POST", "/api/v1/markets", bad); w.Code != http.StatusBadRequest {
		t.Errorf("bad name: expected 400, got %d", w.Code)
	}
}

func TestListMarkets_FilterByIndex(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var summaries []model.MarketSummary
	w := env.do(t, "GET", "/api/v1/markets?index=ETH", nil)
	json.NewDecoder(w.Body).Decode(&summaries)
	if len(summaries) != 1 || summaries[0].ID != "eth-usdc" {
		t.Errorf("expected eth-usdc, got %+v", summaries)
	}

	w = env.do(t, "GET", "/api/v1/markets?index=BTC", nil)
	summaries = nil
	json.NewDecoder(w.Body).Decode(&summaries)
	if len(summaries) != 0 {
		t.Errorf("expected no BTC markets, got %d", len(summaries))
	}
}

func TestGetMarket_NotFound(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if w := env.do(t, "GET", "/api/v1/markets/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Liquidity ---

func TestDeposit_UpdatesPoolAndLedger(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.deposit(t)
	if resp.Action != "deposit" || resp.ID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Markets) != 1 {
		t.Fatalf("expected 1 market, got %d", len(resp.Markets))
	}
	summary := resp.Markets[0]
	if !summary.LongPoolAmount.Equal(d(1)) || !summary.ShortPoolAmount.Equal(d(2000)) {
		t.Errorf("pool = (%s, %s), want (1, 2000)", summary.LongPoolAmount, summary.ShortPoolAmount)
	}
	if !summary.TotalSupply.IsPositive() {
		t.Error("expected market tokens to be minted")
	}

	m, err := env.ms.GetMarket(context.Background(), "eth-usdc")
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalSupply.IsZero() {
		t.Error("expected stored supply to be updated")
	}

	var history []model.ActionEntry
	json.NewDecoder(env.do(t, "GET", "/api/v1/markets/eth-usdc/history", nil).Body).Decode(&history)
	if len(history) != 1 || history[0].Action != "deposit" || history[0].Owner != "lp" {
		t.Errorf("unexpected history %+v", history)
	}
	if want := time.Unix(1_000, 0).UTC(); !history[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %s, want %s", history[0].Timestamp, want)
	}
}

func TestDeposit_UnknownMarket(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, "POST", "/api/v1/markets/nope/deposit", trade.DepositRequest{LongTokenAmount: 1, Prices: flat})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDeposit_InvalidPrices(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	prices := flat
	prices.Long = trade.PriceRequest{Min: d(-1)}
	w := env.do(t, "POST", "/api/v1/markets/eth-usdc/deposit", trade.DepositRequest{LongTokenAmount: oneEth, Prices: prices})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative price: expected 400, got %d", w.Code)
	}

	m, _ := env.ms.GetMarket(context.Background(), "eth-usdc")
	if !m.TotalSupply.IsZero() {
		t.Error("rejected deposit must not change the market")
	}
}

func TestSwap_UnknownToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	w := env.do(t, "POST", "/api/v1/markets/eth-usdc/swap", trade.SwapRequest{TokenIn: "DOGE", AmountIn: 10, Prices: flat})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSwap_PaysOutOtherToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	resp := decodeAction(t, env.do(t, "POST", "/api/v1/markets/eth-usdc/swap", trade.SwapRequest{
		TokenIn:  "USDC",
		AmountIn: 200 * oneUsdc,
		Prices:   flat,
	}))
	summary := resp.Markets[0]
	// 200 USDC in, 0.1 ETH out with no fees or impact.
	if !summary.ShortPoolAmount.Equal(d(2200)) || !summary.LongPoolAmount.Equal(d(0.9)) {
		t.Errorf("pool = (%s, %s), want (0.9, 2200)", summary.LongPoolAmount, summary.ShortPoolAmount)
	}
}

func TestShift_RequiresMarkets(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, "POST", "/api/v1/shift", trade.ShiftRequest{FromMarketID: "eth-usdc"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w = env.do(t, "POST", "/api/v1/shift", trade.ShiftRequest{FromMarketID: "eth-usdc", ToMarketID: "nope", MarketTokenAmount: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Positions ---

func TestIncreaseAndClosePosition(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	resp := decodeAction(t, env.do(t, "POST", "/api/v1/positions/increase", env.increase("alice", 500)))
	if resp.Position == nil {
		t.Fatal("expected a position in the response")
	}
	pos := resp.Position
	if !pos.SizeUsd.Equal(d(500)) || !pos.SizeInTokens.Equal(d(0.25)) {
		t.Errorf("size = (%s USD, %s ETH), want (500, 0.25)", pos.SizeUsd, pos.SizeInTokens)
	}
	if !pos.Collateral.Equal(d(100)) {
		t.Errorf("collateral = %s, want 100", pos.Collateral)
	}
	if !resp.Markets[0].OpenInterestUsd.Long.Equal(d(500)) {
		t.Errorf("long open interest = %s, want 500", resp.Markets[0].OpenInterestUsd.Long)
	}

	// A second increase without an id grows the same position.
	resp = decodeAction(t, env.do(t, "POST", "/api/v1/positions/increase", env.increase("alice", 100)))
	if resp.Position.ID != pos.ID || !resp.Position.SizeUsd.Equal(d(600)) {
		t.Errorf("expected position %s at 600 USD, got %+v", pos.ID, resp.Position)
	}

	var pf model.Portfolio
	json.NewDecoder(env.do(t, "GET", "/api/v1/positions/alice", nil).Body).Decode(&pf)
	if len(pf.Positions) != 1 || !pf.ExposureByIndex["ETH"].Equal(d(600)) {
		t.Errorf("unexpected portfolio %+v", pf)
	}

	resp = decodeAction(t, env.do(t, "POST", "/api/v1/positions/decrease", trade.DecreasePositionRequest{
		PositionID: pos.ID,
		CloseAll:   true,
		Prices:     flat,
	}))
	if !resp.Position.SizeUsd.IsZero() {
		t.Errorf("expected closed position, got %s", resp.Position.SizeUsd)
	}

	pf = model.Portfolio{}
	json.NewDecoder(env.do(t, "GET", "/api/v1/positions/alice", nil).Body).Decode(&pf)
	if len(pf.Positions) != 0 {
		t.Errorf("expected no positions after close, got %d", len(pf.Positions))
	}

	var history []model.ActionEntry
	json.NewDecoder(env.do(t, "GET", "/api/v1/positions/alice/history", nil).Body).Decode(&history)
	if len(history) != 3 {
		t.Errorf("expected 3 ledger entries for alice, got %d", len(history))
	}
}

func TestIncreasePosition_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	req := env.increase("", 100)
	if w := env.do(t, "POST", "/api/v1/positions/increase", req); w.Code != http.StatusBadRequest {
		t.Errorf("missing owner: expected 400, got %d", w.Code)
	}

	req = env.increase("alice", 100)
	req.MarketID = ""
	if w := env.do(t, "POST", "/api/v1/positions/increase", req); w.Code != http.StatusBadRequest {
		t.Errorf("missing market: expected 400, got %d", w.Code)
	}

	req = env.increase("alice", 100)
	req.PositionID = "nope"
	if w := env.do(t, "POST", "/api/v1/positions/increase", req); w.Code != http.StatusNotFound {
		t.Errorf("unknown position: expected 404, got %d", w.Code)
	}

	req = env.increase("alice", 100)
	req.CollateralToken = "DOGE"
	if w := env.do(t, "POST", "/api/v1/positions/increase", req); w.Code != http.StatusBadRequest {
		t.Errorf("bad collateral: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIncreasePosition_AcceptablePrice(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	req := env.increase("alice", 100)
	limit := d(1999)
	req.AcceptablePrice = &limit
	if w := env.do(t, "POST", "/api/v1/positions/increase", req); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIncreasePosition_ExposureLimit(t *testing.T) {
	env := newTestEnv(t, correlation.NewPositionLimiter(d(1000), d(5000)), nil)
	env.deposit(t)

	decodeAction(t, env.do(t, "POST", "/api/v1/positions/increase", env.increase("alice", 800)))

	w := env.do(t, "POST", "/api/v1/positions/increase", env.increase("alice", 300))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "per-market") {
		t.Errorf("expected per-market error, got %s", w.Body.String())
	}

	// Another owner has its own budget.
	decodeAction(t, env.do(t, "POST", "/api/v1/positions/increase", env.increase("bob", 300)))
}

func TestDecreasePosition_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if w := env.do(t, "POST", "/api/v1/positions/decrease", trade.DecreasePositionRequest{Prices: flat}); w.Code != http.StatusBadRequest {
		t.Errorf("missing id: expected 400, got %d", w.Code)
	}
	req := trade.DecreasePositionRequest{PositionID: "p", SwapType: "sideways", Prices: flat}
	if w := env.do(t, "POST", "/api/v1/positions/decrease", req); w.Code != http.StatusBadRequest {
		t.Errorf("bad swap type: expected 400, got %d", w.Code)
	}
	req.SwapType = ""
	if w := env.do(t, "POST", "/api/v1/positions/decrease", req); w.Code != http.StatusNotFound {
		t.Errorf("unknown position: expected 404, got %d", w.Code)
	}
}

// --- Maintenance ---

func TestMaintenanceActions(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.deposit(t)

	for _, path := range []string{"borrowing", "funding", "adl"} {
		w := env.do(t, "POST", "/api/v1/markets/eth-usdc/"+path, trade.UpdateAdlRequest{Prices: flat, IsLong: true})
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}
	if w := env.do(t, "POST", "/api/v1/markets/eth-usdc/distribute", nil); w.Code != http.StatusOK {
		t.Errorf("distribute: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := env.do(t, "POST", "/api/v1/markets/eth-usdc/claim-fees", trade.ClaimFeesRequest{Receiver: "treasury", Token: "DOGE"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("claim unknown token: expected 400, got %d", w.Code)
	}
}

// --- WebSocket ---

func TestWebSocket_BroadcastsMarketUpdates(t *testing.T) {
	hub := trade.NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	env := newTestEnv(t, nil, hub)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.deposit(t)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg trade.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "market_updated" || msg.Action != "deposit" || msg.MarketID != "eth-usdc" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Market == nil || !msg.Market.LongPoolAmount.Equal(d(1)) {
		t.Errorf("expected market summary with 1 ETH, got %+v", msg.Market)
	}
}
