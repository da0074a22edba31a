package action_test

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/action"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

const start = 1_000

var ethUsdc = market.Tokens{
	IndexToken: "ETH", LongToken: "ETH", ShortToken: "USDC",
	IndexDecimals: 18, LongDecimals: 18, ShortDecimals: 6,
}

var btcPure = market.Tokens{
	IndexToken: "BTC", LongToken: "BTC", ShortToken: "BTC",
	IndexDecimals: 8, LongDecimals: 8, ShortDecimals: 8,
}

func u(x uint64) fixed.Uint { return fixed.NewUint(x) }

// testConfig has no fees or impact and leaves every limit open.
func testConfig() market.Config {
	var cfg market.Config
	cfg.SwapImpact.Exponent = fixed.Unit
	cfg.PositionImpact.Exponent = fixed.Unit
	cfg.Borrowing.Exponent = market.Both(fixed.Unit)
	cfg.Funding.Exponent = fixed.Unit
	cfg.Limits.ReserveFactor = fixed.Unit
	cfg.Limits.OpenInterestReserveFactor = fixed.Unit
	cfg.Limits.MaxPnlFactor = market.MaxPnlFactors{
		Deposit:    market.Both(fixed.Unit),
		Withdrawal: market.Both(fixed.Unit),
		Trader:     market.Both(fixed.Unit),
		Adl:        market.Both(fixed.Unit),
	}
	return cfg
}

func newMarket(t *testing.T, id string, tokens market.Tokens, cfg market.Config) *market.Market {
	t.Helper()
	m, err := market.New(id, id, tokens, 9, cfg, start)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func flat(index, long, short fixed.Uint) market.Prices {
	return market.Prices{
		IndexToken: market.NewPrice(index),
		LongToken:  market.NewPrice(long),
		ShortToken: market.NewPrice(short),
	}
}

// ETH at 2 USD and USDC at 1 USD per smallest unit.
var ethAt2 = flat(fixed.Units(2), fixed.Units(2), fixed.Units(1))

func deposit(t *testing.T, m *market.Market, clock market.ClockSource, long, short uint64, prices market.Prices) action.DepositReport {
	t.Helper()
	d, err := action.NewDeposit(m, clock, long, short, prices)
	if err != nil {
		t.Fatalf("new deposit: %v", err)
	}
	report, err := d.Execute()
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return report
}

func increase(t *testing.T, m *market.Market, clock market.ClockSource, p *market.Position, params action.IncreaseParams, prices market.Prices) action.IncreasePositionReport {
	t.Helper()
	a, err := action.NewIncreasePosition(m, clock, p, params, prices)
	if err != nil {
		t.Fatalf("new increase: %v", err)
	}
	report, err := a.Execute()
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	return report
}

func decrease(m *market.Market, clock market.ClockSource, p *market.Position, params action.DecreaseParams, prices market.Prices) (action.DecreasePositionReport, error) {
	a, err := action.NewDecreasePosition(m, clock, p, params, prices)
	if err != nil {
		return action.DecreasePositionReport{}, err
	}
	return a.Execute()
}

func primary(m *market.Market, isLong bool) fixed.Uint {
	return m.Pool(pool.Primary).Amount(isLong)
}

// fundedMarket holds 10_000 ETH and 20_000 USDC units, 20_000 USD per side.
func fundedMarket(t *testing.T, cfg market.Config) *market.Market {
	t.Helper()
	m := newMarket(t, "eth-usdc", ethUsdc, cfg)
	deposit(t, m, market.FixedClock(start), 10_000, 20_000, ethAt2)
	return m
}

// --- Deposit / Withdrawal ---

func TestDeposit_PureMarketMintsForWholeAmount(t *testing.T) {
	m := newMarket(t, "btc", btcPure, testConfig())
	price := fixed.Units(20)

	report := deposit(t, m, market.FixedClock(start), 1_000_008, 0, flat(price, price, price))

	total, err := m.Pool(pool.Primary).Total()
	if err != nil {
		t.Fatal(err)
	}
	if !total.Eq(u(1_000_008)) {
		t.Errorf("pool total = %s, want 1000008", total)
	}
	long, short := m.Pool(pool.Primary).Stored()
	if !long.Eq(u(1_000_008)) || !short.IsZero() {
		t.Errorf("stored = (%s, %s), want (1000008, 0)", long, short)
	}
	// 20_000_160 USD at a divisor of 10^11.
	want := fixed.MustParseUint("20000160000000000")
	if !report.MintedAmount.Eq(want) {
		t.Errorf("minted = %s, want %s", report.MintedAmount, want)
	}
	if !m.TotalSupply.Eq(want) {
		t.Errorf("supply = %s, want %s", m.TotalSupply, want)
	}
	if got := m.Balance.Balance("BTC"); got != 1_000_008 {
		t.Errorf("balance = %d, want 1000008", got)
	}
}

func TestDepositWithdraw_RoundTrip(t *testing.T) {
	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	clock := market.FixedClock(start)

	dep := deposit(t, m, clock, 1_000, 2_000, ethAt2)
	if want := fixed.MustParseUint("4000000000000"); !dep.MintedAmount.Eq(want) {
		t.Fatalf("minted = %s, want %s", dep.MintedAmount, want)
	}
	amount, err := dep.MintedAmount.Uint64()
	if err != nil {
		t.Fatal(err)
	}

	w, err := action.NewWithdrawal(m, clock, amount, ethAt2)
	if err != nil {
		t.Fatalf("new withdrawal: %v", err)
	}
	report, err := w.Execute()
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if report.LongTokenOutput.Lt(u(999)) || report.ShortTokenOutput.Lt(u(1_999)) {
		t.Errorf("outputs = (%s, %s), want at least (999, 1999)", report.LongTokenOutput, report.ShortTokenOutput)
	}
	if !m.TotalSupply.IsZero() {
		t.Errorf("supply = %s, want 0", m.TotalSupply)
	}
	if !primary(m, true).IsZero() || !primary(m, false).IsZero() {
		t.Errorf("pool not drained: (%s, %s)", primary(m, true), primary(m, false))
	}
	if m.Balance.Balance("ETH") != 0 || m.Balance.Balance("USDC") != 0 {
		t.Errorf("balance not drained: %v", m.Balance)
	}
}

func TestDeposit_Empty(t *testing.T) {
	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	_, err := action.NewDeposit(m, market.FixedClock(start), 0, 0, ethAt2)
	if !errors.Is(err, market.ErrEmptyDeposit) || !errors.Is(err, market.ErrInvalidArgument) {
		t.Errorf("err = %v, want empty deposit", err)
	}
}

func TestWithdrawal_AboveSupplyLeavesMarketUntouched(t *testing.T) {
	m := fundedMarket(t, testConfig())
	before := m.Clone()
	supply, err := m.TotalSupply.Uint64()
	if err != nil {
		t.Fatal(err)
	}

	w, err := action.NewWithdrawal(m, market.FixedClock(start+60), supply+1, ethAt2)
	if err != nil {
		t.Fatalf("new withdrawal: %v", err)
	}
	if _, err := w.Execute(); !errors.Is(err, market.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid argument", err)
	}
	if !reflect.DeepEqual(m, before) {
		t.Error("failed withdrawal changed the market")
	}
}

// --- Swap ---

func TestSwap_ChargesFeeAndMovesPool(t *testing.T) {
	m := fundedMarket(t, testConfig())
	m.Config.Fees.NegativeImpactFeeFactor = fixed.MustParseUint("1000000000000000000") // 1%
	m.Config.Fees.ReceiverFactor = fixed.MustParseUint("50000000000000000000")         // 50%

	s, err := action.NewSwap(m, market.FixedClock(start), "USDC", 1_000, ethAt2)
	if err != nil {
		t.Fatalf("new swap: %v", err)
	}
	report, err := s.Execute()
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if report.TokenOut != "ETH" || !report.AmountOut.Eq(u(495)) {
		t.Errorf("out = %s %s, want 495 ETH", report.AmountOut, report.TokenOut)
	}
	if !primary(m, true).Eq(u(9_505)) || !primary(m, false).Eq(u(20_995)) {
		t.Errorf("pool = (%s, %s), want (9505, 20995)", primary(m, true), primary(m, false))
	}
	if got := m.Pool(pool.ClaimableFee).Amount(false); !got.Eq(u(5)) {
		t.Errorf("claimable fee = %s, want 5", got)
	}
	if m.Balance.Balance("ETH") != 9_505 || m.Balance.Balance("USDC") != 21_000 {
		t.Errorf("balance = %v", m.Balance)
	}

	c, err := action.NewClaimFees(m, market.FixedClock(start), "USDC")
	if err != nil {
		t.Fatalf("new claim: %v", err)
	}
	claimed, err := c.Execute()
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed.Amount.Eq(u(5)) || !m.Pool(pool.ClaimableFee).Amount(false).IsZero() {
		t.Errorf("claimed %s, left %s", claimed.Amount, m.Pool(pool.ClaimableFee).Amount(false))
	}
	if m.Balance.Balance("USDC") != 20_995 {
		t.Errorf("usdc balance = %d, want 20995", m.Balance.Balance("USDC"))
	}
}

func TestSwap_InsufficientLiquidityLeavesMarketUntouched(t *testing.T) {
	m := fundedMarket(t, testConfig())
	before := m.Clone()

	s, err := action.NewSwap(m, market.FixedClock(start+10), "USDC", 50_000, ethAt2)
	if err != nil {
		t.Fatalf("new swap: %v", err)
	}
	if _, err := s.Execute(); !errors.Is(err, market.ErrInsufficientLiquidity) {
		t.Fatalf("err = %v, want insufficient liquidity", err)
	}
	if !reflect.DeepEqual(m, before) {
		t.Error("failed swap changed the market")
	}
}

func TestSwap_Rejected(t *testing.T) {
	pure := newMarket(t, "btc", btcPure, testConfig())
	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	clock := market.FixedClock(start)

	if _, err := action.NewSwap(pure, clock, "BTC", 1, ethAt2); !errors.Is(err, market.ErrInvalidSwapPath) {
		t.Errorf("pure market: err = %v", err)
	}
	if _, err := action.NewSwap(m, clock, "DAI", 1, ethAt2); !errors.Is(err, market.ErrInvalidSwapPath) {
		t.Errorf("unknown token: err = %v", err)
	}
	if _, err := action.NewSwap(m, clock, "USDC", 0, ethAt2); !errors.Is(err, market.ErrEmptySwap) {
		t.Errorf("zero amount: err = %v", err)
	}
}

// --- Shift ---

func TestShift_MatchesWithdrawThenDeposit(t *testing.T) {
	clock := market.FixedClock(start)
	from := newMarket(t, "eth-usdc-a", ethUsdc, testConfig())
	to := newMarket(t, "eth-usdc-b", ethUsdc, testConfig())
	dep := deposit(t, from, clock, 1_000, 2_000, ethAt2)
	amount, err := dep.MintedAmount.Uint64()
	if err != nil {
		t.Fatal(err)
	}
	amount /= 3

	fromCopy, toCopy := from.Clone(), to.Clone()

	s, err := action.NewShift(from, to, clock, amount, ethAt2, ethAt2)
	if err != nil {
		t.Fatalf("new shift: %v", err)
	}
	shifted, err := s.Execute()
	if err != nil {
		t.Fatalf("shift: %v", err)
	}

	w, err := action.NewWithdrawal(fromCopy, clock, amount, ethAt2)
	if err != nil {
		t.Fatal(err)
	}
	withdrawn, err := w.Execute()
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	long, _ := withdrawn.LongTokenOutput.Uint64()
	short, _ := withdrawn.ShortTokenOutput.Uint64()
	twoStep := deposit(t, toCopy, clock, long, short, ethAt2)

	diff := shifted.Deposit.MintedAmount.AbsDiff(twoStep.MintedAmount)
	if diff.Gt(u(2)) {
		t.Errorf("shift minted %s, two steps minted %s", shifted.Deposit.MintedAmount, twoStep.MintedAmount)
	}
	if !from.TotalSupply.Eq(fromCopy.TotalSupply) {
		t.Errorf("source supply = %s, want %s", from.TotalSupply, fromCopy.TotalSupply)
	}
	if to.Balance.Balance("ETH") != long || to.Balance.Balance("USDC") != short {
		t.Errorf("destination balance = %v, want %d ETH %d USDC", to.Balance, long, short)
	}
}

func TestShift_Rejected(t *testing.T) {
	clock := market.FixedClock(start)
	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	other := newMarket(t, "btc", btcPure, testConfig())

	if _, err := action.NewShift(m, m, clock, 1, ethAt2, ethAt2); !errors.Is(err, market.ErrInvalidArgument) {
		t.Errorf("same market: err = %v", err)
	}
	if _, err := action.NewShift(m, other, clock, 1, ethAt2, ethAt2); !errors.Is(err, market.ErrInvalidArgument) {
		t.Errorf("different tokens: err = %v", err)
	}
}

// --- Update actions ---

func TestDistributePositionImpact(t *testing.T) {
	cfg := testConfig()
	cfg.ImpactDistribution.DistributeFactor = fixed.Unit
	cfg.ImpactDistribution.MinPositionImpactPoolAmount = u(900)
	m := newMarket(t, "eth-usdc", ethUsdc, cfg)
	impact, err := pool.NewWithAmounts(false, u(1_000), fixed.Zero)
	if err != nil {
		t.Fatal(err)
	}
	m.Pools[pool.PositionImpact] = impact

	a, err := action.NewDistributePositionImpact(m, market.FixedClock(start+500))
	if err != nil {
		t.Fatal(err)
	}
	report, err := a.Execute()
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !report.DistributionAmount.Eq(u(100)) || !report.NextPoolAmount.Eq(u(900)) {
		t.Errorf("distributed %s, left %s; want 100, 900", report.DistributionAmount, report.NextPoolAmount)
	}

	// The clock moved, so a second run at the same time releases nothing.
	report, err = a.Execute()
	if err != nil {
		t.Fatal(err)
	}
	if report.DurationInSeconds != 0 || !report.DistributionAmount.IsZero() {
		t.Errorf("second run = %+v", report)
	}
}

func TestUpdateAdl_DisabledWithoutPnl(t *testing.T) {
	m := fundedMarket(t, testConfig())
	a, err := action.NewUpdateAdl(m, market.FixedClock(start), ethAt2, true)
	if err != nil {
		t.Fatal(err)
	}
	report, err := a.Execute()
	if err != nil {
		t.Fatalf("update adl: %v", err)
	}
	if report.Enabled || m.State.Side(true).AdlEnabled {
		t.Error("adl enabled without pnl")
	}
	if m.State.Side(true).AdlUpdatedAt != start {
		t.Errorf("adl updated at %d, want %d", m.State.Side(true).AdlUpdatedAt, start)
	}
}

func TestClaimFees_UnknownToken(t *testing.T) {
	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	if _, err := action.NewClaimFees(m, market.FixedClock(start), "DAI"); !errors.Is(err, market.ErrInvalidArgument) {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

// --- Debug logging ---

func TestDebugLogger(t *testing.T) {
	var buf bytes.Buffer
	action.SetDebugLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer action.SetDebugLogger(nil)

	m := newMarket(t, "eth-usdc", ethUsdc, testConfig())
	deposit(t, m, market.FixedClock(start), 1, 1, ethAt2)

	out := buf.String()
	if !strings.Contains(out, "action committed") || !strings.Contains(out, "action=deposit") {
		t.Errorf("log = %q", out)
	}
}
