package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/pool"
)

const seedYAML = `
markets:
  - id: eth-usd
    name: ETH/USD[WETH-USDC]
    index_decimals: 9
    long_decimals: 9
    short_decimals: 6
    market_token_decimals: 9
    swap_impact:
      exponent: 2
      positive_factor: 0.0000000002
      negative_factor: "0.0000000004"
    fees:
      swap_fee_factor: 0.0005
      position_fee_factor: 0.001
      receiver_factor: 0.37
    borrowing:
      factor: {long: 0.00000001, short: 0.00000002}
      exponent: {long: 1, short: 1}
    position:
      min_collateral_value: 1
    impact_distribution:
      min_position_impact_pool_amount: 0.5
    limits:
      max_pool_amount: {long: 1000, short: 2000000}
      max_open_interest: {long: 1000000, short: 1000000}
      reserve_factor: 1
  - id: btc
    name: BTC/USD[WBTC]
    index_decimals: 8
    long_decimals: 8
    short_decimals: 8
    market_token_decimals: 9
`

func TestParseMarketName(t *testing.T) {
	tests := []struct {
		name               string
		index, long, short string
		wantErr            bool
	}{
		{"ETH/USD[WETH-USDC]", "ETH", "WETH", "USDC", false},
		{"BTC/USD[WBTC]", "BTC", "WBTC", "WBTC", false},
		{"SOL/USD[SOL-SOL]", "SOL", "SOL", "SOL", false},
		{"ETH-USD", "", "", "", true},
		{"eth/USD[WETH-USDC]", "", "", "", true},
		{"ETH/USD[WETH-]", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, long, short, err := ParseMarketName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMarketName) {
					t.Errorf("expected ErrInvalidMarketName, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if index != tt.index || long != tt.long || short != tt.short {
				t.Errorf("got %s/%s/%s, want %s/%s/%s", index, long, short, tt.index, tt.long, tt.short)
			}
		})
	}
}

func TestParseMarkets_BuildsMarkets(t *testing.T) {
	seeds, err := ParseMarkets([]byte(seedYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 seeds, got %d", len(seeds))
	}

	m, err := seeds[0].Build(1_000)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cfg := m.Config

	checks := []struct {
		name string
		got  fixed.Uint
		want string
	}{
		{"swap impact exponent", cfg.SwapImpact.Exponent, "200000000000000000000"},
		{"swap impact positive", cfg.SwapImpact.PositiveFactor, "20000000000"},
		{"swap impact negative (quoted)", cfg.SwapImpact.NegativeFactor, "40000000000"},
		{"swap fee", cfg.Fees.SwapFeeFactor, "50000000000000000"},
		{"receiver factor", cfg.Fees.ReceiverFactor, "37000000000000000000"},
		{"borrowing factor short", cfg.Borrowing.Factor.Short, "2000000000000"},
		{"min collateral value (usd)", cfg.Position.MinCollateralValue, "100000000000000000000"},
		{"min impact pool (index tokens)", cfg.ImpactDistribution.MinPositionImpactPoolAmount, "500000000"},
		{"max pool long (long tokens)", cfg.Limits.MaxPoolAmount.Long, "1000000000000"},
		{"max pool short (short tokens)", cfg.Limits.MaxPoolAmount.Short, "2000000000000"},
		{"reserve factor", cfg.Limits.ReserveFactor, fixed.Unit.String()},
	}
	for _, c := range checks {
		if c.got.String() != c.want {
			t.Errorf("%s: got %s, want %s", c.name, c.got, c.want)
		}
	}

	if m.Tokens.ShortToken != "USDC" || m.Tokens.ShortDecimals != 6 {
		t.Errorf("unexpected tokens %+v", m.Tokens)
	}
	if m.IsPure() {
		t.Error("ETH/USD[WETH-USDC] should not be pure")
	}

	btc, err := seeds[1].Build(1_000)
	if err != nil {
		t.Fatalf("build pure: %v", err)
	}
	if !btc.IsPure() || !btc.Pool(pool.Primary).IsPure() {
		t.Error("BTC/USD[WBTC] should be a pure market with a pure primary pool")
	}
}

func TestParseMarkets_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing id": `
markets:
  - name: ETH/USD[WETH-USDC]
`,
		"duplicate id": `
markets:
  - id: a
    name: ETH/USD[WETH-USDC]
  - id: a
    name: BTC/USD[WBTC]
`,
		"not yaml": "markets: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseMarkets([]byte(data)); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("expected ErrInvalidSeed, got %v", err)
			}
		})
	}
}

func TestMarketSeed_BuildRejectsBadValues(t *testing.T) {
	var s MarketSeed
	s.ID = "x"
	s.Name = "ETH/USD[WETH-USDC]"
	s.Fees.SwapFeeFactor = decimal.NewFromFloat(-0.1)
	if _, err := s.Build(0); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("negative factor: expected ErrInvalidSeed, got %v", err)
	}

	s.Fees.SwapFeeFactor = decimal.NewFromInt(2)
	if _, err := s.Build(0); err == nil {
		t.Error("a fee factor above one should be rejected")
	}

	pure := MarketSeed{ID: "y", Name: "BTC/USD[WBTC]", LongDecimals: 8, ShortDecimals: 6}
	if _, err := pure.Build(0); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("pure market with mixed decimals: expected ErrInvalidSeed, got %v", err)
	}
}

func TestLoadMarkets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	seeds, err := LoadMarkets(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if seeds[1].ID != "btc" {
		t.Errorf("expected second seed btc, got %s", seeds[1].ID)
	}
	if _, err := LoadMarkets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CACHE_TTL", "5s")
	t.Setenv("MAX_EXPOSURE_PER_MARKET_USD", "2500.5")
	t.Setenv("MAX_CORRELATED_EXPOSURE_USD", "not-a-number")
	t.Setenv("DEBUG", "true")

	cfg := FromEnv()
	if cfg.Port != "9090" {
		t.Errorf("port: got %s", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers: got %v", cfg.KafkaBrokers)
	}
	if cfg.CacheTTL != 5*time.Second {
		t.Errorf("cache ttl: got %s", cfg.CacheTTL)
	}
	if !cfg.MaxExposurePerMarket.Equal(decimal.RequireFromString("2500.5")) {
		t.Errorf("max exposure: got %s", cfg.MaxExposurePerMarket)
	}
	if !cfg.MaxCorrelatedExposure.Equal(decimal.NewFromInt(5_000_000)) {
		t.Errorf("invalid value should fall back to default, got %s", cfg.MaxCorrelatedExposure)
	}
	if !cfg.Debug {
		t.Error("expected debug enabled")
	}
	if cfg.KafkaTopic != "market-actions" {
		t.Errorf("default topic: got %s", cfg.KafkaTopic)
	}
}
