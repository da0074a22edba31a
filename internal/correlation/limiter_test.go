package correlation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func eth(id string, net float64) Exposure {
	return Exposure{MarketID: id, IndexToken: "ETH", NetUsd: d(net)}
}

func TestCheckLimit_WithinLimits(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(5000))

	err := limiter.CheckLimit(eth("eth-usdc", 0), d(100), nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckLimit_PerMarketExceeded(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(5000))

	// Existing exposure of 950 + new 100 = 1050 > 1000.
	existing := []Exposure{eth("eth-usdc", 950)}

	err := limiter.CheckLimit(eth("eth-usdc", 0), d(100), existing)
	if err != ErrPerMarketLimitExceeded {
		t.Errorf("expected ErrPerMarketLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_ShortsCountAsExposure(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(5000))

	existing := []Exposure{eth("eth-usdc", -900)}

	if err := limiter.CheckLimit(eth("eth-usdc", 0), d(-200), existing); err != ErrPerMarketLimitExceeded {
		t.Errorf("expected ErrPerMarketLimitExceeded for short, got %v", err)
	}
	// Going long against the short reduces exposure.
	if err := limiter.CheckLimit(eth("eth-usdc", 0), d(500), existing); err != nil {
		t.Errorf("offsetting trade should pass, got %v", err)
	}
}

func TestCheckLimit_ReducingAlwaysAllowed(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(1000))

	// Already above both limits, e.g. after the limits were lowered.
	existing := []Exposure{eth("eth-usdc", 3000), eth("eth-pure", 3000)}

	if err := limiter.CheckLimit(eth("eth-usdc", 0), d(-100), existing); err != nil {
		t.Errorf("reducing exposure should pass, got %v", err)
	}
}

func TestCheckLimit_CorrelatedExceeded(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(2000))

	existing := []Exposure{
		eth("eth-usdc", 800),
		eth("eth-pure", -800), // direction does not offset across markets
		eth("eth-usdt", 300),
	}

	// total = 200 + 800 + 800 + 300 = 2100 > 2000
	err := limiter.CheckLimit(eth("eth-dai", 0), d(200), existing)
	if err != ErrCorrelatedLimitExceeded {
		t.Errorf("expected ErrCorrelatedLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_NonCorrelatedMarketsIgnored(t *testing.T) {
	limiter := NewPositionLimiter(d(1000), d(2000))

	existing := []Exposure{
		eth("eth-usdc", 800),
		{MarketID: "btc-usdc", IndexToken: "BTC", NetUsd: d(900)},
	}

	// Correlated total = 500 + 800 = 1300 < 2000 (BTC market excluded).
	err := limiter.CheckLimit(eth("eth-pure", 0), d(500), existing)
	if err != nil {
		t.Errorf("non-correlated markets should be ignored, got %v", err)
	}
}

func TestCheckLimit_ZeroLimitsDisabled(t *testing.T) {
	limiter := NewPositionLimiter(decimal.Zero, decimal.Zero)

	existing := []Exposure{eth("eth-usdc", 1e9)}
	if err := limiter.CheckLimit(eth("eth-usdc", 0), d(1e9), existing); err != nil {
		t.Errorf("zero limits should not be enforced, got %v", err)
	}
}
