package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
)

// marketNameRegex matches: {INDEX}/USD[{LONG}-{SHORT}] or {INDEX}/USD[{TOKEN}]
// Example: ETH/USD[WETH-USDC], BTC/USD[WBTC]
var marketNameRegex = regexp.MustCompile(
	`^([A-Z0-9.]+)/USD\[([A-Z0-9.]+)(?:-([A-Z0-9.]+))?\]$`,
)

var (
	ErrInvalidMarketName = errors.New("config: invalid market name")
	ErrInvalidSeed       = errors.New("config: invalid market seed")
)

// ParseMarketName extracts the index, long and short tokens from a market
// name. A single collateral token names a pure market.
func ParseMarketName(name string) (index, long, short string, err error) {
	matches := marketNameRegex.FindStringSubmatch(name)
	if matches == nil {
		return "", "", "", fmt.Errorf("%w: %s (expected INDEX/USD[LONG-SHORT])", ErrInvalidMarketName, name)
	}
	index, long, short = matches[1], matches[2], matches[3]
	if short == "" {
		short = long
	}
	return index, long, short, nil
}

// Sided is a decimal per market side.
type Sided struct {
	Long  decimal.Decimal `yaml:"long" json:"long"`
	Short decimal.Decimal `yaml:"short" json:"short"`
}

// Impact configures swap or position price impact.
type Impact struct {
	Exponent       decimal.Decimal `yaml:"exponent" json:"exponent"`
	PositiveFactor decimal.Decimal `yaml:"positive_factor" json:"positive_factor"`
	NegativeFactor decimal.Decimal `yaml:"negative_factor" json:"negative_factor"`
}

// MarketSeed describes a market in human units: factors as fractions of one,
// USD values in dollars and token amounts in whole tokens.
type MarketSeed struct {
	ID                  string `yaml:"id" json:"id"`
	Name                string `yaml:"name" json:"name"`
	IndexDecimals       uint8  `yaml:"index_decimals" json:"index_decimals"`
	LongDecimals        uint8  `yaml:"long_decimals" json:"long_decimals"`
	ShortDecimals       uint8  `yaml:"short_decimals" json:"short_decimals"`
	MarketTokenDecimals uint8  `yaml:"market_token_decimals" json:"market_token_decimals"`

	SwapImpact     Impact `yaml:"swap_impact" json:"swap_impact"`
	PositionImpact Impact `yaml:"position_impact" json:"position_impact"`

	Fees struct {
		PositiveImpactFeeFactor decimal.Decimal `yaml:"positive_impact_fee_factor" json:"positive_impact_fee_factor"`
		NegativeImpactFeeFactor decimal.Decimal `yaml:"negative_impact_fee_factor" json:"negative_impact_fee_factor"`
		SwapFeeFactor           decimal.Decimal `yaml:"swap_fee_factor" json:"swap_fee_factor"`
		PositionFeeFactor       decimal.Decimal `yaml:"position_fee_factor" json:"position_fee_factor"`
		ReceiverFactor          decimal.Decimal `yaml:"receiver_factor" json:"receiver_factor"`
	} `yaml:"fees" json:"fees"`

	Borrowing struct {
		Factor             Sided           `yaml:"factor" json:"factor"`
		Exponent           Sided           `yaml:"exponent" json:"exponent"`
		ReceiverFactor     decimal.Decimal `yaml:"receiver_factor" json:"receiver_factor"`
		SkipForSmallerSide bool            `yaml:"skip_for_smaller_side" json:"skip_for_smaller_side"`
	} `yaml:"borrowing" json:"borrowing"`

	Funding struct {
		Exponent                decimal.Decimal `yaml:"exponent" json:"exponent"`
		Factor                  decimal.Decimal `yaml:"factor" json:"factor"`
		IncreaseFactorPerSecond decimal.Decimal `yaml:"increase_factor_per_second" json:"increase_factor_per_second"`
		DecreaseFactorPerSecond decimal.Decimal `yaml:"decrease_factor_per_second" json:"decrease_factor_per_second"`
		MinFactorPerSecond      decimal.Decimal `yaml:"min_factor_per_second" json:"min_factor_per_second"`
		MaxFactorPerSecond      decimal.Decimal `yaml:"max_factor_per_second" json:"max_factor_per_second"`
		ThresholdForStable      decimal.Decimal `yaml:"threshold_for_stable" json:"threshold_for_stable"`
		ThresholdForDecrease    decimal.Decimal `yaml:"threshold_for_decrease" json:"threshold_for_decrease"`
	} `yaml:"funding" json:"funding"`

	Position struct {
		MinPositionSizeUsd             decimal.Decimal `yaml:"min_position_size_usd" json:"min_position_size_usd"`
		MinCollateralValue             decimal.Decimal `yaml:"min_collateral_value" json:"min_collateral_value"`
		MinCollateralFactor            decimal.Decimal `yaml:"min_collateral_factor" json:"min_collateral_factor"`
		MaxPositiveImpactFactor        decimal.Decimal `yaml:"max_positive_impact_factor" json:"max_positive_impact_factor"`
		MaxNegativeImpactFactor        decimal.Decimal `yaml:"max_negative_impact_factor" json:"max_negative_impact_factor"`
		MaxImpactFactorForLiquidations decimal.Decimal `yaml:"max_impact_factor_for_liquidations" json:"max_impact_factor_for_liquidations"`
	} `yaml:"position" json:"position"`

	ImpactDistribution struct {
		DistributeFactor            decimal.Decimal `yaml:"distribute_factor" json:"distribute_factor"`
		MinPositionImpactPoolAmount decimal.Decimal `yaml:"min_position_impact_pool_amount" json:"min_position_impact_pool_amount"`
	} `yaml:"impact_distribution" json:"impact_distribution"`

	Limits struct {
		MaxPoolAmount          Sided `yaml:"max_pool_amount" json:"max_pool_amount"`
		MaxPoolValueForDeposit Sided `yaml:"max_pool_value_for_deposit" json:"max_pool_value_for_deposit"`
		MaxPnlFactor           struct {
			Deposit    Sided `yaml:"deposit" json:"deposit"`
			Withdrawal Sided `yaml:"withdrawal" json:"withdrawal"`
			Trader     Sided `yaml:"trader" json:"trader"`
			Adl        Sided `yaml:"adl" json:"adl"`
		} `yaml:"max_pnl_factor" json:"max_pnl_factor"`
		MaxOpenInterest                    Sided           `yaml:"max_open_interest" json:"max_open_interest"`
		ReserveFactor                      decimal.Decimal `yaml:"reserve_factor" json:"reserve_factor"`
		OpenInterestReserveFactor          decimal.Decimal `yaml:"open_interest_reserve_factor" json:"open_interest_reserve_factor"`
		MinCollateralFactorForOpenInterest Sided           `yaml:"min_collateral_factor_for_open_interest" json:"min_collateral_factor_for_open_interest"`
		IgnoreOpenInterestForUsageFactor   bool            `yaml:"ignore_open_interest_for_usage_factor" json:"ignore_open_interest_for_usage_factor"`
	} `yaml:"limits" json:"limits"`
}

// seedFile is the top-level layout of the markets YAML file.
type seedFile struct {
	Markets []MarketSeed `yaml:"markets"`
}

// LoadMarkets reads and parses a market seed file.
func LoadMarkets(path string) ([]MarketSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMarkets(data)
}

// ParseMarkets parses market seeds from YAML.
func ParseMarkets(data []byte) ([]MarketSeed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	seen := make(map[string]bool, len(f.Markets))
	for _, s := range f.Markets {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: market %q has no id", ErrInvalidSeed, s.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate market id %s", ErrInvalidSeed, s.ID)
		}
		seen[s.ID] = true
	}
	return f.Markets, nil
}

// converter turns decimals into fixed-point values and keeps the first
// error.
type converter struct {
	err error
}

func (c *converter) scaled(name string, d decimal.Decimal, decimals uint8) fixed.Uint {
	if c.err != nil {
		return fixed.Zero
	}
	v, err := fixed.FromDecimal(d, int32(decimals))
	if err != nil {
		c.err = fmt.Errorf("%w: %s: %v", ErrInvalidSeed, name, err)
	}
	return v
}

func (c *converter) unit(name string, d decimal.Decimal) fixed.Uint {
	return c.scaled(name, d, fixed.Decimals)
}

func (c *converter) sided(name string, s Sided) market.Sided {
	return market.Sided{Long: c.unit(name+".long", s.Long), Short: c.unit(name+".short", s.Short)}
}

func (c *converter) impact(name string, i Impact) market.PriceImpactParams {
	return market.PriceImpactParams{
		Exponent:       c.unit(name+".exponent", i.Exponent),
		PositiveFactor: c.unit(name+".positive_factor", i.PositiveFactor),
		NegativeFactor: c.unit(name+".negative_factor", i.NegativeFactor),
	}
}

// Tokens resolves the market tokens from the name and decimals.
func (s MarketSeed) Tokens() (market.Tokens, error) {
	index, long, short, err := ParseMarketName(s.Name)
	if err != nil {
		return market.Tokens{}, err
	}
	if long == short && s.LongDecimals != s.ShortDecimals {
		return market.Tokens{}, fmt.Errorf("%w: pure market %s with different token decimals", ErrInvalidSeed, s.Name)
	}
	return market.Tokens{
		IndexToken:    index,
		LongToken:     long,
		ShortToken:    short,
		IndexDecimals: s.IndexDecimals,
		LongDecimals:  s.LongDecimals,
		ShortDecimals: s.ShortDecimals,
	}, nil
}

// MarketConfig converts the seed into a market configuration.
func (s MarketSeed) MarketConfig() (market.Config, error) {
	var c converter
	cfg := market.Config{
		SwapImpact:     c.impact("swap_impact", s.SwapImpact),
		PositionImpact: c.impact("position_impact", s.PositionImpact),
		Fees: market.FeeParams{
			PositiveImpactFeeFactor: c.unit("fees.positive_impact_fee_factor", s.Fees.PositiveImpactFeeFactor),
			NegativeImpactFeeFactor: c.unit("fees.negative_impact_fee_factor", s.Fees.NegativeImpactFeeFactor),
			SwapFeeFactor:           c.unit("fees.swap_fee_factor", s.Fees.SwapFeeFactor),
			PositionFeeFactor:       c.unit("fees.position_fee_factor", s.Fees.PositionFeeFactor),
			ReceiverFactor:          c.unit("fees.receiver_factor", s.Fees.ReceiverFactor),
		},
		Borrowing: market.BorrowingFeeParams{
			Factor:             c.sided("borrowing.factor", s.Borrowing.Factor),
			Exponent:           c.sided("borrowing.exponent", s.Borrowing.Exponent),
			ReceiverFactor:     c.unit("borrowing.receiver_factor", s.Borrowing.ReceiverFactor),
			SkipForSmallerSide: s.Borrowing.SkipForSmallerSide,
		},
		Funding: market.FundingFeeParams{
			Exponent:                c.unit("funding.exponent", s.Funding.Exponent),
			Factor:                  c.unit("funding.factor", s.Funding.Factor),
			IncreaseFactorPerSecond: c.unit("funding.increase_factor_per_second", s.Funding.IncreaseFactorPerSecond),
			DecreaseFactorPerSecond: c.unit("funding.decrease_factor_per_second", s.Funding.DecreaseFactorPerSecond),
			MinFactorPerSecond:      c.unit("funding.min_factor_per_second", s.Funding.MinFactorPerSecond),
			MaxFactorPerSecond:      c.unit("funding.max_factor_per_second", s.Funding.MaxFactorPerSecond),
			ThresholdForStable:      c.unit("funding.threshold_for_stable", s.Funding.ThresholdForStable),
			ThresholdForDecrease:    c.unit("funding.threshold_for_decrease", s.Funding.ThresholdForDecrease),
		},
		Position: market.PositionParams{
			MinPositionSizeUsd:             c.unit("position.min_position_size_usd", s.Position.MinPositionSizeUsd),
			MinCollateralValue:             c.unit("position.min_collateral_value", s.Position.MinCollateralValue),
			MinCollateralFactor:            c.unit("position.min_collateral_factor", s.Position.MinCollateralFactor),
			MaxPositiveImpactFactor:        c.unit("position.max_positive_impact_factor", s.Position.MaxPositiveImpactFactor),
			MaxNegativeImpactFactor:        c.unit("position.max_negative_impact_factor", s.Position.MaxNegativeImpactFactor),
			MaxImpactFactorForLiquidations: c.unit("position.max_impact_factor_for_liquidations", s.Position.MaxImpactFactorForLiquidations),
		},
		ImpactDistribution: market.ImpactDistributionParams{
			DistributeFactor:            c.unit("impact_distribution.distribute_factor", s.ImpactDistribution.DistributeFactor),
			MinPositionImpactPoolAmount: c.scaled("impact_distribution.min_position_impact_pool_amount", s.ImpactDistribution.MinPositionImpactPoolAmount, s.IndexDecimals),
		},
		Limits: market.Limits{
			MaxPoolAmount: market.Sided{
				Long:  c.scaled("limits.max_pool_amount.long", s.Limits.MaxPoolAmount.Long, s.LongDecimals),
				Short: c.scaled("limits.max_pool_amount.short", s.Limits.MaxPoolAmount.Short, s.ShortDecimals),
			},
			MaxPoolValueForDeposit: c.sided("limits.max_pool_value_for_deposit", s.Limits.MaxPoolValueForDeposit),
			MaxPnlFactor: market.MaxPnlFactors{
				Deposit:    c.sided("limits.max_pnl_factor.deposit", s.Limits.MaxPnlFactor.Deposit),
				Withdrawal: c.sided("limits.max_pnl_factor.withdrawal", s.Limits.MaxPnlFactor.Withdrawal),
				Trader:     c.sided("limits.max_pnl_factor.trader", s.Limits.MaxPnlFactor.Trader),
				Adl:        c.sided("limits.max_pnl_factor.adl", s.Limits.MaxPnlFactor.Adl),
			},
			MaxOpenInterest:                    c.sided("limits.max_open_interest", s.Limits.MaxOpenInterest),
			ReserveFactor:                      c.unit("limits.reserve_factor", s.Limits.ReserveFactor),
			OpenInterestReserveFactor:          c.unit("limits.open_interest_reserve_factor", s.Limits.OpenInterestReserveFactor),
			MinCollateralFactorForOpenInterest: c.sided("limits.min_collateral_factor_for_open_interest", s.Limits.MinCollateralFactorForOpenInterest),
			IgnoreOpenInterestForUsageFactor:   s.Limits.IgnoreOpenInterestForUsageFactor,
		},
	}
	if c.err != nil {
		return market.Config{}, c.err
	}
	return cfg, nil
}

// Build creates an empty market from the seed with all clocks at now.
func (s MarketSeed) Build(now int64) (*market.Market, error) {
	tokens, err := s.Tokens()
	if err != nil {
		return nil, err
	}
	cfg, err := s.MarketConfig()
	if err != nil {
		return nil, err
	}
	return market.New(s.ID, s.Name, tokens, s.MarketTokenDecimals, cfg, now)
}
