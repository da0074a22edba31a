package pool

import "fmt"

// Kind identifies one of the pools a market owns.
type Kind uint8

const (
	Primary Kind = iota
	SwapImpact
	ClaimableFee
	OpenInterestLong
	OpenInterestShort
	OpenInterestInTokensLong
	OpenInterestInTokensShort
	PositionImpact
	BorrowingFactor
	FundingAmountPerSizeLong
	FundingAmountPerSizeShort
	ClaimableFundingAmountPerSizeLong
	ClaimableFundingAmountPerSizeShort
	// TotalBorrowing holds Σ size_in_usd × borrowing_factor of open positions
	// per side, used to derive pending borrowing fees.
	TotalBorrowing
)

var kindNames = [...]string{
	Primary:                            "primary",
	SwapImpact:                         "swap_impact",
	ClaimableFee:                       "claimable_fee",
	OpenInterestLong:                   "open_interest_long",
	OpenInterestShort:                  "open_interest_short",
	OpenInterestInTokensLong:           "open_interest_in_tokens_long",
	OpenInterestInTokensShort:          "open_interest_in_tokens_short",
	PositionImpact:                     "position_impact",
	BorrowingFactor:                    "borrowing_factor",
	FundingAmountPerSizeLong:           "funding_amount_per_size_long",
	FundingAmountPerSizeShort:          "funding_amount_per_size_short",
	ClaimableFundingAmountPerSizeLong:  "claimable_funding_amount_per_size_long",
	ClaimableFundingAmountPerSizeShort: "claimable_funding_amount_per_size_short",
	TotalBorrowing:                     "total_borrowing",
}

// Kinds lists every pool kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("pool: unknown kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("pool: unknown kind %q", b)
}

// OpenInterest returns the open interest pool of the given side. Its long and
// short slots hold the interest backed by long and short collateral.
func OpenInterest(isLong bool) Kind {
	if isLong {
		return OpenInterestLong
	}
	return OpenInterestShort
}

// OpenInterestInTokens returns the open-interest-in-index-tokens pool of a side.
func OpenInterestInTokens(isLong bool) Kind {
	if isLong {
		return OpenInterestInTokensLong
	}
	return OpenInterestInTokensShort
}

// FundingAmountPerSize returns the funding-fee-per-size pool of a side.
func FundingAmountPerSize(isLong bool) Kind {
	if isLong {
		return FundingAmountPerSizeLong
	}
	return FundingAmountPerSizeShort
}

// ClaimableFundingAmountPerSize returns the claimable-funding-per-size pool of a side.
func ClaimableFundingAmountPerSize(isLong bool) Kind {
	if isLong {
		return ClaimableFundingAmountPerSizeLong
	}
	return ClaimableFundingAmountPerSizeShort
}
