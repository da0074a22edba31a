package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// FromDecimal returns d × 10^decimals truncated to an integer. Negative
// values are rejected.
func FromDecimal(d decimal.Decimal, decimals int32) (Uint, error) {
	if d.IsNegative() {
		return Zero, fmt.Errorf("fixed: negative decimal %s", d)
	}
	raw := d.Shift(decimals).Truncate(0)
	v, overflow := uint256.FromBig(raw.BigInt())
	if overflow {
		return Zero, Computation("decimal exceeds 256 bits")
	}
	return checked(v, "decimal exceeds 128 bits")
}

// FromDecimalSigned is FromDecimal for signed values.
func FromDecimalSigned(d decimal.Decimal, decimals int32) (Int, error) {
	u, err := FromDecimal(d.Abs(), decimals)
	if err != nil {
		return ZeroInt, err
	}
	return signed(d.IsNegative(), u)
}

// Decimal returns a / 10^decimals.
func (a Uint) Decimal(decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), -decimals)
}

// Decimal returns a / 10^decimals.
func (a Int) Decimal(decimals int32) decimal.Decimal {
	d := a.abs.Decimal(decimals)
	if a.IsNegative() {
		return d.Neg()
	}
	return d
}

// Usd renders a Unit-scaled USD value or factor as a decimal.
func (a Uint) Usd() decimal.Decimal { return a.Decimal(Decimals) }

// Usd renders a Unit-scaled signed value as a decimal.
func (a Int) Usd() decimal.Decimal { return a.Decimal(Decimals) }
