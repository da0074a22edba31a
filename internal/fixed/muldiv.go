package fixed

import "github.com/holiman/uint256"

// MulDiv returns floor(a × n / d) with a 256-bit intermediate. It fails if d
// is zero or the quotient does not fit in 128 bits.
func MulDiv(a, n, d Uint) (Uint, error) {
	if d.IsZero() {
		return Zero, Computation("mul div by zero")
	}
	var z uint256.Int
	z.Mul(&a.v, &n.v)
	z.Div(&z, &d.v)
	return checked(&z, "mul div overflow")
}

// MulDivCeil returns ceil(a × n / d).
func MulDivCeil(a, n, d Uint) (Uint, error) {
	if d.IsZero() {
		return Zero, Computation("mul div by zero")
	}
	var p, q, r uint256.Int
	p.Mul(&a.v, &n.v)
	q.Div(&p, &d.v)
	r.Mod(&p, &d.v)
	if !r.IsZero() {
		q.AddUint64(&q, 1)
	}
	return checked(&q, "mul div overflow")
}

// MulDivRound is MulDiv when roundUp is false and MulDivCeil otherwise.
func MulDivRound(a, n, d Uint, roundUp bool) (Uint, error) {
	if roundUp {
		return MulDivCeil(a, n, d)
	}
	return MulDiv(a, n, d)
}

// MulDivSigned returns a × n / d with the sign of n; the magnitude is
// truncated towards zero.
func MulDivSigned(a Uint, n Int, d Uint) (Int, error) {
	m, err := MulDiv(a, n.abs, d)
	if err != nil {
		return ZeroInt, err
	}
	return signed(n.neg, m)
}

// MulDivSignedAwayFromZero is MulDivSigned with the magnitude rounded up.
func MulDivSignedAwayFromZero(a Uint, n Int, d Uint) (Int, error) {
	m, err := MulDivCeil(a, n.abs, d)
	if err != nil {
		return ZeroInt, err
	}
	return signed(n.neg, m)
}

// ApplyFactor returns floor(value × factor / Unit).
func ApplyFactor(value, factor Uint) (Uint, error) {
	return MulDiv(value, factor, Unit)
}

// ApplyFactorCeil returns ceil(value × factor / Unit).
func ApplyFactorCeil(value, factor Uint) (Uint, error) {
	return MulDivCeil(value, factor, Unit)
}

// ApplyFactorSigned applies a factor to a signed value.
func ApplyFactorSigned(value Int, factor Uint) (Int, error) {
	return MulDivSigned(factor, value, Unit)
}

// DivToFactor returns num × Unit / den. A zero numerator yields zero even
// when den is zero; otherwise a zero denominator is a computation error.
func DivToFactor(num, den Uint, roundUp bool) (Uint, error) {
	if num.IsZero() {
		return Zero, nil
	}
	if den.IsZero() {
		return Zero, Computation("div to factor by zero")
	}
	return MulDivRound(num, Unit, den, roundUp)
}

// DivToFactorSigned is DivToFactor for a signed numerator.
func DivToFactorSigned(num Int, den Uint) (Int, error) {
	if num.IsZero() {
		return ZeroInt, nil
	}
	if den.IsZero() {
		return ZeroInt, Computation("div to factor by zero")
	}
	return MulDivSigned(Unit, num, den)
}

// UsdToMarketTokenAmount converts a USD value into market tokens given the
// current pool value and supply.
//
//   - supply == 0 && poolValue == 0: usd / divisor
//   - supply == 0 && poolValue > 0:  (poolValue + usd) / divisor
//   - otherwise:                     supply × usd / poolValue
func UsdToMarketTokenAmount(usd, poolValue, supply, divisor Uint) (Uint, error) {
	if divisor.IsZero() {
		return Zero, Computation("usd to market token amount: zero divisor")
	}
	if supply.IsZero() {
		if poolValue.IsZero() {
			return usd.Div(divisor)
		}
		total, err := poolValue.Add(usd)
		if err != nil {
			return Zero, err
		}
		return total.Div(divisor)
	}
	if poolValue.IsZero() {
		return Zero, Computation("usd to market token amount: zero pool value with supply")
	}
	return MulDiv(supply, usd, poolValue)
}

// MarketTokenAmountToUsd converts market tokens back into a USD value.
func MarketTokenAmountToUsd(amount, poolValue, supply Uint) (Uint, error) {
	if supply.IsZero() {
		return Zero, Computation("market token amount to usd: zero supply")
	}
	return MulDiv(poolValue, amount, supply)
}
