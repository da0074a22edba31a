package fixed

import "github.com/holiman/uint256"

// expTable[i] = 2^(1/2^(i+1)) × Unit.
var expTable = func() []uint256.Int {
	table := make([]uint256.Int, 0, 68)
	var c uint256.Int
	c.Mul(&twoUnitsW, &unitWide)
	c.Sqrt(&c)
	for !c.Eq(&unitWide) && len(table) < cap(table) {
		table = append(table, c)
		var next uint256.Int
		next.Mul(&c, &unitWide)
		next.Sqrt(&next)
		c = next
	}
	return table
}()

// log2 returns log2(x / Unit) × Unit for x >= Unit, truncated.
func log2(x *uint256.Int) uint256.Int {
	y := *x
	var n uint64
	for !y.Lt(&twoUnitsW) {
		y.Rsh(&y, 1)
		n++
	}

	var res uint256.Int
	res.Mul(uint256.NewInt(n), &unitWide)

	var delta uint256.Int
	delta.Rsh(&unitWide, 1)
	for !delta.IsZero() {
		y.Mul(&y, &y)
		y.Div(&y, &unitWide)
		if !y.Lt(&twoUnitsW) {
			y.Rsh(&y, 1)
			res.Add(&res, &delta)
		}
		delta.Rsh(&delta, 1)
	}
	return res
}

// exp2 returns 2^(z / Unit) × Unit, failing when the result exceeds 128 bits.
func exp2(z *uint256.Int) (Uint, error) {
	var k, f uint256.Int
	k.Div(z, &unitWide)
	f.Mod(z, &unitWide)
	if !k.IsUint64() || k.Uint64() >= 128 {
		return Zero, Computation("exp2 overflow")
	}

	res := unitWide
	for i := range expTable {
		if f.IsZero() {
			break
		}
		f.Lsh(&f, 1)
		if !f.Lt(&unitWide) {
			f.Sub(&f, &unitWide)
			res.Mul(&res, &expTable[i])
			res.Div(&res, &unitWide)
		}
	}
	res.Lsh(&res, uint(k.Uint64()))
	return checked(&res, "exp2 overflow")
}

// Pow returns (value / Unit)^(exponent / Unit) × Unit for value >= Unit,
// computed as exp2(exponent × log2(value)).
func Pow(value, exponent Uint) (Uint, error) {
	if value.Lt(Unit) {
		return Zero, Computation("pow base below unit")
	}
	l := log2(&value.v)
	var z uint256.Int
	if _, overflow := z.MulOverflow(&l, &exponent.v); overflow {
		return Zero, Computation("pow overflow")
	}
	z.Div(&z, &unitWide)
	return exp2(&z)
}

// ApplyExponentFactor raises a Unit-scaled value to a Unit-scaled exponent.
//
// Values below Unit map to zero and Unit maps to Unit exactly; above Unit the
// result comes from the truncating exp-log path, so it never drops below Unit
// and the function is non-decreasing across the Unit boundary.
func ApplyExponentFactor(value, exponent Uint) (Uint, error) {
	switch {
	case value.Lt(Unit):
		return Zero, nil
	case value.Eq(Unit):
		return Unit, nil
	case exponent.IsZero():
		return Unit, nil
	case exponent.Eq(Unit):
		return value, nil
	}
	return Pow(value, exponent)
}

// ApplyFactors returns ApplyFactor(ApplyExponentFactor(value, exponent), factor).
func ApplyFactors(value, factor, exponent Uint) (Uint, error) {
	v, err := ApplyExponentFactor(value, exponent)
	if err != nil {
		return Zero, err
	}
	return ApplyFactor(v, factor)
}
