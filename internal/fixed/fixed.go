// Package fixed implements the fixed-point numbers used by the market math.
//
// Every price, factor and USD value is an integer scaled by Unit (10^20).
// Uint is bounded to 128 bits and Int is a sign+magnitude value whose
// magnitude is bounded to 2^127-1. All intermediate products are computed in
// 256 bits (holiman/uint256), so value × factor can never overflow before the
// final range check. Operations never panic on arithmetic; they return a
// *ComputationError instead.
package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Decimals is the number of decimals of every price, factor and USD value.
const Decimals = 20

var (
	maxU128   = mustWide("340282366920938463463374607431768211455")
	maxI128   = mustWide("170141183460469231731687303715884105727")
	unitWide  = *new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))
	twoUnitsW = *new(uint256.Int).Lsh(&unitWide, 1)
)

var (
	// Zero is the zero Uint.
	Zero = Uint{}

	// One is the smallest non-zero Uint (one ulp, not one unit).
	One = NewUint(1)

	// Unit is 10^Decimals: a factor of Unit means 100%.
	Unit = Uint{v: unitWide}

	// MaxUint is the largest representable Uint (2^128 - 1).
	MaxUint = Uint{v: maxU128}
)

func mustWide(s string) uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return *v
}

// Uint is an unsigned 128-bit fixed-point carrier. The zero value is 0.
type Uint struct {
	v uint256.Int
}

// NewUint returns x as a Uint.
func NewUint(x uint64) Uint {
	var u Uint
	u.v.SetUint64(x)
	return u
}

// Pow10 returns 10^n. It panics if the result does not fit in 128 bits.
func Pow10(n uint) Uint {
	var z uint256.Int
	z.Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
	u, ok := fromWide(&z)
	if !ok {
		panic(fmt.Sprintf("fixed: 10^%d overflows 128 bits", n))
	}
	return u
}

// Units returns x × Unit.
func Units(x uint64) Uint {
	u, err := NewUint(x).Mul(Unit)
	if err != nil {
		panic(err)
	}
	return u
}

// ParseUint parses a base-10 integer string into a Uint.
func ParseUint(s string) (Uint, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Zero, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	u, ok := fromWide(v)
	if !ok {
		return Zero, fmt.Errorf("fixed: parse %q: %w", s, Computation("value exceeds 128 bits"))
	}
	return u, nil
}

// MustParseUint is ParseUint that panics on error. Intended for constants and tests.
func MustParseUint(s string) Uint {
	u, err := ParseUint(s)
	if err != nil {
		panic(err)
	}
	return u
}

func fromWide(v *uint256.Int) (Uint, bool) {
	if v.Gt(&maxU128) {
		return Zero, false
	}
	return Uint{v: *v}, true
}

func checked(v *uint256.Int, reason string) (Uint, error) {
	u, ok := fromWide(v)
	if !ok {
		return Zero, Computation(reason)
	}
	return u, nil
}

// IsZero reports whether a is 0.
func (a Uint) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Uint) Cmp(b Uint) int { return a.v.Cmp(&b.v) }

// Eq, Lt, Lte, Gt and Gte compare a with b.
func (a Uint) Eq(b Uint) bool  { return a.v.Eq(&b.v) }
func (a Uint) Lt(b Uint) bool  { return a.v.Lt(&b.v) }
func (a Uint) Lte(b Uint) bool { return !a.v.Gt(&b.v) }
func (a Uint) Gt(b Uint) bool  { return a.v.Gt(&b.v) }
func (a Uint) Gte(b Uint) bool { return !a.v.Lt(&b.v) }

// Add returns a + b.
func (a Uint) Add(b Uint) (Uint, error) {
	var z uint256.Int
	z.Add(&a.v, &b.v)
	return checked(&z, "add overflow")
}

// Sub returns a - b, failing on underflow.
func (a Uint) Sub(b Uint) (Uint, error) {
	if a.Lt(b) {
		return Zero, Computation("sub underflow")
	}
	var z uint256.Int
	z.Sub(&a.v, &b.v)
	return Uint{v: z}, nil
}

// Mul returns a × b (raw integers, no rescaling).
func (a Uint) Mul(b Uint) (Uint, error) {
	var z uint256.Int
	z.Mul(&a.v, &b.v)
	return checked(&z, "mul overflow")
}

// Div returns floor(a / b).
func (a Uint) Div(b Uint) (Uint, error) {
	if b.IsZero() {
		return Zero, Computation("div by zero")
	}
	var z uint256.Int
	z.Div(&a.v, &b.v)
	return Uint{v: z}, nil
}

// DivCeil returns ceil(a / b).
func (a Uint) DivCeil(b Uint) (Uint, error) {
	return MulDivCeil(a, One, b)
}

// SaturatingAdd returns min(a + b, MaxUint).
func (a Uint) SaturatingAdd(b Uint) Uint {
	s, err := a.Add(b)
	if err != nil {
		return MaxUint
	}
	return s
}

// SaturatingSub returns max(a - b, 0).
func (a Uint) SaturatingSub(b Uint) Uint {
	if a.Lte(b) {
		return Zero
	}
	var z uint256.Int
	z.Sub(&a.v, &b.v)
	return Uint{v: z}
}

// AbsDiff returns |a - b|.
func (a Uint) AbsDiff(b Uint) Uint {
	if a.Gte(b) {
		return a.SaturatingSub(b)
	}
	return b.SaturatingSub(a)
}

// AddSigned returns a + d, failing on overflow or underflow.
func (a Uint) AddSigned(d Int) (Uint, error) {
	if d.neg {
		return a.Sub(d.abs)
	}
	return a.Add(d.abs)
}

// Signed converts a to an Int.
func (a Uint) Signed() (Int, error) {
	if a.v.Gt(&maxI128) {
		return Int{}, Computation("value exceeds signed range")
	}
	return Int{abs: a}, nil
}

// Negated returns -a as an Int.
func (a Uint) Negated() (Int, error) {
	i, err := a.Signed()
	if err != nil {
		return Int{}, err
	}
	return i.Neg(), nil
}

// Uint64 returns a as a uint64, failing if it does not fit.
func (a Uint) Uint64() (uint64, error) {
	if !a.v.IsUint64() {
		return 0, Computation("value exceeds u64")
	}
	return a.v.Uint64(), nil
}

// String returns the raw base-10 integer.
func (a Uint) String() string { return a.v.Dec() }

// MarshalText encodes a as a decimal string so JSON keeps all 128 bits.
func (a Uint) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses the output of MarshalText.
func (a *Uint) UnmarshalText(b []byte) error {
	u, err := ParseUint(string(b))
	if err != nil {
		return err
	}
	*a = u
	return nil
}

// MinUint returns the smaller of a and b.
func MinUint(a, b Uint) Uint {
	if a.Lt(b) {
		return a
	}
	return b
}

// MaxOf returns the larger of a and b.
func MaxOf(a, b Uint) Uint {
	if a.Gt(b) {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...Uint) (Uint, error) {
	total := Zero
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Zero, err
		}
	}
	return total, nil
}
