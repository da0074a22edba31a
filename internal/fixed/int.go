package fixed

import "strings"

// Int is a signed fixed-point carrier stored as sign and magnitude.
// Zero is never negative.
type Int struct {
	neg bool
	abs Uint
}

// ZeroInt is the zero Int.
var ZeroInt = Int{}

// NewInt returns x as an Int.
func NewInt(x int64) Int {
	if x < 0 {
		// -(x+1)+1 avoids overflowing on math.MinInt64.
		return Int{neg: true, abs: NewUint(uint64(-(x + 1)) + 1)}
	}
	return Int{abs: NewUint(uint64(x))}
}

// ParseInt parses an optionally signed base-10 integer.
func ParseInt(s string) (Int, error) {
	neg := strings.HasPrefix(s, "-")
	u, err := ParseUint(strings.TrimPrefix(s, "-"))
	if err != nil {
		return ZeroInt, err
	}
	i, err := u.Signed()
	if err != nil {
		return ZeroInt, err
	}
	if neg {
		i = i.Neg()
	}
	return i, nil
}

// Sign returns -1, 0 or +1. Negative zero has sign 0.
func (a Int) Sign() int {
	switch {
	case a.abs.IsZero():
		return 0
	case a.neg:
		return -1
	default:
		return 1
	}
}

// IsZero reports whether a is 0 of either sign.
func (a Int) IsZero() bool     { return a.abs.IsZero() }
func (a Int) IsNegative() bool { return a.neg && !a.abs.IsZero() }
func (a Int) IsPositive() bool { return !a.neg && !a.abs.IsZero() }

// Abs returns |a|.
func (a Int) Abs() Uint { return a.abs }

// Neg returns -a.
func (a Int) Neg() Int {
	if a.abs.IsZero() {
		return ZeroInt
	}
	return Int{neg: !a.neg, abs: a.abs}
}

func signed(neg bool, abs Uint) (Int, error) {
	if abs.v.Gt(&maxI128) {
		return ZeroInt, Computation("signed overflow")
	}
	if abs.IsZero() {
		neg = false
	}
	return Int{neg: neg, abs: abs}, nil
}

// Add returns a + b.
func (a Int) Add(b Int) (Int, error) {
	if a.neg == b.neg {
		s, err := a.abs.Add(b.abs)
		if err != nil {
			return ZeroInt, err
		}
		return signed(a.neg, s)
	}
	if a.abs.Gte(b.abs) {
		return signed(a.neg, a.abs.SaturatingSub(b.abs))
	}
	return signed(b.neg, b.abs.SaturatingSub(a.abs))
}

// Sub returns a - b.
func (a Int) Sub(b Int) (Int, error) {
	return a.Add(b.Neg())
}

// Cmp returns -1, 0 or +1.
func (a Int) Cmp(b Int) int {
	as, bs := a.Sign(), b.Sign()
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	c := a.abs.Cmp(b.abs)
	if as < 0 {
		return -c
	}
	return c
}

// Lt reports a < b.
func (a Int) Lt(b Int) bool { return a.Cmp(b) < 0 }
func (a Int) Gt(b Int) bool { return a.Cmp(b) > 0 }

// Unsigned returns a as a Uint, failing if a is negative.
func (a Int) Unsigned() (Uint, error) {
	if a.IsNegative() {
		return Zero, Computation("negative value to unsigned")
	}
	return a.abs, nil
}

// PositivePart returns max(a, 0) as a Uint.
func (a Int) PositivePart() Uint {
	if a.IsNegative() {
		return Zero
	}
	return a.abs
}

// String returns the signed base-10 integer.
func (a Int) String() string {
	if a.IsNegative() {
		return "-" + a.abs.String()
	}
	return a.abs.String()
}

// MarshalText encodes a as a signed decimal string.
func (a Int) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses the output of MarshalText.
func (a *Int) UnmarshalText(b []byte) error {
	i, err := ParseInt(string(b))
	if err != nil {
		return err
	}
	*a = i
	return nil
}

// MinInt returns the smaller of a and b.
func MinInt(a, b Int) Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// Diff returns a - b as an Int.
func Diff(a, b Uint) (Int, error) {
	if a.Gte(b) {
		return signed(false, a.SaturatingSub(b))
	}
	return signed(true, b.SaturatingSub(a))
}

// MulUint returns a × b, keeping the sign of a.
func (a Int) MulUint(b Uint) (Int, error) {
	m, err := a.abs.Mul(b)
	if err != nil {
		return ZeroInt, err
	}
	return signed(a.neg, m)
}

// DivUint returns a / b truncated towards zero.
func (a Int) DivUint(b Uint) (Int, error) {
	q, err := a.abs.Div(b)
	if err != nil {
		return ZeroInt, err
	}
	return signed(a.neg, q)
}

// DivUintAwayFromZero returns a / b with the magnitude rounded up.
func (a Int) DivUintAwayFromZero(b Uint) (Int, error) {
	q, err := a.abs.DivCeil(b)
	if err != nil {
		return ZeroInt, err
	}
	return signed(a.neg, q)
}
