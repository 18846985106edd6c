package cdecimal

import "github.com/shopspring/decimal"

// Ratio is a positive-rational (Positive, Positive) pair, used for exact
// proportional adjustments such as superficial-loss splitting, where
// representing the quotient as a single rounded Decimal would lose the
// ability to apply the same ratio exactly to several different amounts.
type Ratio struct {
	Num   Positive
	Denom Positive
}

func NewRatio(num, denom Positive) Ratio {
	return Ratio{Num: num, Denom: denom}
}

// Decimal returns the ratio's quotient as a plain decimal, rounded to the
// library's default division precision. Only ever use this at the
// presentation boundary; apply the ratio itself (via Of) when computing
// further values that need to stay exact relative to each other.
func (r Ratio) Decimal() decimal.Decimal {
	return r.Num.Decimal().Div(r.Denom.Decimal())
}

// Of multiplies a non-negative amount by this ratio, returning a
// non-negative result (the ratio is strictly positive by construction, so
// the sign of the input is preserved).
func (r Ratio) Of(amount NonNegative) NonNegative {
	return RequireNonNegative(amount.Decimal().Mul(r.Num.Decimal()).Div(r.Denom.Decimal()))
}

// OfPositive multiplies a positive amount by this ratio.
func (r Ratio) OfPositive(amount Positive) Positive {
	return RequirePositive(amount.Decimal().Mul(r.Num.Decimal()).Div(r.Denom.Decimal()))
}

// Complement returns 1 - r, used for "the recognized (non-denied)
// portion" computations. Returns an error if r > 1, which cannot happen for a
// validly constructed superficial-loss ratio (r is always in (0, 1]); a
// ratio of exactly 1 has a complement of exactly zero.
func (r Ratio) Complement() (NonNegative, error) {
	one := decimal.NewFromInt(1)
	diff := one.Sub(r.Decimal())
	return NewNonNegative(diff)
}
