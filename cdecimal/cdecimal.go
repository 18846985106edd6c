// Package cdecimal provides arbitrary-precision decimal values tagged at
// the type level with sign constraints. A value can only be constructed
// through a checked conversion that fails when the underlying value
// violates the constraint, so that, for example, a share count cannot
// be zero or an ACB cannot go negative without an explicit, visible
// conversion error somewhere in the code that produced it.
package cdecimal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// isPositive and isNegative rely solely on Sign(): shopspring/decimal does
// not carry a sign bit the way rust_decimal does, so zero is neither
// positive nor negative.
func isPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

func isNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// Constraint identifies a sign predicate over decimal.Decimal.
type Constraint interface {
	Ok(d decimal.Decimal) bool
	Name() string
}

type positiveConstraint struct{}

func (positiveConstraint) Ok(d decimal.Decimal) bool { return isPositive(d) }
func (positiveConstraint) Name() string              { return "Positive" }

type nonNegativeConstraint struct{}

func (nonNegativeConstraint) Ok(d decimal.Decimal) bool { return !isNegative(d) }
func (nonNegativeConstraint) Name() string              { return "NonNegative" }

type nonPositiveConstraint struct{}

func (nonPositiveConstraint) Ok(d decimal.Decimal) bool { return !isPositive(d) }
func (nonPositiveConstraint) Name() string              { return "NonPositive" }

type negativeConstraint struct{}

func (negativeConstraint) Ok(d decimal.Decimal) bool { return isNegative(d) }
func (negativeConstraint) Name() string              { return "Negative" }

// Constrained is a decimal.Decimal that has been checked against a
// Constraint at construction time. The zero value is not generally
// valid; always obtain one through the package constructors.
type Constrained struct {
	val        decimal.Decimal
	constraint Constraint
}

func newConstrained(d decimal.Decimal, c Constraint) (Constrained, error) {
	if !c.Ok(d) {
		return Constrained{}, fmt.Errorf("%s does not satisfy constraint %s", d.String(), c.Name())
	}
	return Constrained{val: d, constraint: c}, nil
}

func (c Constrained) Decimal() decimal.Decimal { return c.val }
func (c Constrained) String() string           { return c.val.String() }

// Positive is a decimal strictly greater than zero.
type Positive struct{ Constrained }

// NonNegative is a decimal greater than or equal to zero.
type NonNegative struct{ Constrained }

// NonPositive is a decimal less than or equal to zero.
type NonPositive struct{ Constrained }

// Negative is a decimal strictly less than zero.
type Negative struct{ Constrained }

func NewPositive(d decimal.Decimal) (Positive, error) {
	c, err := newConstrained(d, positiveConstraint{})
	return Positive{c}, err
}

func RequirePositive(d decimal.Decimal) Positive {
	p, err := NewPositive(d)
	if err != nil {
		panic(err)
	}
	return p
}

func NewNonNegative(d decimal.Decimal) (NonNegative, error) {
	c, err := newConstrained(d, nonNegativeConstraint{})
	return NonNegative{c}, err
}

func RequireNonNegative(d decimal.Decimal) NonNegative {
	n, err := NewNonNegative(d)
	if err != nil {
		panic(err)
	}
	return n
}

func NewNonPositive(d decimal.Decimal) (NonPositive, error) {
	c, err := newConstrained(d, nonPositiveConstraint{})
	return NonPositive{c}, err
}

func RequireNonPositive(d decimal.Decimal) NonPositive {
	n, err := NewNonPositive(d)
	if err != nil {
		panic(err)
	}
	return n
}

func NewNegative(d decimal.Decimal) (Negative, error) {
	c, err := newConstrained(d, negativeConstraint{})
	return Negative{c}, err
}

func RequireNegative(d decimal.Decimal) Negative {
	n, err := NewNegative(d)
	if err != nil {
		panic(err)
	}
	return n
}

// ZeroNonNegative and ZeroNonPositive are the two constraints that admit
// zero, provided as convenience constructors analogous to the source's
// ConstrainedDecimal<C>::zero().
func ZeroNonNegative() NonNegative { return NonNegative{Constrained{val: decimal.Zero, constraint: nonNegativeConstraint{}}} }
func ZeroNonPositive() NonPositive { return NonPositive{Constrained{val: decimal.Zero, constraint: nonPositiveConstraint{}}} }

// Add preserves NonNegative + NonNegative -> NonNegative, since that sum
// can never violate its own constraint.
func (n NonNegative) Add(o NonNegative) NonNegative {
	return RequireNonNegative(n.val.Add(o.val))
}

// Add preserves Positive + Positive -> Positive.
func (p Positive) Add(o Positive) Positive {
	return RequirePositive(p.val.Add(o.val))
}

// Add preserves NonPositive + NonPositive -> NonPositive.
func (n NonPositive) Add(o NonPositive) NonPositive {
	return RequireNonPositive(n.val.Add(o.val))
}

// Mul preserves Positive * Positive -> Positive.
func (p Positive) Mul(o Positive) Positive {
	return RequirePositive(p.val.Mul(o.val))
}

// Div preserves Positive / Positive -> Positive. Division by zero cannot
// occur because the divisor is statically known to be nonzero.
func (p Positive) Div(o Positive) Positive {
	return RequirePositive(p.val.Div(o.val))
}

// AsNonNegative widens a Positive to NonNegative, an always-safe
// conversion (mirrors the source's From<Pos> for GreaterEqualZero).
func (p Positive) AsNonNegative() NonNegative {
	return RequireNonNegative(p.val)
}

// Neg flips the sign, mapping Positive<->Negative and NonNegative<->NonPositive.
func (p Positive) Neg() Negative         { return RequireNegative(p.val.Neg()) }
func (n Negative) Neg() Positive         { return RequirePositive(n.val.Neg()) }
func (n NonNegative) Neg() NonPositive   { return RequireNonPositive(n.val.Neg()) }
func (n NonPositive) Neg() NonNegative   { return RequireNonNegative(n.val.Neg()) }

func (n NonNegative) IsZero() bool { return n.val.IsZero() }
func (n NonPositive) IsZero() bool { return n.val.IsZero() }

func (n NonNegative) Equal(o NonNegative) bool { return n.val.Equal(o.val) }
func (p Positive) Equal(o Positive) bool       { return p.val.Equal(o.val) }
func (n Negative) Equal(o Negative) bool       { return n.val.Equal(o.val) }
func (n NonPositive) Equal(o NonPositive) bool { return n.val.Equal(o.val) }

func (n NonNegative) GreaterThanOrEqual(o NonNegative) bool { return n.val.GreaterThanOrEqual(o.val) }
func (n NonNegative) LessThan(o NonNegative) bool           { return n.val.LessThan(o.val) }
