package avutil

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Rational is astiav's exact-fraction type, used for time bases, frame
// rates, and sample aspect ratios throughout this module. spec.md places
// its representation out of scope (an assumed native primitive); this
// file adds only the arithmetic and conversion helpers the spec's
// "Rational laws" property test exercises, since astiav.Rational itself
// exposes just Num()/Den().
type Rational = astiav.Rational

// NewRational builds a Rational, returning KindInvalidArgument if den is 0.
func NewRational(num, den int) (Rational, error) {
	if den == 0 {
		return Rational{}, Newf("avutil", KindInvalidArgument, "rational denominator must be non-zero")
	}
	return astiav.NewRational(num, den), nil
}

// RationalAdd returns a + b, reduced to lowest terms.
func RationalAdd(a, b Rational) Rational {
	num := a.Num()*b.Den() + b.Num()*a.Den()
	den := a.Den() * b.Den()
	return reduce(num, den)
}

// RationalMul returns a * b, reduced to lowest terms.
func RationalMul(a, b Rational) Rational {
	return reduce(a.Num()*b.Num(), a.Den()*b.Den())
}

// RationalInv returns the multiplicative inverse of r.
func RationalInv(r Rational) (Rational, error) {
	if r.Num() == 0 {
		return Rational{}, Newf("avutil", KindInvalidArgument, "cannot invert a zero rational")
	}
	if r.Num() < 0 {
		return astiav.NewRational(-r.Den(), -r.Num()), nil
	}
	return astiav.NewRational(r.Den(), r.Num()), nil
}

// RationalEqual compares two rationals by value, not by representation
// (1/2 == 2/4).
func RationalEqual(a, b Rational) bool {
	return a.Num()*b.Den() == b.Num()*a.Den()
}

// RationalFloat64 converts r to a float64 approximation.
func RationalFloat64(r Rational) float64 {
	if r.Den() == 0 {
		return 0
	}
	return float64(r.Num()) / float64(r.Den())
}

// RationalString renders r as "num/den" for logs and error messages.
func RationalString(r Rational) string {
	return fmt.Sprintf("%d/%d", r.Num(), r.Den())
}

func reduce(num, den int) Rational {
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), abs(den))
	if g == 0 {
		return astiav.NewRational(num, den)
	}
	return astiav.NewRational(num/g, den/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
