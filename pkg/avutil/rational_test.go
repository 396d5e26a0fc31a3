package avutil

import "testing"

func TestRationalAddIdentity(t *testing.T) {
	a, _ := NewRational(3, 4)
	zero, _ := NewRational(0, 1)
	got := RationalAdd(a, zero)
	if !RationalEqual(got, a) {
		t.Errorf("a + 0 = %s, want %s", RationalString(got), RationalString(a))
	}
}

func TestRationalMulIdentity(t *testing.T) {
	a, _ := NewRational(5, 7)
	one, _ := NewRational(1, 1)
	got := RationalMul(a, one)
	if !RationalEqual(got, a) {
		t.Errorf("a * 1 = %s, want %s", RationalString(got), RationalString(a))
	}
}

func TestRationalInvInvolution(t *testing.T) {
	a, _ := NewRational(3, 8)
	inv, err := RationalInv(a)
	if err != nil {
		t.Fatalf("Inv: %v", err)
	}
	back, err := RationalInv(inv)
	if err != nil {
		t.Fatalf("Inv(Inv): %v", err)
	}
	if !RationalEqual(back, a) {
		t.Errorf("(a.inv()).inv() = %s, want %s", RationalString(back), RationalString(a))
	}
}

func TestRationalInvZeroFails(t *testing.T) {
	zero, _ := NewRational(0, 1)
	if _, err := RationalInv(zero); err == nil {
		t.Fatal("expected error inverting zero")
	}
}

func TestRationalEqualityByValue(t *testing.T) {
	a, _ := NewRational(1, 2)
	b, _ := NewRational(2, 4)
	if !RationalEqual(a, b) {
		t.Errorf("1/2 should equal 2/4")
	}
}

func TestRationalNewZeroDenominator(t *testing.T) {
	_, err := NewRational(1, 0)
	if err == nil {
		t.Fatal("expected error for zero denominator")
	}
	if KindOf(err) != KindInvalidArgument {
		t.Errorf("KindOf(err) = %v, want KindInvalidArgument", KindOf(err))
	}
}

func TestRationalFloat64(t *testing.T) {
	a, _ := NewRational(1, 4)
	if got := RationalFloat64(a); got != 0.25 {
		t.Errorf("Float64(1/4) = %v, want 0.25", got)
	}
}

func TestRationalAddReducesToLowestTerms(t *testing.T) {
	a, _ := NewRational(1, 4)
	b, _ := NewRational(1, 4)
	got := RationalAdd(a, b)
	if got.Num() != 1 || got.Den() != 2 {
		t.Errorf("1/4 + 1/4 = %d/%d, want 1/2", got.Num(), got.Den())
	}
}
