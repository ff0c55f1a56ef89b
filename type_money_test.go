package subledger

import "testing"

func TestMoney_Arithmetic(t *testing.T) {
	a := M(100, "USD")
	b := M(40, "USD")

	if got := a.Add(b); !got.Equal(M(140, "USD")) {
		t.Errorf("Add() = %s, want 140", got)
	}
	if got := a.Sub(b); !got.Equal(M(60, "USD")) {
		t.Errorf("Sub() = %s, want 60", got)
	}
	if got := a.Mul(Q(3)); !got.Equal(M(300, "USD")) {
		t.Errorf("Mul() = %s, want 300", got)
	}
	if got := a.Div(Q(8)); !got.Equal(M(12.5, "USD")) {
		t.Errorf("Div() = %s, want 12.5", got)
	}
	if got := b.Neg(); !got.Equal(M(-40, "USD")) {
		t.Errorf("Neg() = %s, want -40", got)
	}
	if got := M(-40, "USD").Abs(); !got.Equal(b) {
		t.Errorf("Abs() = %s, want 40", got)
	}
}

func TestMoney_Round(t *testing.T) {
	m := M(1, "USD").Div(Q(3))
	if got := m.Round(2); !got.Equal(M(0.33, "USD")) {
		t.Errorf("Round(2) = %s, want 0.33", got)
	}
}

func TestMoney_WeakCurrency(t *testing.T) {
	// The zero-valued weak money combines with any currency.
	sum := M(0, "").Add(M(10, "USD"))
	if sum.Currency() != "USD" || !sum.Equal(M(10, "USD")) {
		t.Errorf("weak add = %s %s, want 10 USD", sum, sum.Currency())
	}
}

func TestMoney_Predicates(t *testing.T) {
	if !M(0, "USD").IsZero() || M(1, "USD").IsZero() {
		t.Error("IsZero() misclassifies")
	}
	if !M(1, "USD").IsPositive() || M(-1, "USD").IsPositive() {
		t.Error("IsPositive() misclassifies")
	}
	if !M(-1, "USD").IsNegative() || M(1, "USD").IsNegative() {
		t.Error("IsNegative() misclassifies")
	}
}

func TestQuantity(t *testing.T) {
	if got := Q(10).Min(Q(4)); !got.Equal(Q(4)) {
		t.Errorf("Min() = %s, want 4", got)
	}
	if got := Q(100).Sub(Q(60)); !got.Equal(Q(40)) {
		t.Errorf("Sub() = %s, want 40", got)
	}
	if !Q(1).GreaterThan(Q(0)) || !Q(0).LessThan(Q(1)) {
		t.Error("comparison misclassifies")
	}
}
