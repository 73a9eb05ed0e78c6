package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if m.Currency != "USD" {
		t.Errorf("Expected USD, got %s", m.Currency)
	}

	if _, err := NewMoney(decimal.NewFromInt(10), "DOLLARS"); err == nil {
		t.Error("Expected error for invalid currency code")
	}
	if _, err := NewMoney(decimal.NewFromInt(10), ""); err == nil {
		t.Error("Expected error for empty currency code")
	}
}

func TestMoney_AddSubtract(t *testing.T) {
	a := MustMoney(decimal.NewFromFloat(10.50), "USD")
	b := MustMoney(decimal.NewFromFloat(2.25), "USD")

	sum := a.Add(b)
	if !sum.Amount.Equal(decimal.NewFromFloat(12.75)) {
		t.Errorf("Expected 12.75, got %s", sum.Amount)
	}

	diff := a.Subtract(b)
	if !diff.Amount.Equal(decimal.NewFromFloat(8.25)) {
		t.Errorf("Expected 8.25, got %s", diff.Amount)
	}
}

func TestMoney_CurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on currency mismatch")
		}
	}()
	usd := MustMoney(decimal.NewFromInt(10), "USD")
	eur := MustMoney(decimal.NewFromInt(5), "EUR")
	usd.Add(eur)
}

func TestMoney_Predicates(t *testing.T) {
	zero := MustMoney(decimal.Zero, "USD")
	positive := MustMoney(decimal.NewFromInt(1), "USD")
	negative := MustMoney(decimal.NewFromInt(-1), "USD")

	if !zero.IsZero() || zero.IsPositive() || zero.IsNegative() {
		t.Error("Expected zero to be zero only")
	}
	if !positive.IsPositive() || positive.IsZero() {
		t.Error("Expected positive to be positive")
	}
	if !negative.IsNegative() {
		t.Error("Expected negative to be negative")
	}
	if !positive.GreaterThanOrEqual(zero) {
		t.Error("Expected 1 >= 0")
	}
	if zero.GreaterThanOrEqual(positive) {
		t.Error("Expected 0 < 1")
	}
}

func TestMoney_String(t *testing.T) {
	m := MustMoney(decimal.NewFromFloat(10.5), "USD")
	if m.String() != "10.50 USD" {
		t.Errorf("Expected 10.50 USD, got %s", m.String())
	}
}
