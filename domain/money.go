// Package domain содержит агрегат Account и доменные события банковского счета.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money value object: денежная сумма с валютой ISO-4217
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney создает Money, проверяя код валюты по ISO-4217
func NewMoney(amount decimal.Decimal, currencyCode string) (Money, error) {
	if _, err := currency.ParseISO(currencyCode); err != nil {
		return Money{}, fmt.Errorf("invalid currency code %q: %w", currencyCode, err)
	}
	return Money{Amount: amount, Currency: currencyCode}, nil
}

// MustMoney создает Money и паникует при некорректной валюте
func MustMoney(amount decimal.Decimal, currencyCode string) Money {
	m, err := NewMoney(amount, currencyCode)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero возвращает нулевую сумму в указанной валюте
func Zero(currencyCode string) (Money, error) {
	return NewMoney(decimal.Zero, currencyCode)
}

// Add складывает две суммы одной валюты
func (m Money) Add(other Money) Money {
	m.mustSameCurrency(other)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Subtract вычитает сумму той же валюты
func (m Money) Subtract(other Money) Money {
	m.mustSameCurrency(other)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// IsPositive проверяет, что сумма строго положительна
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative проверяет, что сумма отрицательна
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero проверяет, что сумма равна нулю
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// GreaterThanOrEqual сравнивает суммы одной валюты
func (m Money) GreaterThanOrEqual(other Money) bool {
	m.mustSameCurrency(other)
	return m.Amount.GreaterThanOrEqual(other.Amount)
}

// SameCurrency проверяет совпадение валют
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// String возвращает строковое представление суммы
func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// mustSameCurrency: арифметика с разными валютами — ошибка программирования,
// бизнес-правила обязаны проверить валюту до вычислений
func (m Money) mustSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.Currency, other.Currency))
	}
}
