package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultCurrency is used when an invoice or amount names none.
const DefaultCurrency = "USD"

// ErrCurrencyMismatch is returned when amounts in different currencies meet.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an amount in minor units (cents) of an ISO 4217 currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func Zero(currency string) Money { return Money{Currency: currency} }

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("add %s to %s: %w", o.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("subtract %s from %s: %w", o.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Times multiplies by an integer quantity.
func (m Money) Times(n int) Money {
	return Money{Amount: m.Amount * int64(n), Currency: m.Currency}
}

// Percent returns pct percent of m, rounded half away from zero. pct is
// taken to two decimal places and the amount is scaled in integers, so
// large amounts keep every minor unit.
func (m Money) Percent(pct float64) Money {
	bp := int64(math.Round(pct * 100))
	q, r := m.Amount/10000, m.Amount%10000
	return Money{Amount: q*bp + roundDiv(r*bp, 10000), Currency: m.Currency}
}

// roundDiv divides n by a positive d, rounding half away from zero.
func roundDiv(n, d int64) int64 {
	if n < 0 {
		return -roundDiv(-n, d)
	}
	return (n + d/2) / d
}

// String renders "USD 12.34".
func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign, a = "-", -a
	}
	return fmt.Sprintf("%s %s%d.%02d", m.Currency, sign, a/100, a%100)
}

// withCurrency fills an unset currency, leaving explicit ones untouched.
func (m Money) withCurrency(currency string) Money {
	if m.Currency == "" {
		m.Currency = currency
	}
	m.Currency = strings.ToUpper(m.Currency)
	return m
}

// sum adds amounts that must all be in currency.
func sum(currency string, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
