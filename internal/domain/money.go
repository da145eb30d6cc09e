package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultScale is used for currencies go-money does not know about.
const DefaultScale int32 = 2

// Money is a fixed-point amount rendered with the number of minor-unit
// digits of its currency.
type Money struct {
	Amount decimal.Decimal
	Scale  int32
}

// NewMoney rounds d to scale digits.
func NewMoney(d decimal.Decimal, scale int32) Money {
	return Money{Amount: d.Round(scale), Scale: scale}
}

// MoneyPtr is NewMoney returning a pointer, for optional debit/credit fields.
func MoneyPtr(d decimal.Decimal, scale int32) *Money {
	m := NewMoney(d, scale)
	return &m
}

// String renders the amount with exactly Scale decimals.
func (m Money) String() string {
	return m.Amount.StringFixed(m.Scale)
}

// MarshalJSON renders the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// CurrencyScale returns the number of minor-unit digits for an ISO 4217 code.
func CurrencyScale(code string) int32 {
	c := money.GetCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if c == nil {
		return DefaultScale
	}
	return int32(c.Fraction)
}

// Tolerance is minorUnits of the currency's smallest unit, e.g. 0.01 for
// one cent of USD.
func Tolerance(code string, minorUnits int64) decimal.Decimal {
	if minorUnits <= 0 {
		minorUnits = 1
	}
	return decimal.New(minorUnits, -CurrencyScale(code))
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}
