package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in the store currency's major unit ("10.00" = ten dollars).
// Serialized with exactly two fractional digits, the way EDD stores prices.
type Money struct {
	decimal.Decimal
}

// ZeroMoney is the zero amount.
var ZeroMoney = Money{decimal.Zero}

// NewMoney wraps a decimal.
func NewMoney(d decimal.Decimal) Money {
	return Money{d}
}

// MustMoney parses s and panics on malformed input. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money, rounded to two places.
// Empty strings parse as zero since EDD stores unset prices as "".
// Examples: "99.00" → 99.00, "1234.5" → 1234.50, "" → 0.00
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroMoney, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return Money{d.Round(2)}, nil
}

// String formats with exactly two decimal places.
func (m Money) String() string {
	return m.StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{m.Decimal.Add(o.Decimal)}
}

// Equal reports whether both amounts are numerically equal.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// MarshalJSON emits a quoted two-place string ("35.00").
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted strings and bare numbers.
// WordPress plugins are inconsistent about which one they return.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*m = ZeroMoney
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
