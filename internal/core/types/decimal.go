// Package types provides shared value types for the domain layer.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary amount.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyFromFloat creates Money from a float64.
func MoneyFromFloat(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MoneyFromInt creates Money from an int64.
func MoneyFromInt(n int64) Money {
	return decimal.NewFromInt(n)
}

// MoneyFromString parses Money from a string.
func MoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses Money from a string, panics on error. Tests only.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ZeroMoney returns zero Money.
func ZeroMoney() Money {
	return decimal.Zero
}
