package models

import "github.com/shopspring/decimal"

// DefaultCurrency is the currency used when an order does not name one.
const DefaultCurrency = "BRL"

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a major-unit amount to the smallest currency unit,
// rounding half away from zero on the value times 100.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// MajorUnits converts minor units back to a two-decimal major amount.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
