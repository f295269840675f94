package models

import "github.com/shopspring/decimal"

// Cents is an amount in the card's minor currency unit.
type Cents int64

// Decimal converts the amount to major units (dollars).
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount in major units with two decimals, e.g. "150.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// CentsFromDecimal rounds a major-unit amount to the nearest cent.
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}
