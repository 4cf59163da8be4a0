package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	MinPrice = decimal.RequireFromString("0.01")
	// MaxPrice is the largest value a decimal(18,2) column holds.
	MaxPrice = decimal.RequireFromString("9999999999999999.99")
)

var (
	ErrPriceRequired   = errors.New("price is required")
	ErrPriceInvalid    = errors.New("price must be a number")
	ErrPriceOutOfRange = errors.New("price must be between 0.01 and 9999999999999999.99")
	ErrPriceTooPrecise = errors.New("price must have at most two decimal places")
)

// ParsePrice parses a user-entered price. It accepts at most two decimal places
// and enforces the catalog range.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrPriceRequired
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrPriceInvalid
	}
	if !price.Equal(price.Round(2)) {
		return decimal.Zero, ErrPriceTooPrecise
	}
	if price.LessThan(MinPrice) || price.GreaterThan(MaxPrice) {
		return decimal.Zero, ErrPriceOutOfRange
	}
	return price.Round(2), nil
}
