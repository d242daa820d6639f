// Package money converts decimal amounts to and from a currency's minor unit
// (cents for USD). Conversions are exact: an amount with more fractional
// digits than its currency allows is rejected rather than rounded.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// Normalize returns the canonical upper-case form of a currency code.
func Normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// Exponent returns the number of fractional digits of the currency's minor unit.
func Exponent(currency string) int32 {
	if zeroDecimal[Normalize(currency)] {
		return 0
	}
	return 2
}

// ToMinor converts amount to an integer count of minor units.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	shifted := amount.Shift(Exponent(currency))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", amount, Normalize(currency))
	}
	big := shifted.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("amount %s is out of range", amount)
	}
	return big.Int64(), nil
}

// FromMinor converts a count of minor units back to a decimal amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders amount with the currency's fixed number of fractional digits.
func Format(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(Exponent(currency))
}

// Parse reads a decimal amount string.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
