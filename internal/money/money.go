package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"CLP": true,
	"ISK": true,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FromMinor converts minor units (cents) into a decimal amount.
func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// Format renders amount as "100.00 EUR".
func Format(amount int64, currency string) string {
	cur := strings.ToUpper(currency)
	s := FromMinor(amount, cur).StringFixed(Exponent(cur))
	if cur == "" {
		return s
	}
	return s + " " + cur
}
