package processors

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no fractional minor unit; their wire amounts
// are already whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"COP": {},
	"CLP": {},
	"JPY": {},
	"KRW": {},
	"VND": {},
}

// minorUnits converts a wire amount into minor units of the currency.
func minorUnits(value decimal.Decimal, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return value.Round(0).IntPart()
	}
	return value.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
