package stripe

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

// Stripe reports amounts in the currency's smallest unit. Most currencies
// carry two decimals; these are the exceptions Stripe documents.
var (
	zeroDecimal = map[stripe.Currency]struct{}{
		"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
		"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
	}
	threeDecimal = map[stripe.Currency]struct{}{
		"bhd": {}, "jod": {}, "kwd": {}, "omr": {}, "tnd": {},
	}
)

// MinorUnitExponent returns how many decimals the currency's minor unit has.
func MinorUnitExponent(currency string) int32 {
	c := stripe.Currency(strings.ToLower(strings.TrimSpace(currency)))
	if _, ok := zeroDecimal[c]; ok {
		return 0
	}
	if _, ok := threeDecimal[c]; ok {
		return 3
	}
	return 2
}

// MajorUnits converts a minor-unit amount to the currency's major unit.
func MajorUnits(amount int64, currency stripe.Currency) decimal.Decimal {
	return decimal.New(amount, -MinorUnitExponent(string(currency)))
}
