package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Supported currency codes
const (
	TON  = "TON"
	TRX  = "TRX"
	USDT = "USDT" // USDT on TRON (TRC20)
	ETH  = "ETH"
	BNB  = "BNB"
	BTC  = "BTC"
)

// USD is the currency user balances are denominated in.
const USD = "USD"

// minDepositAmounts holds the smallest accepted expected amount per currency.
var minDepositAmounts = map[string]decimal.Decimal{
	TON:  decimal.RequireFromString("1"),
	TRX:  decimal.RequireFromString("10"),
	USDT: decimal.RequireFromString("1"),
	ETH:  decimal.RequireFromString("0.001"),
	BNB:  decimal.RequireFromString("0.005"),
	BTC:  decimal.RequireFromString("0.0001"),
}

// IsSupportedCurrency reports whether deposits are accepted in the currency.
func IsSupportedCurrency(currency string) bool {
	_, ok := minDepositAmounts[currency]
	return ok
}

// MinDepositAmount returns the minimum expected amount for a currency.
// The second result is false for unsupported currencies.
func MinDepositAmount(currency string) (decimal.Decimal, bool) {
	min, ok := minDepositAmounts[currency]
	return min, ok
}

// SupportedCurrencies returns all supported currency codes in a stable order.
func SupportedCurrencies() []string {
	out := make([]string, 0, len(minDepositAmounts))
	for c := range minDepositAmounts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
