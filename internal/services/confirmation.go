package services

import (
	"math"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

// ConfirmationPolicy maps a currency to the number of confirmations a
// transaction needs before it is credited.
type ConfirmationPolicy map[string]int

// DefaultConfirmationPolicy returns the production thresholds.
// TRX and USDT use the TRON solidification depth.
func DefaultConfirmationPolicy() ConfirmationPolicy {
	return ConfirmationPolicy{
		models.TON:  1,
		models.TRX:  19,
		models.USDT: 19,
		models.ETH:  12,
		models.BNB:  15,
		models.BTC:  2,
	}
}

// Required returns the threshold for the currency. Unknown currencies never settle.
func (p ConfirmationPolicy) Required(currency string) int {
	n, ok := p[currency]
	if !ok {
		return math.MaxInt
	}
	return n
}

// Satisfied reports whether a probe result is final enough to settle.
func (p ConfirmationPolicy) Satisfied(currency string, res models.ProbeResult) bool {
	return res.Status == models.ProbeConfirmed && res.Confirmations >= p.Required(currency)
}
