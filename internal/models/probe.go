package models

import "github.com/shopspring/decimal"

// ProbeStatus is the normalized on-chain status of a transaction.
type ProbeStatus string

// Probe statuses reported by chain adapters.
const (
	ProbeConfirmed ProbeStatus = "confirmed"
	ProbePending   ProbeStatus = "pending"
	ProbeFailed    ProbeStatus = "failed"
	ProbeNotFound  ProbeStatus = "not_found"
	ProbeError     ProbeStatus = "error"
)

// ProbeResult is what a chain adapter returns for one transaction lookup.
// Amount is the value the transaction paid to the deposit address and is only
// meaningful when Observed is set.
type ProbeResult struct {
	Status        ProbeStatus
	Confirmations int
	Amount        decimal.Decimal
	Observed      bool
}

// Paid reports whether the chain showed a positive payment to the deposit address.
func (r ProbeResult) Paid() bool {
	return r.Observed && r.Amount.IsPositive()
}

// ProbeErrorResult is the normalized result for any adapter-side failure.
func ProbeErrorResult() ProbeResult {
	return ProbeResult{Status: ProbeError}
}
