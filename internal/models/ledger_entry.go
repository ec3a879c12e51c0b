package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntryDB represents a credited on-chain transaction.
// TxID is unique; a second insert for the same TxID fails with ErrLedgerConflict.
type LedgerEntryDB struct {
	TxID       string          `json:"tx_id" db:"tx_id"`             // On-chain transaction identifier
	Currency   string          `json:"currency" db:"currency"`       // Crypto currency code
	UserID     int64           `json:"user_id" db:"user_id"`         // Credited user
	Amount     decimal.Decimal `json:"amount" db:"amount"`           // Crypto amount
	USDAmount  decimal.Decimal `json:"usd_amount" db:"usd_amount"`   // Credited USD amount
	CreditedAt time.Time       `json:"credited_at" db:"credited_at"` // Credit timestamp
}
