package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositStatus is the lifecycle state of a deposit request.
type DepositStatus string

// Deposit request statuses. Transitions only go from pending to one of the others.
const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusCompleted DepositStatus = "completed"
	DepositStatusExpired   DepositStatus = "expired"
	DepositStatusCancelled DepositStatus = "cancelled"
)

// DepositRequestDB represents a deposit_requests row in the database
type DepositRequestDB struct {
	ID             uuid.UUID           `json:"id" db:"id"`                           // Primary key
	UserID         int64               `json:"user_id" db:"user_id"`                 // Owner of the request
	Currency       string              `json:"currency" db:"currency"`               // Crypto currency code
	ExpectedAmount decimal.Decimal     `json:"expected_amount" db:"expected_amount"` // Amount the user declared
	PaymentAddress string              `json:"payment_address" db:"payment_address"` // Shared deposit address
	Status         DepositStatus       `json:"status" db:"status"`                   // Lifecycle status
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`           // Creation timestamp
	ExpiresAt      time.Time           `json:"expires_at" db:"expires_at"`           // Fixed at creation, never extended
	MatchedTxID    *string             `json:"matched_tx_id,omitempty" db:"matched_tx_id"`
	ActualAmount   decimal.NullDecimal `json:"actual_amount" db:"actual_amount"`
	USDAmount      decimal.NullDecimal `json:"usd_amount" db:"usd_amount"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
}

// IsActive reports whether the request can still be matched at the given time.
func (d *DepositRequestDB) IsActive(now time.Time) bool {
	return d.Status == DepositStatusPending && now.Before(d.ExpiresAt)
}

// DepositCompletion carries the fields recorded when a request is completed.
type DepositCompletion struct {
	TxID         string
	ActualAmount decimal.Decimal
	USDAmount    decimal.Decimal
	CompletedAt  time.Time
}
