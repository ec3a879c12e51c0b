package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MonitoredTransaction is an in-flight transaction awaiting confirmation.
type MonitoredTransaction struct {
	TxID             string          `json:"tx_id"`
	Currency         string          `json:"currency"`
	UserID           int64           `json:"user_id"`
	DepositRequestID uuid.UUID       `json:"deposit_request_id"`
	ExpectedAmount   decimal.Decimal `json:"expected_amount"`
	USDAmountHint    decimal.Decimal `json:"usd_amount_hint"`
	Status           ProbeStatus     `json:"status"`
	Confirmations    int             `json:"confirmations"`
	AddedAt          time.Time       `json:"added_at"`
}
