package models

import "github.com/shopspring/decimal"

// NotificationKind identifies the user-facing event being published.
type NotificationKind string

// Notification kinds consumed by the Telegram notifier.
const (
	NotificationDepositCredited NotificationKind = "deposit_credited"
	NotificationDepositExpired  NotificationKind = "deposit_expired"
)

// Notification is published to Kafka for the notification sender, keyed by user id.
type Notification struct {
	NotificationID string           `json:"notification_id"` // NotificationID is a unique identifier for the message.
	Timestamp      int64            `json:"timestamp"`       // Timestamp is the Unix timestamp (in seconds) the event occurred.
	UserID         int64            `json:"user_id"`         // UserID is the recipient.
	Kind           NotificationKind `json:"kind"`            // Kind is deposit_credited or deposit_expired.
	Payload        NotificationData `json:"payload"`         // Payload carries the event details.
}

// NotificationData holds the event-specific fields of a notification.
type NotificationData struct {
	DepositRequestID string           `json:"deposit_request_id"`
	Currency         string           `json:"currency"`
	TxID             string           `json:"tx_id,omitempty"`
	Amount           decimal.Decimal  `json:"amount"`
	USDAmount        *decimal.Decimal `json:"usd_amount,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
}
