package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserDB represents a user balance record in the database
type UserDB struct {
	UserID    int64           `json:"id" db:"user_id"`            // Primary key (Telegram user id)
	Balance   decimal.Decimal `json:"balance" db:"balance"`       // USD balance
	CreatedAt time.Time       `json:"created_at" db:"created_at"` // Creation timestamp
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"` // Last update timestamp
}
