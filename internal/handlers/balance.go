package handlers

//go:generate mockgen -source=balance.go -destination=balance_mock.go -package=handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// BalanceReader returns the user's USD balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// CreditLister returns the user's credited transactions.
type CreditLister interface {
	ListCredits(ctx context.Context, userID int64) ([]models.LedgerEntryDB, error)
}

// BalanceResponse represents the user's USD balance
// swagger:model BalanceResponse
type BalanceResponse struct {
	// USD balance
	// default: 0
	Balance string `json:"balance"`
}

// Credit is a single credited transaction
// swagger:model Credit
type Credit struct {
	TxID       string    `json:"tx_id"`
	Currency   string    `json:"currency"`
	Amount     string    `json:"amount"`
	USDAmount  string    `json:"usd_amount"`
	CreditedAt time.Time `json:"credited_at"`
}

// CreditsResponse lists credited transactions, newest first
// swagger:model CreditsResponse
type CreditsResponse struct {
	Credits []Credit `json:"credits"`
}

// NewGetBalanceHandler returns an HTTP handler for retrieving the user's balance.
// @Summary Get user balance
// @Description Returns the USD balance accumulated from credited deposits.
// @Tags balance
// @Produce json
// @Success 200 {object} handlers.BalanceResponse
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /api/v1/balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(svc BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		balance, err := svc.GetBalance(r.Context(), uid)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance.String()})
	}
}

// NewListCreditsHandler returns an HTTP handler listing the user's credited deposits.
// @Summary List credits
// @Tags balance
// @Produce json
// @Success 200 {object} handlers.CreditsResponse
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /api/v1/credits [get]
// @Security BearerAuth
func NewListCreditsHandler(svc CreditLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		entries, err := svc.ListCredits(r.Context(), uid)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := CreditsResponse{Credits: make([]Credit, 0, len(entries))}
		for _, e := range entries {
			resp.Credits = append(resp.Credits, Credit{
				TxID:       e.TxID,
				Currency:   e.Currency,
				Amount:     e.Amount.String(),
				USDAmount:  e.USDAmount.String(),
				CreditedAt: e.CreditedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
