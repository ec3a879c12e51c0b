package handlers

//go:generate mockgen -source=transaction.go -destination=transaction_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/services"
	"github.com/shopspring/decimal"
)

// TransactionRegistrar accepts transactions for confirmation monitoring.
type TransactionRegistrar interface {
	RegisterTransaction(ctx context.Context, s services.Submission) (*models.MonitoredTransaction, error)
}

// RegisterTransactionRequest represents the JSON body for submitting a sent transaction
// swagger:model RegisterTransactionRequest
type RegisterTransactionRequest struct {
	// Crypto currency code
	// required: true
	// default: TON
	Currency string `json:"currency"`

	// On-chain transaction id or hash
	// required: true
	TxID string `json:"tx_id"`

	// Deposit request to settle; the latest pending one is used when empty
	DepositRequestID *uuid.UUID `json:"deposit_request_id,omitempty" swaggertype:"string"`

	// Amount the user sent; defaults to the request amount
	ExpectedAmount decimal.Decimal `json:"expected_amount" swaggertype:"string"`
}

// RegisterTransactionResponse is returned once the transaction is monitored
// swagger:model RegisterTransactionResponse
type RegisterTransactionResponse struct {
	// default: monitoring
	Status string `json:"status"`

	TxID             string    `json:"tx_id"`
	DepositRequestID uuid.UUID `json:"deposit_request_id" swaggertype:"string"`
}

// NewRegisterTransactionHandler returns an HTTP handler that submits a transaction for monitoring.
// @Summary Submit transaction
// @Description Registers a sent transaction against a pending deposit request. Crediting happens once the transaction has enough confirmations.
// @Tags deposits
// @Accept json
// @Produce json
// @Param request body handlers.RegisterTransactionRequest true "Transaction"
// @Success 202 {object} handlers.RegisterTransactionResponse
// @Failure 400 {object} handlers.ErrorResponse "Unsupported currency or invalid transaction id"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "No active deposit request"
// @Failure 409 {object} handlers.ErrorResponse "Transaction already submitted"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /api/v1/deposits/transactions [post]
// @Security BearerAuth
func NewRegisterTransactionHandler(svc TransactionRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req RegisterTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		tx, err := svc.RegisterTransaction(r.Context(), services.Submission{
			UserID:           uid,
			Currency:         req.Currency,
			TxID:             req.TxID,
			DepositRequestID: req.DepositRequestID,
			ExpectedAmount:   req.ExpectedAmount,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusAccepted, RegisterTransactionResponse{
			Status:           "monitoring",
			TxID:             tx.TxID,
			DepositRequestID: tx.DepositRequestID,
		})
	}
}
