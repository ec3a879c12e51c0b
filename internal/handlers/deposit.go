package handlers

//go:generate mockgen -source=deposit.go -destination=deposit_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// DepositCreator opens deposit requests.
type DepositCreator interface {
	CreateDepositRequest(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (*models.DepositRequestDB, error)
}

// DepositReader loads a single deposit request owned by the user.
type DepositReader interface {
	GetDepositRequest(ctx context.Context, userID int64, id uuid.UUID) (*models.DepositRequestDB, error)
}

// DepositCanceller cancels a pending deposit request.
type DepositCanceller interface {
	CancelDepositRequest(ctx context.Context, userID int64, id uuid.UUID) error
}

// CreateDepositRequest represents the JSON body for opening a deposit request
// swagger:model CreateDepositRequest
type CreateDepositRequest struct {
	// Crypto currency code
	// required: true
	// default: TON
	Currency string `json:"currency"`

	// Amount the user intends to send
	// required: true
	// default: 10
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
}

// CreateDepositResponse is returned after a deposit request is opened
// swagger:model CreateDepositResponse
type CreateDepositResponse struct {
	// Deposit request id
	ID uuid.UUID `json:"id" swaggertype:"string"`

	// Address the funds must be sent to
	PaymentAddress string `json:"payment_address"`

	// Deadline for the transfer
	ExpiresAt time.Time `json:"expires_at"`
}

// DepositResponse describes a deposit request
// swagger:model DepositResponse
type DepositResponse struct {
	ID             uuid.UUID  `json:"id" swaggertype:"string"`
	Currency       string     `json:"currency"`
	ExpectedAmount string     `json:"expected_amount"`
	PaymentAddress string     `json:"payment_address"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	MatchedTxID    *string    `json:"matched_tx_id,omitempty"`
	ActualAmount   *string    `json:"actual_amount,omitempty"`
	USDAmount      *string    `json:"usd_amount,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toDepositResponse(d *models.DepositRequestDB) DepositResponse {
	resp := DepositResponse{
		ID:             d.ID,
		Currency:       d.Currency,
		ExpectedAmount: d.ExpectedAmount.String(),
		PaymentAddress: d.PaymentAddress,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		MatchedTxID:    d.MatchedTxID,
		CompletedAt:    d.CompletedAt,
	}
	if d.ActualAmount.Valid {
		s := d.ActualAmount.Decimal.String()
		resp.ActualAmount = &s
	}
	if d.USDAmount.Valid {
		s := d.USDAmount.Decimal.String()
		resp.USDAmount = &s
	}
	return resp
}

// NewCreateDepositHandler returns an HTTP handler that opens a deposit request.
// @Summary Create deposit request
// @Description Opens a deposit request and returns the address to pay to. The request expires after the deposit timeout.
// @Tags deposits
// @Accept json
// @Produce json
// @Param request body handlers.CreateDepositRequest true "Deposit request"
// @Success 201 {object} handlers.CreateDepositResponse
// @Failure 400 {object} handlers.ErrorResponse "Unsupported currency or amount below minimum"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /api/v1/deposits [post]
// @Security BearerAuth
func NewCreateDepositHandler(svc DepositCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req CreateDepositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		dr, err := svc.CreateDepositRequest(r.Context(), uid, req.Currency, req.Amount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateDepositResponse{
			ID:             dr.ID,
			PaymentAddress: dr.PaymentAddress,
			ExpiresAt:      dr.ExpiresAt,
		})
	}
}

// NewGetDepositHandler returns an HTTP handler that reports a deposit request.
// @Summary Get deposit request
// @Tags deposits
// @Produce json
// @Param id path string true "Deposit request id"
// @Success 200 {object} handlers.DepositResponse
// @Failure 400 {object} handlers.ErrorResponse "Invalid id"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /api/v1/deposits/{id} [get]
// @Security BearerAuth
func NewGetDepositHandler(svc DepositReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deposit request id")
			return
		}

		dr, err := svc.GetDepositRequest(r.Context(), uid, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDepositResponse(dr))
	}
}

// NewCancelDepositHandler returns an HTTP handler that cancels a pending deposit request.
// @Summary Cancel deposit request
// @Tags deposits
// @Param id path string true "Deposit request id"
// @Success 204
// @Failure 400 {object} handlers.ErrorResponse "Invalid id"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Not found"
// @Failure 409 {object} handlers.ErrorResponse "Request is no longer pending"
// @Router /api/v1/deposits/{id} [delete]
// @Security BearerAuth
func NewCancelDepositHandler(svc DepositCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deposit request id")
			return
		}

		if err := svc.CancelDepositRequest(r.Context(), uid, id); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
