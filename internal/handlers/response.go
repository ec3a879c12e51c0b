package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/middlewares"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/services"
)

// ErrorResponse is returned for every failed request
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Internal server error
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps reconciler errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedCurrency),
		errors.Is(err, services.ErrAmountTooSmall),
		errors.Is(err, services.ErrInvalidTransactionID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrDuplicateTransaction),
		errors.Is(err, services.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoActiveRequest),
		errors.Is(err, services.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Log.Errorw("request failed",
			"request_id", middlewares.RequestIDFromContext(r.Context()),
			"uri", r.RequestURI, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// userID returns the authenticated user or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middlewares.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, false
	}
	return id, true
}
