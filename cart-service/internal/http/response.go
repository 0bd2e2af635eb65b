package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/recovery"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain sentinels to HTTP status codes. Unclassified
// errors are logged and reported without their text.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrValidation):
		httpStatus, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		httpStatus, code = http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, domain.ErrConflict):
		httpStatus, code = http.StatusConflict, "conflict"
	case errors.Is(err, recovery.ErrSweepInProgress):
		httpStatus, code = http.StatusConflict, "sweep_in_progress"
	case errors.Is(err, domain.ErrPersistence):
		logger.Error("persistence failure", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "persistence_failure", "transaction could not be stored")
		return
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
