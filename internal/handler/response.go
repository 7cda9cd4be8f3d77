package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"auctionhouse/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteDomainError maps a service/domain error onto the HTTP surface.
func WriteDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var rejectionErr *domain.RejectionError
	if errors.As(err, &rejectionErr) {
		WriteError(w, http.StatusUnprocessableEntity, string(rejectionErr.Reason), rejectionErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrMarketNotFound):
		WriteError(w, http.StatusNotFound, "market_not_found", err.Error())
	case errors.Is(err, domain.ErrTraderNotFound):
		WriteError(w, http.StatusNotFound, "trader_not_found", err.Error())
	case errors.Is(err, domain.ErrShoutNotFound):
		WriteError(w, http.StatusNotFound, "shout_not_found", err.Error())
	case errors.Is(err, domain.ErrTransactionNotFound):
		WriteError(w, http.StatusNotFound, "transaction_not_found", err.Error())
	case errors.Is(err, domain.ErrMarketAlreadyExists):
		WriteError(w, http.StatusConflict, "market_already_exists", err.Error())
	case errors.Is(err, domain.ErrTraderAlreadyExists):
		WriteError(w, http.StatusConflict, "trader_already_exists", err.Error())
	case errors.Is(err, domain.ErrDuplicateShout):
		WriteError(w, http.StatusConflict, "duplicate_shout", err.Error())
	case errors.Is(err, domain.ErrShoutNotWithdrawable):
		WriteError(w, http.StatusConflict, "shout_not_withdrawable", err.Error())
	case errors.Is(err, domain.ErrIllegalShoutState):
		WriteError(w, http.StatusConflict, "illegal_shout_state", err.Error())
	case errors.Is(err, domain.ErrMarketHalted):
		WriteError(w, http.StatusServiceUnavailable, "market_halted", "market is halted pending manual inspection")
	case errors.Is(err, domain.ErrTransactionDesync):
		WriteError(w, http.StatusInternalServerError, "transaction_queue_desync", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}
