package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tokenmint/pkg/mint"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/token"
)

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	Step       string `json:"step,omitempty"`
	Mint       string `json:"mint,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// writeError maps domain errors to a status and body. networkStatus is the
// status used when the freshness token could not be fetched.
func writeError(w http.ResponseWriter, log *slog.Logger, err error, networkStatus int) {
	var mismatch *payment.PaymentMismatchError
	var opErr *mint.MintOperationError

	switch {
	case errors.Is(err, payment.ErrInvalidAddress),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidReference),
		errors.Is(err, mint.ErrInvalidRequest),
		errors.Is(err, token.ErrInvalidSecretKey):
		writeBadRequest(w, err.Error())

	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "payment_mismatch",
			Message: mismatch.Message(),
			Reason:  string(mismatch.Reason),
		})

	case errors.Is(err, payment.ErrNetworkUnavailable):
		log.Error("api: network unavailable", "error", err)
		writeJSON(w, networkStatus, ErrorResponse{
			Error:   "network_unavailable",
			Message: "Unable to reach the network. Please try again.",
		})

	case errors.Is(err, payment.ErrUpstreamUnavailable):
		log.Error("api: ledger unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "upstream_unavailable",
			Message: "Unable to reach the ledger. Please try again.",
		})

	case errors.Is(err, mint.ErrRequestInProgress):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "request_in_progress",
			Message: err.Error(),
		})

	case errors.Is(err, mint.ErrPaymentAlreadyUsed):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "payment_already_used",
			Message: err.Error(),
		})

	case errors.Is(err, mint.ErrKeyReused):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "idempotency_key_reused",
			Message: err.Error(),
		})

	case errors.Is(err, mint.ErrPreviousAttemptFailed) && errors.As(err, &opErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "previous_attempt_failed",
			Message: mint.ErrPreviousAttemptFailed.Error(),
			Step:    opErr.Step,
			Mint:    opErr.Mint,
		})

	case errors.As(err, &opErr):
		log.Error("api: mint operation failed", "step", opErr.Step, "mint", opErr.Mint, "error", opErr.Err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "mint_failed",
			Message: "Token creation failed. Any account created before the failure was not rolled back.",
			Step:    opErr.Step,
			Mint:    opErr.Mint,
		})

	default:
		log.Error("api: request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}
