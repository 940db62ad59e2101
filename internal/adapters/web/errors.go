package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-engine/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// paymentFailedMessage is all a payer learns about a rejected callback.
const paymentFailedMessage = "payment not completed, please retry"

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp.RequestID = requestIDFromContext(r.Context())
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps engine errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without internal detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *core.ValidationError
		se *core.InvalidStateError
		ge *core.GatewayUnavailableError
	)
	switch {
	case errors.As(err, &ve):
		writeErrorResponse(w, r, errorResponse{Error: ve.Error(), Code: "VALIDATION_ERROR", Field: ve.Field}, http.StatusBadRequest)
	case errors.As(err, &se):
		writeError(w, r, se.Error(), "INVALID_STATE", http.StatusConflict)
	case errors.As(err, &ge):
		writeError(w, r, "payment gateway unavailable, please retry shortly", "GATEWAY_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrSignatureMismatch):
		writeError(w, r, paymentFailedMessage, "PAYMENT_FAILED", http.StatusBadRequest)
	case errors.Is(err, core.ErrUnknownOrFinalizedPayment):
		writeError(w, r, paymentFailedMessage, "PAYMENT_FAILED", http.StatusConflict)
	case errors.Is(err, core.ErrInvoiceNotFound):
		writeError(w, r, "invoice not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrClientNotFound):
		writeError(w, r, "client not found", "CLIENT_NOT_FOUND", http.StatusUnprocessableEntity)
	default:
		requestLogger(r).Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
