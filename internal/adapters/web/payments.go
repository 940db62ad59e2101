package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"invoice-engine/internal/app"
)

// apiListPayments handles GET /api/invoices/{id}/payments.
func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListPayments(r.Context(), ownerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreatePaymentOrder handles POST /api/invoices/{id}/payments/orders.
//
// Response: {"gateway_order_id", "gateway_key", "amount", "currency", "attempt_id"}
func (h *Handler) apiCreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var req app.CreatePaymentOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.InvoiceID = id
	req.OwnerID = ownerID(r)

	result, err := h.svc.CreatePaymentOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Order)
}

// apiPaymentProcessing handles POST /api/payments/{orderID}/processing.
func (h *Handler) apiPaymentProcessing(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.MarkPaymentProcessing(r.Context(), ownerID(r), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiPaymentCallback handles POST /api/payments/callback and /api/payments/webhook.
// Both carry {gateway_order_id, gateway_payment_id, signature}; the signature
// is the only credential.
func (h *Handler) apiPaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req app.PaymentCallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		writeError(w, r, "gateway_order_id, gateway_payment_id and signature are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.HandlePaymentCallback(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
