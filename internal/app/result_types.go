package app

import "invoice-engine/internal/core"

// InvoiceResult is returned by invoice lifecycle operations.
type InvoiceResult struct {
	Invoice core.InvoiceSnapshot `json:"invoice"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []core.InvoiceSnapshot `json:"invoices"`
}

// PaymentListResult is returned by ListPayments.
type PaymentListResult struct {
	InvoiceID      int                   `json:"invoice_id"`
	Attempts       []core.PaymentAttempt `json:"attempts"`
	Reconciliation core.Reconciliation   `json:"reconciliation"`
}

// PaymentOrderResult carries what the checkout widget needs to open the order.
type PaymentOrderResult struct {
	Order core.OrderResult `json:"order"`
}

// PaymentAttemptResult is returned by MarkPaymentProcessing and HandlePaymentCallback.
type PaymentAttemptResult struct {
	Attempt core.PaymentAttempt `json:"attempt"`
}
