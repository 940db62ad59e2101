package app

import (
	"context"
	"time"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// ownerID is the authenticated user. Invoices owned by someone else are
// reported as core.ErrInvoiceNotFound. Operator tooling passes 0 to skip the
// ownership check.
type ApplicationService interface {
	// CreateInvoice creates a draft with a freshly allocated invoice number.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error)

	// UpdateInvoice replaces the editable fields of a draft and recomputes its totals.
	UpdateInvoice(ctx context.Context, req UpdateInvoiceRequest) (*InvoiceResult, error)

	// GetInvoice returns the invoice snapshot, with overdue applied.
	GetInvoice(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error)

	// ListInvoices returns the owner's invoices. status may be empty, a stored
	// status, or "overdue".
	ListInvoices(ctx context.Context, ownerID int, status string) (*InvoiceListResult, error)

	SendInvoice(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error)
	MarkInvoiceViewed(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error)

	// ListPayments returns every payment attempt of an invoice, oldest first.
	ListPayments(ctx context.Context, ownerID, invoiceID int) (*PaymentListResult, error)

	// CreatePaymentOrder opens a gateway order for part or all of the remaining balance.
	CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrderResult, error)

	// MarkPaymentProcessing records that the payer opened the gateway checkout.
	MarkPaymentProcessing(ctx context.Context, ownerID int, gatewayOrderID string) (*PaymentAttemptResult, error)

	// HandlePaymentCallback applies a gateway callback or webhook. It is
	// unauthenticated: the gateway signature is the only credential.
	HandlePaymentCallback(ctx context.Context, req PaymentCallbackRequest) (*PaymentAttemptResult, error)

	// SweepStaleAttempts cancels open payment attempts older than ttl.
	SweepStaleAttempts(ctx context.Context, ttl time.Duration) (int64, error)
}
