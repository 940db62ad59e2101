package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusViewed  InvoiceStatus = "viewed"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	// InvoiceStatusOverdue is never stored; see EffectiveStatus.
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type AttemptStatus string

const (
	AttemptStatusCreated    AttemptStatus = "created"
	AttemptStatusProcessing AttemptStatus = "processing"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusFailed     AttemptStatus = "failed"
	AttemptStatusCancelled  AttemptStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusFailed || s == AttemptStatusCancelled
}

// Client is referenced by invoices but owned elsewhere.
type Client struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem is one billable row. Amount is derived (see LineAmount).
type LineItem struct {
	ID          int             `json:"id,omitempty"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	ItemTaxRate decimal.Decimal `json:"item_tax_rate"` // percent, 0..100
	Amount      decimal.Decimal `json:"amount"`
}

// Totals is the output of ComputeTotals. All values are rounded to 2 dp and
// Total == Subtotal + Tax - DiscountAmount holds exactly.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ItemTax        decimal.Decimal `json:"item_tax"`
	GlobalTax      decimal.Decimal `json:"global_tax"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Reconciliation is the fold of completed payments against an invoice total.
type Reconciliation struct {
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
}

// Invoice is the persisted invoice header plus its items.
// Status transitions:
//
//	draft → sent → viewed → partial → paid
//	sent/viewed → paid (single full payment)
//	overdue is derived at read time, never stored
type Invoice struct {
	ID               int             `json:"id"`
	InvoiceNumber    string          `json:"invoice_number"`
	ClientID         int             `json:"client_id"`
	ClientName       string          `json:"client_name"` // joined from clients
	OwnerID          int             `json:"owner_id"`
	Currency         string          `json:"currency"`
	Items            []LineItem      `json:"items"`
	GlobalTaxRate    decimal.Decimal `json:"global_tax_rate"`
	DiscountRate     decimal.Decimal `json:"discount_rate"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ItemTax          decimal.Decimal `json:"item_tax"`
	GlobalTax        decimal.Decimal `json:"global_tax"`
	Tax              decimal.Decimal `json:"tax"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Total            decimal.Decimal `json:"total"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           InvoiceStatus   `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          time.Time       `json:"due_date"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

// PaymentAttempt records one gateway order and its outcome.
type PaymentAttempt struct {
	ID               int             `json:"id"`
	InvoiceID        int             `json:"invoice_id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           AttemptStatus   `json:"status"`
	Signature        *string         `json:"-"` // audit only
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// LineItemInput is used when creating or editing a draft invoice.
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	ItemTaxRate decimal.Decimal
}

// InvoiceInput carries the editable fields of a draft invoice.
type InvoiceInput struct {
	ClientID      int
	OwnerID       int
	Currency      string
	Items         []LineItemInput
	GlobalTaxRate decimal.Decimal
	DiscountRate  decimal.Decimal
	IssueDate     time.Time
	DueDate       time.Time
}

// Callback is an inbound gateway notification (client redirect or webhook).
type Callback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	// RawAmount is optional; when set it must match the attempt amount.
	RawAmount *decimal.Decimal
}

// OrderResult is returned to the checkout client after an order is opened.
type OrderResult struct {
	AttemptID      int             `json:"attempt_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	GatewayKey     string          `json:"gateway_key"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// InvoiceSnapshot is the read-only view handed to presentation collaborators
// (UI, export, email). Status already has overdue applied.
type InvoiceSnapshot struct {
	ID               int             `json:"id"`
	InvoiceNumber    string          `json:"invoice_number"`
	ClientID         int             `json:"client_id"`
	ClientName       string          `json:"client_name"`
	Currency         string          `json:"currency"`
	Items            []LineItem      `json:"items"`
	GlobalTaxRate    decimal.Decimal `json:"global_tax_rate"`
	DiscountRate     decimal.Decimal `json:"discount_rate"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Total            decimal.Decimal `json:"total"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           InvoiceStatus   `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	IssueDate        string          `json:"issue_date"` // YYYY-MM-DD
	DueDate          string          `json:"due_date"`   // YYYY-MM-DD
	Version          int             `json:"version"`
}

// Snapshot renders the invoice as consumers see it at now.
func (i *Invoice) Snapshot(now time.Time) InvoiceSnapshot {
	items := i.Items
	if items == nil {
		items = []LineItem{}
	}
	return InvoiceSnapshot{
		ID:               i.ID,
		InvoiceNumber:    i.InvoiceNumber,
		ClientID:         i.ClientID,
		ClientName:       i.ClientName,
		Currency:         i.Currency,
		Items:            items,
		GlobalTaxRate:    i.GlobalTaxRate,
		DiscountRate:     i.DiscountRate,
		Subtotal:         i.Subtotal,
		Tax:              i.Tax,
		DiscountAmount:   i.DiscountAmount,
		Total:            i.Total,
		TotalPaid:        i.TotalPaid,
		RemainingBalance: i.RemainingBalance,
		Status:           i.EffectiveStatus(now),
		PaymentStatus:    i.PaymentStatus,
		IssueDate:        i.IssueDate.Format(dateLayout),
		DueDate:          i.DueDate.Format(dateLayout),
		Version:          i.Version,
	}
}

const dateLayout = "2006-01-02"
