package app

import (
	"github.com/shopspring/decimal"
)

// LineItemRequest is a single line within a create or update request.
type LineItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	ItemTaxRate decimal.Decimal `json:"item_tax_rate"`
}

// CreateInvoiceRequest is the input for creating a draft invoice.
type CreateInvoiceRequest struct {
	OwnerID       int               `json:"-"`
	ClientID      int               `json:"client_id"`
	Currency      string            `json:"currency"`
	IssueDate     string            `json:"issue_date"` // YYYY-MM-DD, defaults to today
	DueDate       string            `json:"due_date"`   // YYYY-MM-DD, defaults to issue date + DEFAULT_DUE_DAYS
	GlobalTaxRate decimal.Decimal   `json:"global_tax_rate"`
	DiscountRate  decimal.Decimal   `json:"discount_rate"`
	Items         []LineItemRequest `json:"items"`
}

// UpdateInvoiceRequest replaces the editable fields of a draft.
// A zero ClientID keeps the current client.
type UpdateInvoiceRequest struct {
	InvoiceID int `json:"-"`
	CreateInvoiceRequest
}

// CreatePaymentOrderRequest asks the gateway for an order against an invoice.
type CreatePaymentOrderRequest struct {
	OwnerID   int             `json:"-"`
	InvoiceID int             `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"` // defaults to the invoice currency
}

// PaymentCallbackRequest is what the gateway posts back after checkout.
type PaymentCallbackRequest struct {
	GatewayOrderID   string           `json:"gateway_order_id"`
	GatewayPaymentID string           `json:"gateway_payment_id"`
	Signature        string           `json:"signature"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
}
