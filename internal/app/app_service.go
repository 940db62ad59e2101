package app

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"invoice-engine/internal/core"
)

const dateLayout = "2006-01-02"

type appService struct {
	invoices core.InvoiceService
	payments core.PaymentService
	now      func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(invoices core.InvoiceService, payments core.PaymentService) ApplicationService {
	return &appService{
		invoices: invoices,
		payments: payments,
		now:      time.Now,
	}
}

// ownedInvoice loads the invoice and hides it from anyone but its owner.
func (s *appService) ownedInvoice(ctx context.Context, ownerID, invoiceID int) (*core.Invoice, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if ownerID != 0 && inv.OwnerID != ownerID {
		return nil, core.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *appService) snapshot(inv *core.Invoice) *InvoiceResult {
	return &InvoiceResult{Invoice: inv.Snapshot(s.now())}
}

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error) {
	in, err := invoiceInput(req)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.CreateDraft(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.snapshot(inv), nil
}

func (s *appService) UpdateInvoice(ctx context.Context, req UpdateInvoiceRequest) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, req.OwnerID, req.InvoiceID); err != nil {
		return nil, err
	}
	in, err := invoiceInput(req.CreateInvoiceRequest)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.UpdateDraft(ctx, req.InvoiceID, in)
	if err != nil {
		return nil, err
	}
	return s.snapshot(inv), nil
}

func (s *appService) GetInvoice(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error) {
	inv, err := s.ownedInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(inv), nil
}

func (s *appService) ListInvoices(ctx context.Context, ownerID int, status string) (*InvoiceListResult, error) {
	var filter *core.InvoiceStatus
	if status != "" {
		st := core.InvoiceStatus(strings.ToLower(status))
		if !lo.Contains(listableStatuses, st) {
			return nil, &core.ValidationError{Field: "status", Value: status, Message: "unknown invoice status"}
		}
		filter = &st
	}

	invoices, err := s.invoices.ListInvoices(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &InvoiceListResult{
		Invoices: lo.Map(invoices, func(inv core.Invoice, _ int) core.InvoiceSnapshot {
			return inv.Snapshot(now)
		}),
	}, nil
}

var listableStatuses = []core.InvoiceStatus{
	core.InvoiceStatusDraft,
	core.InvoiceStatusSent,
	core.InvoiceStatusViewed,
	core.InvoiceStatusPartial,
	core.InvoiceStatusPaid,
	core.InvoiceStatusOverdue,
}

func (s *appService) SendInvoice(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	inv, err := s.invoices.Send(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(inv), nil
}

func (s *appService) MarkInvoiceViewed(ctx context.Context, ownerID, invoiceID int) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	inv, err := s.invoices.MarkViewed(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(inv), nil
}

func (s *appService) ListPayments(ctx context.Context, ownerID, invoiceID int) (*PaymentListResult, error) {
	if _, err := s.ownedInvoice(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	attempts, err := s.payments.ListAttempts(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	r, err := s.payments.Reconcile(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []core.PaymentAttempt{}
	}
	return &PaymentListResult{InvoiceID: invoiceID, Attempts: attempts, Reconciliation: *r}, nil
}

func (s *appService) CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrderResult, error) {
	if _, err := s.ownedInvoice(ctx, req.OwnerID, req.InvoiceID); err != nil {
		return nil, err
	}
	order, err := s.payments.CreateOrder(ctx, req.InvoiceID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	return &PaymentOrderResult{Order: *order}, nil
}

func (s *appService) MarkPaymentProcessing(ctx context.Context, ownerID int, gatewayOrderID string) (*PaymentAttemptResult, error) {
	attempt, err := s.payments.GetAttempt(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedInvoice(ctx, ownerID, attempt.InvoiceID); err != nil {
		return nil, err
	}
	attempt, err = s.payments.MarkProcessing(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return &PaymentAttemptResult{Attempt: *attempt}, nil
}

func (s *appService) HandlePaymentCallback(ctx context.Context, req PaymentCallbackRequest) (*PaymentAttemptResult, error) {
	attempt, err := s.payments.RecordOutcome(ctx, core.Callback{
		GatewayOrderID:   strings.TrimSpace(req.GatewayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.GatewayPaymentID),
		Signature:        strings.TrimSpace(req.Signature),
		RawAmount:        req.Amount,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentAttemptResult{Attempt: *attempt}, nil
}

func (s *appService) SweepStaleAttempts(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.payments.CancelStaleAttempts(ctx, s.now().Add(-ttl))
}

// invoiceInput converts a request into core input, parsing the optional dates.
func invoiceInput(req CreateInvoiceRequest) (core.InvoiceInput, error) {
	in := core.InvoiceInput{
		ClientID:      req.ClientID,
		OwnerID:       req.OwnerID,
		Currency:      req.Currency,
		GlobalTaxRate: req.GlobalTaxRate,
		DiscountRate:  req.DiscountRate,
		Items: lo.Map(req.Items, func(it LineItemRequest, _ int) core.LineItemInput {
			return core.LineItemInput{
				Description: strings.TrimSpace(it.Description),
				Quantity:    it.Quantity,
				Rate:        it.Rate,
				ItemTaxRate: it.ItemTaxRate,
			}
		}),
	}

	var err error
	if in.IssueDate, err = parseDate("issue_date", req.IssueDate); err != nil {
		return in, err
	}
	if in.DueDate, err = parseDate("due_date", req.DueDate); err != nil {
		return in, err
	}
	return in, nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Value: v, Message: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}
