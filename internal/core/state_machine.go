package core

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var payableStatuses = []InvoiceStatus{InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartial}

// CanEdit reports whether items, tax or discount may change.
func (i *Invoice) CanEdit() bool {
	return i.Status == InvoiceStatusDraft
}

// IsPayable reports whether new gateway orders may be opened.
func (i *Invoice) IsPayable() bool {
	return lo.Contains(payableStatuses, i.Status)
}

// ApplyTotals copies computed totals onto the invoice and re-derives the
// balance from what has already been paid.
func (i *Invoice) ApplyTotals(t Totals) {
	i.Subtotal = t.Subtotal
	i.ItemTax = t.ItemTax
	i.GlobalTax = t.GlobalTax
	i.Tax = t.Tax
	i.DiscountAmount = t.DiscountAmount
	i.Total = t.Total
	r := Reconcile(i.Total, []decimal.Decimal{i.TotalPaid})
	i.RemainingBalance = r.RemainingBalance
	i.PaymentStatus = r.PaymentStatus
}

// Send moves a draft to sent. The invoice must have at least one item and a
// resolved client.
func (i *Invoice) Send(clientResolved bool, now time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return &InvalidStateError{Op: "send", Status: i.Status}
	}
	if len(i.Items) == 0 {
		return newValidationError("items", 0, "an invoice needs at least one item before it can be sent")
	}
	if !clientResolved {
		return ErrClientNotFound
	}
	i.Status = InvoiceStatusSent
	i.SentAt = &now
	return nil
}

// MarkViewed records that the client opened the invoice. Only a sent invoice
// changes; later states are left alone.
func (i *Invoice) MarkViewed() error {
	switch i.Status {
	case InvoiceStatusDraft:
		return &InvalidStateError{Op: "view", Status: i.Status}
	case InvoiceStatusSent:
		i.Status = InvoiceStatusViewed
	}
	return nil
}

// ApplyReconciliation stores the reconciliation result and advances the
// lifecycle status. paid is terminal.
func (i *Invoice) ApplyReconciliation(r Reconciliation, now time.Time) error {
	if !i.IsPayable() {
		return &InvalidStateError{Op: "apply payment to", Status: i.Status}
	}
	i.TotalPaid = r.TotalPaid
	i.RemainingBalance = r.RemainingBalance
	i.PaymentStatus = r.PaymentStatus

	switch r.PaymentStatus {
	case PaymentStatusPaid:
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
	case PaymentStatusPartial:
		i.Status = InvoiceStatusPartial
	}
	return nil
}

// IsOverdue reports whether the invoice is past due with money outstanding.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if !i.IsPayable() || !i.RemainingBalance.IsPositive() {
		return false
	}
	return dueCutoff(i.DueDate).Before(now)
}

// EffectiveStatus is the status consumers should display: overdue is layered
// on top of the stored status at read time and disappears on its own once
// the invoice is paid.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// dueCutoff is midnight after the due date: an invoice is not overdue on its
// due date itself.
func dueCutoff(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location()).AddDate(0, 0, 1)
}
