package core_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-engine/internal/core"
)

func sentInvoice(total string) *core.Invoice {
	inv := &core.Invoice{
		ID:            1,
		InvoiceNumber: "INV-2026-00001",
		Currency:      "INR",
		Status:        core.InvoiceStatusSent,
		Items:         []core.LineItem{{LineNumber: 1, Description: "Consulting"}},
		DueDate:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	inv.ApplyTotals(core.Totals{Subtotal: d(total), Total: d(total)})
	return inv
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name          string
		completed     []string
		wantPaid      string
		wantRemaining string
		wantStatus    core.PaymentStatus
	}{
		{"nothing paid", nil, "0", "1180", core.PaymentStatusUnpaid},
		{"full payment", []string{"1180"}, "1180", "0", core.PaymentStatusPaid},
		{"partial payment", []string{"500"}, "500", "680", core.PaymentStatusPartial},
		{"parts summing to total", []string{"500", "680"}, "1180", "0", core.PaymentStatusPaid},
		{"overpayment clamps balance", []string{"1000", "500"}, "1500", "0", core.PaymentStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := make([]decimal.Decimal, len(tt.completed))
			for i, a := range tt.completed {
				amounts[i] = d(a)
			}
			r := core.Reconcile(d("1180"), amounts)
			assert.True(t, r.TotalPaid.Equal(d(tt.wantPaid)), "paid %s", r.TotalPaid)
			assert.True(t, r.RemainingBalance.Equal(d(tt.wantRemaining)), "remaining %s", r.RemainingBalance)
			assert.Equal(t, tt.wantStatus, r.PaymentStatus)
		})
	}
}

func TestInvoice_ApplyReconciliation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full payment settles", func(t *testing.T) {
		inv := sentInvoice("1180")
		require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("1180")}), now))
		assert.Equal(t, core.InvoiceStatusPaid, inv.Status)
		assert.Equal(t, core.PaymentStatusPaid, inv.PaymentStatus)
		assert.True(t, inv.RemainingBalance.IsZero())
		require.NotNil(t, inv.PaidAt)
	})

	t.Run("partial then rest", func(t *testing.T) {
		inv := sentInvoice("1180")
		require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("500")}), now))
		assert.Equal(t, core.InvoiceStatusPartial, inv.Status)
		assert.True(t, inv.RemainingBalance.Equal(d("680")))

		require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("500"), d("680")}), now))
		assert.Equal(t, core.InvoiceStatusPaid, inv.Status)
	})

	t.Run("paid is terminal", func(t *testing.T) {
		inv := sentInvoice("100")
		require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("100")}), now))

		err := inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("100"), d("1")}), now)
		var se *core.InvalidStateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, core.InvoiceStatusPaid, se.Status)
		assert.False(t, inv.CanEdit())
		assert.False(t, inv.IsPayable())
	})

	t.Run("draft cannot take payments", func(t *testing.T) {
		inv := sentInvoice("100")
		inv.Status = core.InvoiceStatusDraft
		var se *core.InvalidStateError
		assert.ErrorAs(t, inv.ApplyReconciliation(core.Reconciliation{}, now), &se)
	})
}

func TestInvoice_Send(t *testing.T) {
	now := time.Now()

	inv := sentInvoice("100")
	inv.Status = core.InvoiceStatusDraft
	require.NoError(t, inv.Send(true, now))
	assert.Equal(t, core.InvoiceStatusSent, inv.Status)
	require.NotNil(t, inv.SentAt)

	var se *core.InvalidStateError
	assert.ErrorAs(t, inv.Send(true, now), &se, "sending twice")

	empty := sentInvoice("0")
	empty.Status = core.InvoiceStatusDraft
	empty.Items = nil
	var ve *core.ValidationError
	assert.ErrorAs(t, empty.Send(true, now), &ve)

	orphan := sentInvoice("100")
	orphan.Status = core.InvoiceStatusDraft
	assert.ErrorIs(t, orphan.Send(false, now), core.ErrClientNotFound)
}

func TestInvoice_MarkViewed(t *testing.T) {
	inv := sentInvoice("100")
	require.NoError(t, inv.MarkViewed())
	assert.Equal(t, core.InvoiceStatusViewed, inv.Status)

	inv.Status = core.InvoiceStatusPartial
	require.NoError(t, inv.MarkViewed())
	assert.Equal(t, core.InvoiceStatusPartial, inv.Status)

	inv.Status = core.InvoiceStatusDraft
	var se *core.InvalidStateError
	assert.ErrorAs(t, inv.MarkViewed(), &se)
}

func TestInvoice_EffectiveStatus(t *testing.T) {
	afterDue := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	inv := sentInvoice("1180")
	require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("500")}), afterDue))
	require.True(t, inv.RemainingBalance.Equal(d("680")))

	assert.Equal(t, core.InvoiceStatusOverdue, inv.EffectiveStatus(afterDue))
	assert.Equal(t, core.InvoiceStatusOverdue, inv.Snapshot(afterDue).Status)

	onDueDate := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, core.InvoiceStatusPartial, inv.EffectiveStatus(onDueDate))

	// Settling clears overdue.
	require.NoError(t, inv.ApplyReconciliation(core.Reconcile(inv.Total, []decimal.Decimal{d("500"), d("680")}), afterDue))
	assert.Equal(t, core.InvoiceStatusPaid, inv.EffectiveStatus(afterDue))

	draft := sentInvoice("100")
	draft.Status = core.InvoiceStatusDraft
	assert.Equal(t, core.InvoiceStatusDraft, draft.EffectiveStatus(afterDue))
}

func TestInvoice_Snapshot(t *testing.T) {
	inv := sentInvoice("1180")
	inv.Items = nil
	snap := inv.Snapshot(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "INV-2026-00001", snap.InvoiceNumber)
	assert.Equal(t, "2026-03-31", snap.DueDate)
	assert.NotNil(t, snap.Items)
	assert.Equal(t, core.InvoiceStatusSent, snap.Status)
	assert.True(t, snap.RemainingBalance.Equal(d("1180")))
}
