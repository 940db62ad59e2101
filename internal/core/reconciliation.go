package core

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Reconcile folds completed payment amounts against total. Callers pass every
// completed amount, never a delta.
func Reconcile(total decimal.Decimal, completed []decimal.Decimal) Reconciliation {
	paid := lo.Reduce(completed, func(sum decimal.Decimal, amt decimal.Decimal, _ int) decimal.Decimal {
		return sum.Add(amt)
	}, decimal.Zero)

	remaining := decimal.Max(total.Sub(paid), decimal.Zero)

	status := PaymentStatusPartial
	switch {
	case paid.IsZero():
		status = PaymentStatusUnpaid
	case remaining.IsZero():
		status = PaymentStatusPaid
	}

	return Reconciliation{
		TotalPaid:        paid,
		RemainingBalance: remaining,
		PaymentStatus:    status,
	}
}

// completedAmounts picks the amounts of completed attempts.
func completedAmounts(attempts []PaymentAttempt) []decimal.Decimal {
	return lo.FilterMap(attempts, func(a PaymentAttempt, _ int) (decimal.Decimal, bool) {
		return a.Amount, a.Status == AttemptStatusCompleted
	})
}
