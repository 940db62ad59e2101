package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoice-engine/internal/gateway"
	"invoice-engine/internal/logger"
)

// PaymentService opens gateway orders and records their outcomes. Every state
// change runs in one transaction holding the invoice row lock, so work on the
// same invoice is serialized while different invoices proceed in parallel.
type PaymentService interface {
	// CreateOrder opens a gateway order for amount against the invoice's
	// remaining balance and records a created attempt.
	CreateOrder(ctx context.Context, invoiceID int, amount decimal.Decimal, currency string) (*OrderResult, error)
	// MarkProcessing notes that the payer opened the gateway checkout.
	MarkProcessing(ctx context.Context, gatewayOrderID string) (*PaymentAttempt, error)
	// RecordOutcome applies a gateway callback. Replaying the same callback
	// returns the completed attempt without changing anything.
	RecordOutcome(ctx context.Context, cb Callback) (*PaymentAttempt, error)

	Reconcile(ctx context.Context, invoiceID int) (*Reconciliation, error)
	GetAttempt(ctx context.Context, gatewayOrderID string) (*PaymentAttempt, error)
	ListAttempts(ctx context.Context, invoiceID int) ([]PaymentAttempt, error)
	// CancelStaleAttempts cancels created/processing attempts opened before cutoff.
	CancelStaleAttempts(ctx context.Context, cutoff time.Time) (int64, error)
}

type PaymentOptions struct {
	GatewayTimeout time.Duration
}

type paymentService struct {
	pool    *pgxpool.Pool
	gateway gateway.Gateway
	events  *EventBus
	opts    PaymentOptions
	log     zerolog.Logger
	now     func() time.Time
}

func NewPaymentService(pool *pgxpool.Pool, gw gateway.Gateway, events *EventBus, opts PaymentOptions) PaymentService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	return &paymentService{
		pool:    pool,
		gateway: gw,
		events:  events,
		opts:    opts,
		log:     logger.WithComponent("payments"),
		now:     time.Now,
	}
}

const attemptSelect = `
	SELECT id, invoice_id, gateway_order_id, gateway_payment_id, amount, currency, status,
	       signature, created_at, updated_at, completed_at
	FROM payment_attempts
`

func scanAttempt(row rowScanner) (*PaymentAttempt, error) {
	var a PaymentAttempt
	err := row.Scan(&a.ID, &a.InvoiceID, &a.GatewayOrderID, &a.GatewayPaymentID, &a.Amount, &a.Currency,
		&a.Status, &a.Signature, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// fetchAttempt returns ErrUnknownOrFinalizedPayment when no attempt matches.
func fetchAttempt(ctx context.Context, q pgxQuerier, where string, args ...any) (*PaymentAttempt, error) {
	a, err := scanAttempt(q.QueryRow(ctx, attemptSelect+" WHERE "+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownOrFinalizedPayment
		}
		return nil, fmt.Errorf("failed to read payment attempt: %w", err)
	}
	return a, nil
}

func (s *paymentService) CreateOrder(ctx context.Context, invoiceID int, amount decimal.Decimal, currency string) (*OrderResult, error) {
	if !amount.IsPositive() {
		return nil, newValidationError("amount", amount.String(), "must be greater than 0")
	}
	if !amount.Equal(roundMoney(amount)) {
		return nil, newValidationError("amount", amount.String(), "must have at most 2 decimal places")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := fetchInvoice(ctx, tx, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if !inv.IsPayable() {
		return nil, &InvalidStateError{Op: "pay", Status: inv.Status}
	}
	if !inv.RemainingBalance.IsPositive() {
		return nil, newValidationError("amount", amount.String(), "invoice has no outstanding balance")
	}
	if amount.GreaterThan(inv.RemainingBalance) {
		return nil, newValidationError("amount", amount.String(),
			fmt.Sprintf("exceeds remaining balance %s", inv.RemainingBalance.StringFixed(2)))
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = inv.Currency
	}
	if currency != inv.Currency {
		return nil, newValidationError("currency", currency, fmt.Sprintf("must match invoice currency %s", inv.Currency))
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	order, err := s.gateway.CreateOrder(gctx, gateway.OrderRequest{
		Receipt:  inv.InvoiceNumber,
		Amount:   amount,
		Currency: currency,
		Notes:    map[string]string{"invoice_id": strconv.Itoa(inv.ID)},
	})
	cancel()
	if err == nil && (!order.Amount.Equal(amount) || !strings.EqualFold(order.Currency, currency)) {
		err = fmt.Errorf("%w: order %s is for %s %s", gateway.ErrOrderMismatch, order.ID, order.Amount.StringFixed(2), order.Currency)
	}
	if err != nil {
		s.log.Warn().Err(err).Int("invoice_id", inv.ID).Str("gateway", s.gateway.Name()).Msg("gateway order creation failed")
		return nil, &GatewayUnavailableError{Err: err}
	}

	attempt := PaymentAttempt{
		InvoiceID:      inv.ID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       currency,
		Status:         AttemptStatusCreated,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO payment_attempts (invoice_id, gateway_order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, attempt.InvoiceID, attempt.GatewayOrderID, attempt.Amount, attempt.Currency, string(attempt.Status)).Scan(
		&attempt.ID, &attempt.CreatedAt, &attempt.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().
		Int("invoice_id", inv.ID).
		Str("gateway_order_id", order.ID).
		Str("amount", amount.StringFixed(2)).
		Msg("payment order created")

	return &OrderResult{
		AttemptID:      attempt.ID,
		GatewayOrderID: order.ID,
		GatewayKey:     s.gateway.KeyID(),
		Amount:         amount,
		Currency:       currency,
	}, nil
}

func (s *paymentService) MarkProcessing(ctx context.Context, gatewayOrderID string) (*PaymentAttempt, error) {
	a, err := scanAttempt(s.pool.QueryRow(ctx, `
		UPDATE payment_attempts
		SET status = $1, updated_at = NOW()
		WHERE gateway_order_id = $2 AND status = $3
		RETURNING id, invoice_id, gateway_order_id, gateway_payment_id, amount, currency, status,
		          signature, created_at, updated_at, completed_at
	`, string(AttemptStatusProcessing), gatewayOrderID, string(AttemptStatusCreated)))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark attempt processing: %w", err)
	}

	// Nothing moved: either unknown, already processing or already final.
	a, err = s.GetAttempt(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if a.Status != AttemptStatusProcessing {
		return nil, ErrUnknownOrFinalizedPayment
	}
	return a, nil
}

func (s *paymentService) RecordOutcome(ctx context.Context, cb Callback) (*PaymentAttempt, error) {
	if cb.GatewayOrderID == "" {
		return nil, ErrUnknownOrFinalizedPayment
	}

	attempt, events, err := s.recordOutcome(ctx, cb)
	if err != nil {
		if isUniqueViolation(err) {
			// Another delivery completed this payment id first; hand back its record.
			return fetchAttempt(ctx, s.pool, "gateway_payment_id = $1 AND status = $2",
				cb.GatewayPaymentID, string(AttemptStatusCompleted))
		}
		return nil, err
	}

	s.events.Publish(ctx, events...)
	return attempt, nil
}

func (s *paymentService) recordOutcome(ctx context.Context, cb Callback) (*PaymentAttempt, []Event, error) {
	// 1. Resolve the owning invoice without locks
	var invoiceID int
	err := s.pool.QueryRow(ctx, "SELECT invoice_id FROM payment_attempts WHERE gateway_order_id = $1", cb.GatewayOrderID).Scan(&invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Str("gateway_order_id", cb.GatewayOrderID).Msg("callback for unknown order")
			return nil, nil, ErrUnknownOrFinalizedPayment
		}
		return nil, nil, fmt.Errorf("failed to resolve payment attempt: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 2. Lock the invoice, then the attempt
	inv, err := fetchInvoice(ctx, tx, invoiceID, true)
	if err != nil {
		return nil, nil, err
	}
	attempt, err := fetchAttempt(ctx, tx, "gateway_order_id = $1 FOR UPDATE", cb.GatewayOrderID)
	if err != nil {
		return nil, nil, err
	}

	// 3. Replays and finalized attempts
	if attempt.Status == AttemptStatusCompleted {
		if attempt.GatewayPaymentID != nil && *attempt.GatewayPaymentID == cb.GatewayPaymentID {
			return attempt, nil, nil
		}
		return nil, nil, ErrUnknownOrFinalizedPayment
	}
	if attempt.Status.IsTerminal() {
		return nil, nil, ErrUnknownOrFinalizedPayment
	}
	if cb.GatewayPaymentID != "" {
		existing, err := fetchAttempt(ctx, tx, "gateway_payment_id = $1 AND status = $2",
			cb.GatewayPaymentID, string(AttemptStatusCompleted))
		if err == nil {
			return existing, nil, nil
		}
		if !errors.Is(err, ErrUnknownOrFinalizedPayment) {
			return nil, nil, err
		}
	}

	now := s.now()

	// 4. Verify before any money-affecting change
	if !s.verify(cb, attempt) {
		if err := s.finishAttempt(ctx, tx, attempt, AttemptStatusFailed, cb, nil); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.log.Warn().
			Bool("security_event", true).
			Int("invoice_id", inv.ID).
			Str("gateway_order_id", cb.GatewayOrderID).
			Str("gateway_payment_id", cb.GatewayPaymentID).
			Msg("payment signature verification failed")
		return nil, nil, ErrSignatureMismatch
	}

	// 5. Complete the attempt and reconcile from the ledger
	if err := s.finishAttempt(ctx, tx, attempt, AttemptStatusCompleted, cb, &now); err != nil {
		return nil, nil, err
	}

	amounts, err := completedAmountsFor(ctx, tx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	r := Reconcile(inv.Total, amounts)
	if r.TotalPaid.GreaterThan(inv.Total) {
		s.log.Warn().
			Int("invoice_id", inv.ID).
			Str("total", inv.Total.StringFixed(2)).
			Str("total_paid", r.TotalPaid.StringFixed(2)).
			Msg("invoice overpaid by concurrent payments")
	}

	settled := false
	if inv.Status == InvoiceStatusPaid {
		// Money already captured on a settled invoice: record it, keep status.
		inv.TotalPaid = r.TotalPaid
		inv.RemainingBalance = r.RemainingBalance
		inv.PaymentStatus = r.PaymentStatus
	} else {
		if err := inv.ApplyReconciliation(r, now); err != nil {
			return nil, nil, err
		}
		settled = inv.Status == InvoiceStatusPaid
	}

	if err := saveInvoiceState(ctx, tx, inv); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().
		Int("invoice_id", inv.ID).
		Str("gateway_order_id", attempt.GatewayOrderID).
		Str("amount", attempt.Amount.StringFixed(2)).
		Str("payment_status", string(inv.PaymentStatus)).
		Msg("payment completed")

	return attempt, paymentEvents(inv.ID, attempt.Amount, settled), nil
}

// verify checks the callback signature and, when the gateway echoed an
// amount, that it matches what the attempt was opened for.
func (s *paymentService) verify(cb Callback, a *PaymentAttempt) bool {
	if !s.gateway.Verify(cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		return false
	}
	return cb.RawAmount == nil || cb.RawAmount.Equal(a.Amount)
}

func (s *paymentService) finishAttempt(ctx context.Context, tx pgx.Tx, a *PaymentAttempt, status AttemptStatus, cb Callback, completedAt *time.Time) error {
	paymentID := nullable(cb.GatewayPaymentID)
	signature := nullable(cb.Signature)
	err := tx.QueryRow(ctx, `
		UPDATE payment_attempts
		SET status = $1, gateway_payment_id = $2, signature = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`, string(status), paymentID, signature, completedAt, a.ID).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to mark attempt %s %s: %w", a.GatewayOrderID, status, err)
	}
	a.Status = status
	a.GatewayPaymentID = paymentID
	a.Signature = signature
	a.CompletedAt = completedAt
	return nil
}

func completedAmountsFor(ctx context.Context, q pgxQuerier, invoiceID int) ([]decimal.Decimal, error) {
	attempts, err := listAttempts(ctx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	return completedAmounts(attempts), nil
}

func listAttempts(ctx context.Context, q pgxQuerier, invoiceID int) ([]PaymentAttempt, error) {
	rows, err := q.Query(ctx, attemptSelect+" WHERE invoice_id = $1 ORDER BY id", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment attempts: %w", err)
	}
	return attempts, nil
}

func (s *paymentService) Reconcile(ctx context.Context, invoiceID int) (*Reconciliation, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, "SELECT total FROM invoices WHERE id = $1", invoiceID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to read invoice total: %w", err)
	}
	amounts, err := completedAmountsFor(ctx, s.pool, invoiceID)
	if err != nil {
		return nil, err
	}
	r := Reconcile(total, amounts)
	return &r, nil
}

func (s *paymentService) GetAttempt(ctx context.Context, gatewayOrderID string) (*PaymentAttempt, error) {
	return fetchAttempt(ctx, s.pool, "gateway_order_id = $1", gatewayOrderID)
}

func (s *paymentService) ListAttempts(ctx context.Context, invoiceID int) ([]PaymentAttempt, error) {
	return listAttempts(ctx, s.pool, invoiceID)
}

func (s *paymentService) CancelStaleAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payment_attempts
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND created_at < $4
	`, string(AttemptStatusCancelled), string(AttemptStatusCreated), string(AttemptStatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale attempts: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.log.Info().Int64("cancelled", n).Time("cutoff", cutoff).Msg("stale payment attempts cancelled")
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
