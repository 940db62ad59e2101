package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

// InvoiceService owns the invoice lifecycle up to the point money moves.
// Payment state changes go through PaymentService.
type InvoiceService interface {
	CreateDraft(ctx context.Context, in InvoiceInput) (*Invoice, error)
	// UpdateDraft replaces items, rates and dates and recomputes totals.
	// Anything but a draft is rejected with *InvalidStateError.
	UpdateDraft(ctx context.Context, invoiceID int, in InvoiceInput) (*Invoice, error)
	Send(ctx context.Context, invoiceID int) (*Invoice, error)
	MarkViewed(ctx context.Context, invoiceID int) (*Invoice, error)

	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	// ListInvoices returns the owner's invoices newest first. A non-nil status
	// filters on the effective status, so "overdue" works as a filter too.
	ListInvoices(ctx context.Context, ownerID int, status *InvoiceStatus) ([]Invoice, error)
}

// InvoiceOptions are the numbering and defaulting knobs of InvoiceService.
type InvoiceOptions struct {
	NumberPrefix    string
	DefaultDueDays  int
	DefaultCurrency string
}

type invoiceService struct {
	pool *pgxpool.Pool
	opts InvoiceOptions
	now  func() time.Time
}

func NewInvoiceService(pool *pgxpool.Pool, opts InvoiceOptions) InvoiceService {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "INV"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	return &invoiceService{pool: pool, opts: opts, now: time.Now}
}

// normalize fills defaults and validates the header fields of in.
func (s *invoiceService) normalize(in *InvoiceInput) error {
	if in.ClientID <= 0 {
		return newValidationError("client_id", in.ClientID, "is required")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = s.opts.DefaultCurrency
	}
	if len(in.Currency) != 3 {
		return newValidationError("currency", in.Currency, "must be a 3-letter ISO code")
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = s.now()
	}
	in.IssueDate = truncateDate(in.IssueDate)
	if in.DueDate.IsZero() {
		in.DueDate = in.IssueDate.AddDate(0, 0, s.opts.DefaultDueDays)
	}
	in.DueDate = truncateDate(in.DueDate)
	if in.DueDate.Before(in.IssueDate) {
		return newValidationError("due_date", in.DueDate.Format(dateLayout), "cannot be before issue date")
	}
	return nil
}

// prepare validates in and derives line items and totals from it.
func (s *invoiceService) prepare(in *InvoiceInput) ([]LineItem, Totals, error) {
	if err := s.normalize(in); err != nil {
		return nil, Totals{}, err
	}
	items, err := buildLineItems(in.Items)
	if err != nil {
		return nil, Totals{}, err
	}
	totals, err := ComputeTotals(in.Items, in.GlobalTaxRate, in.DiscountRate)
	if err != nil {
		return nil, Totals{}, err
	}
	return items, totals, nil
}

func (s *invoiceService) CreateDraft(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	items, totals, err := s.prepare(&in)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := clientExists(ctx, tx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClientNotFound
	}

	number, err := nextInvoiceNumber(ctx, tx, s.opts.NumberPrefix, in.IssueDate.Year())
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		InvoiceNumber: number,
		ClientID:      in.ClientID,
		OwnerID:       in.OwnerID,
		Currency:      in.Currency,
		Items:         items,
		GlobalTaxRate: in.GlobalTaxRate,
		DiscountRate:  in.DiscountRate,
		Status:        InvoiceStatusDraft,
		IssueDate:     in.IssueDate,
		DueDate:       in.DueDate,
	}
	inv.ApplyTotals(totals)

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, client_id, owner_id, currency, global_tax_rate, discount_rate,
		                      subtotal, item_tax, global_tax, tax, discount_amount, total,
		                      total_paid, remaining_balance, status, payment_status, issue_date, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, version, created_at
	`, inv.InvoiceNumber, inv.ClientID, inv.OwnerID, inv.Currency, inv.GlobalTaxRate, inv.DiscountRate,
		inv.Subtotal, inv.ItemTax, inv.GlobalTax, inv.Tax, inv.DiscountAmount, inv.Total,
		inv.TotalPaid, inv.RemainingBalance, string(inv.Status), string(inv.PaymentStatus),
		inv.IssueDate, inv.DueDate,
	).Scan(&inv.ID, &inv.Version, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := replaceItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return s.GetInvoice(ctx, inv.ID)
}

func (s *invoiceService) UpdateDraft(ctx context.Context, invoiceID int, in InvoiceInput) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := fetchInvoice(ctx, tx, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if !inv.CanEdit() {
		return nil, &InvalidStateError{Op: "edit", Status: inv.Status}
	}

	if in.ClientID == 0 {
		in.ClientID = inv.ClientID
	}
	items, totals, err := s.prepare(&in)
	if err != nil {
		return nil, err
	}
	if in.ClientID != inv.ClientID {
		ok, err := clientExists(ctx, tx, in.ClientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrClientNotFound
		}
	}

	inv.ClientID = in.ClientID
	inv.Currency = in.Currency
	inv.Items = items
	inv.GlobalTaxRate = in.GlobalTaxRate
	inv.DiscountRate = in.DiscountRate
	inv.IssueDate = in.IssueDate
	inv.DueDate = in.DueDate
	inv.ApplyTotals(totals)

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET client_id = $1, currency = $2, global_tax_rate = $3, discount_rate = $4,
		    subtotal = $5, item_tax = $6, global_tax = $7, tax = $8, discount_amount = $9, total = $10,
		    remaining_balance = $11, payment_status = $12, issue_date = $13, due_date = $14,
		    version = version + 1
		WHERE id = $15
	`, inv.ClientID, inv.Currency, inv.GlobalTaxRate, inv.DiscountRate,
		inv.Subtotal, inv.ItemTax, inv.GlobalTax, inv.Tax, inv.DiscountAmount, inv.Total,
		inv.RemainingBalance, string(inv.PaymentStatus), inv.IssueDate, inv.DueDate, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}

	if err := replaceItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return s.GetInvoice(ctx, inv.ID)
}

func (s *invoiceService) Send(ctx context.Context, invoiceID int) (*Invoice, error) {
	return s.transition(ctx, invoiceID, func(ctx context.Context, q pgxQuerier, inv *Invoice) error {
		ok, err := clientExists(ctx, q, inv.ClientID)
		if err != nil {
			return err
		}
		return inv.Send(ok, s.now())
	})
}

func (s *invoiceService) MarkViewed(ctx context.Context, invoiceID int) (*Invoice, error) {
	return s.transition(ctx, invoiceID, func(_ context.Context, _ pgxQuerier, inv *Invoice) error {
		return inv.MarkViewed()
	})
}

// transition applies fn to the locked invoice and saves it if fn changed the
// status.
func (s *invoiceService) transition(ctx context.Context, invoiceID int, fn func(context.Context, pgxQuerier, *Invoice) error) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := fetchInvoice(ctx, tx, invoiceID, true)
	if err != nil {
		return nil, err
	}
	before := inv.Status
	if err := fn(ctx, tx, inv); err != nil {
		return nil, err
	}
	if inv.Status == before {
		return inv, nil
	}

	if err := saveInvoiceState(ctx, tx, inv); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	return fetchInvoice(ctx, s.pool, invoiceID, false)
}

func (s *invoiceService) ListInvoices(ctx context.Context, ownerID int, status *InvoiceStatus) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, invoiceSelect+" WHERE i.owner_id = $1 ORDER BY i.id DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	if status == nil {
		return invoices, nil
	}
	now := s.now()
	return lo.Filter(invoices, func(inv Invoice, _ int) bool {
		return inv.EffectiveStatus(now) == *status
	}), nil
}

// truncateDate drops the time of day, keeping the calendar date in UTC.
func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
