package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const invoiceSelect = `
	SELECT i.id, i.invoice_number, i.client_id, c.name, i.owner_id, i.currency,
	       i.global_tax_rate, i.discount_rate,
	       i.subtotal, i.item_tax, i.global_tax, i.tax, i.discount_amount, i.total,
	       i.total_paid, i.remaining_balance, i.status, i.payment_status,
	       i.issue_date, i.due_date, i.version, i.created_at, i.sent_at, i.paid_at
	FROM invoices i
	JOIN clients c ON c.id = i.client_id
`

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &inv.ClientName, &inv.OwnerID, &inv.Currency,
		&inv.GlobalTaxRate, &inv.DiscountRate,
		&inv.Subtotal, &inv.ItemTax, &inv.GlobalTax, &inv.Tax, &inv.DiscountAmount, &inv.Total,
		&inv.TotalPaid, &inv.RemainingBalance, &inv.Status, &inv.PaymentStatus,
		&inv.IssueDate, &inv.DueDate, &inv.Version, &inv.CreatedAt, &inv.SentAt, &inv.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// fetchInvoice loads the invoice header and items. With forUpdate the invoice
// row stays locked until q's transaction ends.
func fetchInvoice(ctx context.Context, q pgxQuerier, invoiceID int, forUpdate bool) (*Invoice, error) {
	query := invoiceSelect + " WHERE i.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF i"
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to read invoice %d: %w", invoiceID, err)
	}

	inv.Items, err = fetchItems(ctx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func fetchItems(ctx context.Context, q pgxQuerier, invoiceID int) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, line_number, description, quantity, rate, item_tax_rate, amount
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY line_number
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.LineNumber, &it.Description, &it.Quantity, &it.Rate, &it.ItemTaxRate, &it.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoice items: %w", err)
	}
	return items, nil
}

// replaceItems swaps the stored items of a draft for items.
func replaceItems(ctx context.Context, tx pgx.Tx, invoiceID int, items []LineItem) error {
	if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	for i := range items {
		it := &items[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, line_number, description, quantity, rate, item_tax_rate, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, invoiceID, it.LineNumber, it.Description, it.Quantity, it.Rate, it.ItemTaxRate, it.Amount).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item %d: %w", it.LineNumber, err)
		}
	}
	return nil
}

// saveInvoiceState persists lifecycle and balance fields and bumps the version.
func saveInvoiceState(ctx context.Context, tx pgx.Tx, inv *Invoice) error {
	err := tx.QueryRow(ctx, `
		UPDATE invoices
		SET status = $1, payment_status = $2, total_paid = $3, remaining_balance = $4,
		    sent_at = $5, paid_at = $6, version = version + 1
		WHERE id = $7
		RETURNING version
	`, string(inv.Status), string(inv.PaymentStatus), inv.TotalPaid, inv.RemainingBalance,
		inv.SentAt, inv.PaidAt, inv.ID).Scan(&inv.Version)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}
	return nil
}

func clientExists(ctx context.Context, q pgxQuerier, clientID int) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)", clientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to resolve client %d: %w", clientID, err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
