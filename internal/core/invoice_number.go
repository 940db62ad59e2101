package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// nextInvoiceNumber allocates the next gapless number for prefix and year.
// The upsert takes a row lock on the sequence, so concurrent drafts in the
// same year serialize here and a rolled back transaction gives its number back.
func nextInvoiceNumber(ctx context.Context, tx pgx.Tx, prefix string, year int) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (prefix, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, prefix, year).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}
	return formatInvoiceNumber(prefix, year, lastNumber), nil
}

// formatInvoiceNumber renders e.g. INV-2026-00042.
func formatInvoiceNumber(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, n)
}
