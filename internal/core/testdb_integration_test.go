package core_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/gateway"
)

// setupTestDB migrates and truncates the database behind TEST_DATABASE_URL and
// seeds two clients (ids 1 and 2).
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Never point this at the live database: every run truncates all tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err, "migrate test database")

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payment_attempts, invoice_items, invoices, invoice_sequences, clients RESTART IDENTITY CASCADE;

		INSERT INTO clients (id, name, email) VALUES
		(1, 'Acme Corp',       'billing@acme.com'),
		(2, 'Beta Industries', 'ap@beta.in');
	`)
	require.NoError(t, err, "seed test database")
	return pool
}

var issueDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	ctx      context.Context
	pool     *pgxpool.Pool
	invoices core.InvoiceService
	payments core.PaymentService
	gw       *gateway.TestGateway

	mu     sync.Mutex
	events []core.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := setupTestDB(t)

	f := &fixture{
		ctx:  context.Background(),
		pool: pool,
		gw:   gateway.NewTestGateway("", "integration_secret"),
	}
	bus := core.NewEventBus()
	bus.Subscribe(func(_ context.Context, e core.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	})

	f.invoices = core.NewInvoiceService(pool, core.InvoiceOptions{NumberPrefix: "INV", DefaultDueDays: 30, DefaultCurrency: "INR"})
	f.payments = core.NewPaymentService(pool, f.gw, bus, core.PaymentOptions{GatewayTimeout: 2 * time.Second})
	return f
}

func (f *fixture) recorded() []core.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Event(nil), f.events...)
}

// draftInput is 2 x 500 at 18% global tax: total 1180.
func draftInput() core.InvoiceInput {
	return core.InvoiceInput{
		ClientID:      1,
		OwnerID:       1,
		Currency:      "INR",
		Items:         []core.LineItemInput{item("2", "500", "0")},
		GlobalTaxRate: d("18"),
		DiscountRate:  d("0"),
		IssueDate:     issueDate,
	}
}

func (f *fixture) sentInvoice(t *testing.T) *core.Invoice {
	t.Helper()
	inv, err := f.invoices.CreateDraft(f.ctx, draftInput())
	require.NoError(t, err)
	inv, err = f.invoices.Send(f.ctx, inv.ID)
	require.NoError(t, err)
	return inv
}

// pay opens an order for amount and returns the valid callback for it.
func (f *fixture) pay(t *testing.T, invoiceID int, amount string) core.Callback {
	t.Helper()
	order, err := f.payments.CreateOrder(f.ctx, invoiceID, d(amount), "INR")
	require.NoError(t, err)
	paymentID, sig := f.gw.SimulatePayment(order.GatewayOrderID)
	return core.Callback{GatewayOrderID: order.GatewayOrderID, GatewayPaymentID: paymentID, Signature: sig}
}
