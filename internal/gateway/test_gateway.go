package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TestGateway is an in-process provider for development and tests. Orders are
// accepted immediately and callbacks are signed with the configured secret,
// so a simulated payment goes through exactly the same verification path as
// a live one.
type TestGateway struct {
	*HMACVerifier
	keyID string

	mu          sync.Mutex
	unavailable bool
	orders      map[string]Order
}

// NewTestGateway signs with secret. With an empty secret no callback verifies.
func NewTestGateway(keyID, secret string) *TestGateway {
	if keyID == "" {
		keyID = "test_key"
	}
	return &TestGateway{
		HMACVerifier: NewHMACVerifier(secret),
		keyID:        keyID,
		orders:       make(map[string]Order),
	}
}

func (g *TestGateway) Name() string  { return "test" }
func (g *TestGateway) KeyID() string { return g.keyID }

// SetUnavailable makes subsequent CreateOrder calls fail with ErrUnavailable.
func (g *TestGateway) SetUnavailable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = down
}

func (g *TestGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, ErrUnavailable
	}

	order := Order{
		ID:       "order_test_" + compactUUID(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return &order, nil
}

// SimulatePayment returns a fresh payment id and a valid signature for orderID,
// i.e. the callback the provider would send after a successful checkout.
func (g *TestGateway) SimulatePayment(orderID string) (paymentID, signature string) {
	paymentID = "pay_test_" + compactUUID()
	return paymentID, g.Sign(orderID, paymentID)
}

// Order returns a previously created order.
func (g *TestGateway) Order(id string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	return o, ok
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
