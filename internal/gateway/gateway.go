// Package gateway holds the payment provider adapters. Every adapter opens
// orders and verifies callback signatures; which one runs is a configuration
// choice (live or test).
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the provider cannot be reached or does not
// answer in time.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrOrderMismatch is returned when the provider echoes back an order for a
// different amount or currency than was requested.
var ErrOrderMismatch = errors.New("gateway order does not match request")

// OrderRequest describes the amount to collect for one payment intent.
type OrderRequest struct {
	Receipt  string // our reference, e.g. the invoice number
	Amount   decimal.Decimal
	Currency string
	Notes    map[string]string
}

// Order is the provider-side order.
type Order struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Gateway is implemented by every payment provider adapter.
type Gateway interface {
	Verifier

	// Name identifies the adapter in logs ("live", "test").
	Name() string

	// KeyID is the public key the browser checkout needs to open the order.
	KeyID() string

	// CreateOrder opens an order with the provider. It must honour ctx deadlines.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// New selects the adapter for mode ("live" or "test"). Both need a signing
// secret.
func New(mode, baseURL, keyID, keySecret string) (Gateway, error) {
	if keySecret == "" {
		return nil, errors.New("gateway key secret is required")
	}
	switch mode {
	case "live":
		return NewHTTPGateway(baseURL, keyID, keySecret, nil), nil
	case "test":
		return NewTestGateway(keyID, keySecret), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", mode)
	}
}

// minorUnits converts a two-decimal amount to the provider's integer minor units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
