package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPGateway talks to a REST provider exposing POST /v1/orders with basic auth
// (key id / key secret) and signing callbacks with the key secret.
type HTTPGateway struct {
	*HMACVerifier
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewHTTPGateway builds the live adapter. Deadlines come from the caller's
// context, so the client itself has no timeout.
func NewHTTPGateway(baseURL, keyID, keySecret string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		HMACVerifier: NewHMACVerifier(keySecret),
		baseURL:      strings.TrimRight(baseURL, "/"),
		keyID:        keyID,
		keySecret:    keySecret,
		client:       client,
	}
}

func (g *HTTPGateway) Name() string  { return "live" }
func (g *HTTPGateway) KeyID() string { return g.keyID }

type createOrderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	payload, err := json.Marshal(createOrderBody{
		Amount:   minorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: create order returned HTTP %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid order response: %v", ErrUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: order response has no id", ErrUnavailable)
	}
	if out.Amount != minorUnits(req.Amount) || !strings.EqualFold(out.Currency, req.Currency) {
		return nil, fmt.Errorf("%w: order %s is for %d %s, requested %d %s",
			ErrOrderMismatch, out.ID, out.Amount, out.Currency, minorUnits(req.Amount), req.Currency)
	}

	return &Order{
		ID:       out.ID,
		Amount:   fromMinorUnits(out.Amount),
		Currency: out.Currency,
		Status:   out.Status,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
