package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-engine/internal/app"
	"invoice-engine/internal/core"
)

const testSecret = "test-jwt-secret"

// fakeApp embeds the interface so only the methods under test need bodies.
type fakeApp struct {
	app.ApplicationService

	gotOwner    int
	gotCreate   app.CreateInvoiceRequest
	gotCallback app.PaymentCallbackRequest
	err         error
}

func (f *fakeApp) GetInvoice(_ context.Context, ownerID, invoiceID int) (*app.InvoiceResult, error) {
	f.gotOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &app.InvoiceResult{Invoice: core.InvoiceSnapshot{ID: invoiceID, InvoiceNumber: "INV-2026-00001", Status: core.InvoiceStatusSent}}, nil
}

func (f *fakeApp) CreateInvoice(_ context.Context, req app.CreateInvoiceRequest) (*app.InvoiceResult, error) {
	f.gotCreate = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.InvoiceResult{Invoice: core.InvoiceSnapshot{ID: 1, Status: core.InvoiceStatusDraft}}, nil
}

func (f *fakeApp) CreatePaymentOrder(_ context.Context, req app.CreatePaymentOrderRequest) (*app.PaymentOrderResult, error) {
	f.gotOwner = req.OwnerID
	if f.err != nil {
		return nil, f.err
	}
	return &app.PaymentOrderResult{Order: core.OrderResult{
		AttemptID: 3, GatewayOrderID: "order_1", GatewayKey: "test_key", Amount: req.Amount, Currency: "INR",
	}}, nil
}

func (f *fakeApp) HandlePaymentCallback(_ context.Context, req app.PaymentCallbackRequest) (*app.PaymentAttemptResult, error) {
	f.gotCallback = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.PaymentAttemptResult{Attempt: core.PaymentAttempt{GatewayOrderID: req.GatewayOrderID, Status: core.AttemptStatusCompleted}}, nil
}

func token(t *testing.T, userID int, secret string, ttl time.Duration) string {
	t.Helper()
	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeApp{}, "", testSecret)
	rec := do(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequireAuth(t *testing.T) {
	fake := &fakeApp{}
	h := NewHandler(fake, "", testSecret)

	rec := do(t, h, http.MethodGet, "/api/invoices/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices/1", "", token(t, 5, "other-secret", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices/1", "", token(t, 5, testSecret, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")

	rec = do(t, h, http.MethodGet, "/api/invoices/1", "", token(t, 5, testSecret, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fake.gotOwner)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/1", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token(t, 8, testSecret, time.Hour)})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, fake.gotOwner)
}

func TestCreateInvoice(t *testing.T) {
	fake := &fakeApp{}
	h := NewHandler(fake, "", testSecret)

	body := `{"client_id": 1, "global_tax_rate": "18", "items": [{"description": "Design", "quantity": 2, "rate": "500"}]}`
	rec := do(t, h, http.MethodPost, "/api/invoices", body, token(t, 5, testSecret, time.Hour))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, 5, fake.gotCreate.OwnerID)
	require.Len(t, fake.gotCreate.Items, 1)
	assert.Equal(t, "500", fake.gotCreate.Items[0].Rate.String())
	assert.Equal(t, "18", fake.gotCreate.GlobalTaxRate.String())

	rec = do(t, h, http.MethodPost, "/api/invoices", `{"client_id":`, token(t, 5, testSecret, time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)
}

func TestRequestBodyLimit(t *testing.T) {
	h := NewHandler(&fakeApp{}, "", testSecret)
	body := `{"description": "` + strings.Repeat("x", 2<<20) + `"}`
	rec := do(t, h, http.MethodPost, "/api/payments/callback", body, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreatePaymentOrder(t *testing.T) {
	fake := &fakeApp{}
	h := NewHandler(fake, "", testSecret)

	rec := do(t, h, http.MethodPost, "/api/invoices/4/payments/orders", `{"amount": "500.00"}`, token(t, 5, testSecret, time.Hour))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order_1", resp["gateway_order_id"])
	assert.Equal(t, "test_key", resp["gateway_key"])
	assert.Equal(t, "500", resp["amount"])

	rec = do(t, h, http.MethodPost, "/api/invoices/abc/payments/orders", `{}`, token(t, 5, testSecret, time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentCallbackIsPublic(t *testing.T) {
	fake := &fakeApp{}
	h := NewHandler(fake, "", testSecret)

	body := `{"gateway_order_id": "order_1", "gateway_payment_id": "pay_1", "signature": "abc"}`
	for _, path := range []string{"/api/payments/callback", "/api/payments/webhook"} {
		rec := do(t, h, http.MethodPost, path, body, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "pay_1", fake.gotCallback.GatewayPaymentID)
	}

	rec := do(t, h, http.MethodPost, "/api/payments/callback", `{"gateway_order_id": "order_1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &core.ValidationError{Field: "amount", Message: "exceeds remaining balance"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid state", &core.InvalidStateError{Op: "pay", Status: core.InvoiceStatusPaid}, http.StatusConflict, "INVALID_STATE"},
		{"gateway down", &core.GatewayUnavailableError{Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE"},
		{"signature mismatch", core.ErrSignatureMismatch, http.StatusBadRequest, "PAYMENT_FAILED"},
		{"finalized", fmt.Errorf("wrapped: %w", core.ErrUnknownOrFinalizedPayment), http.StatusConflict, "PAYMENT_FAILED"},
		{"not found", core.ErrInvoiceNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unexpected", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeApp{err: tt.err}, "", testSecret)
			body := `{"gateway_order_id": "order_1", "gateway_payment_id": "pay_1", "signature": "abc"}`
			rec := do(t, h, http.MethodPost, "/api/payments/callback", body, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
			if tt.wantCode == "PAYMENT_FAILED" {
				assert.Equal(t, paymentFailedMessage, resp.Error)
			}
			if tt.wantCode == "INTERNAL_ERROR" {
				assert.NotContains(t, resp.Error, "connection reset")
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := NewHandler(&fakeApp{}, "https://app.example.com", testSecret)

	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// captureLogs routes the global logger into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func TestUnexpectedErrorIsLoggedWithRequestID(t *testing.T) {
	logs := captureLogs(t)
	h := NewHandler(&fakeApp{err: fmt.Errorf("connection reset")}, "", testSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/9", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1, testSecret, time.Hour))
	req.Header.Set("X-Request-ID", "req-500")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-500", decodeError(t, rec).RequestID)
	assert.Contains(t, logs.String(), `"request_id":"req-500"`)
	assert.Contains(t, logs.String(), "connection reset")
	assert.Contains(t, logs.String(), `"status":500`)
}

func TestRecoverer(t *testing.T) {
	logs := captureLogs(t)
	h := RequestID(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
	assert.Contains(t, logs.String(), "handler panicked")
	assert.Contains(t, logs.String(), resp.RequestID)
}

func TestRequestID_RejectsUnsafeHeader(t *testing.T) {
	h := NewHandler(&fakeApp{}, "", testSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	assert.NotEqual(t, "bad id\nwith newline", got)
	assert.Len(t, got, 36)
}
