package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvoiceNotFound is also returned when the caller does not own the invoice.
	ErrInvoiceNotFound = errors.New("invoice not found")

	ErrClientNotFound = errors.New("client not found")

	// ErrSignatureMismatch marks a callback whose signature failed verification.
	// It is a security event and is never retried.
	ErrSignatureMismatch = errors.New("payment signature mismatch")

	// ErrUnknownOrFinalizedPayment is returned for callbacks referencing an
	// unknown gateway order or an attempt that already reached a terminal state.
	ErrUnknownOrFinalizedPayment = errors.New("unknown or finalized payment")
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func newValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// InvalidStateError reports an operation that the invoice lifecycle does not allow.
type InvalidStateError struct {
	Op     string
	Status InvoiceStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s invoice in status %s", e.Op, e.Status)
}

// GatewayUnavailableError wraps transport failures and timeouts talking to the
// payment provider. Callers may retry with backoff.
type GatewayUnavailableError struct {
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Err
}
