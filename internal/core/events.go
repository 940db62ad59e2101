package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"invoice-engine/internal/logger"
)

type EventType string

const (
	EventPaymentCompleted EventType = "payment_completed"
	EventInvoiceFullyPaid EventType = "invoice_fully_paid"
)

// Event is published after a payment state change has been committed.
type Event struct {
	Type      EventType       `json:"type"`
	InvoiceID int             `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount,omitempty"` // set for payment_completed
}

// Handler consumes events. Returned errors are logged and otherwise ignored:
// notification failures never roll back payment state.
type Handler func(ctx context.Context, e Event) error

// EventBus fans committed events out to subscribers.
type EventBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers h for every future event.
func (b *EventBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers events synchronously, in order, to every subscriber.
func (b *EventBus) Publish(ctx context.Context, events ...Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	log := logger.WithComponent("events")
	for _, e := range events {
		for _, h := range handlers {
			if err := safeHandle(ctx, h, e); err != nil {
				log.Error().Err(err).
					Str("event", string(e.Type)).
					Int("invoice_id", e.InvoiceID).
					Msg("event subscriber failed")
			}
		}
	}
}

func safeHandle(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("subscriber panic: %v", rv)
		}
	}()
	return h(ctx, e)
}

// paymentEvents returns the events to publish after an attempt completed.
// InvoiceFullyPaid fires only on the completion that settled the invoice.
func paymentEvents(invoiceID int, amount decimal.Decimal, settled bool) []Event {
	events := []Event{{Type: EventPaymentCompleted, InvoiceID: invoiceID, Amount: amount}}
	if settled {
		events = append(events, Event{Type: EventInvoiceFullyPaid, InvoiceID: invoiceID})
	}
	return events
}
