package payment

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried by outbox messages and webhook deliveries.
const (
	EventCreated           = "payment.created"
	EventProcessing        = "payment.processing"
	EventCompleted         = "payment.completed"
	EventFailed            = "payment.failed"
	EventRefunded          = "payment.refunded"
	EventPartiallyRefunded = "payment.partially_refunded"
)

// Event is a domain event produced by a state-machine transition
// (or by payment creation). Payload is what gets serialized into the
// outbox message for downstream consumers.
type Event interface {
	Type() string
	PaymentID() uuid.UUID
	OccurredAt() time.Time
	Payload() map[string]any
}

type baseEvent struct {
	paymentID  uuid.UUID
	orderID    string
	merchantID string
	occurredAt time.Time
}

func newBaseEvent(p *Payment) baseEvent {
	return baseEvent{paymentID: p.ID, orderID: p.OrderID, merchantID: p.MerchantID, occurredAt: time.Now()}
}

func (e baseEvent) PaymentID() uuid.UUID  { return e.paymentID }
func (e baseEvent) OccurredAt() time.Time { return e.occurredAt }

func (e baseEvent) basePayload() map[string]any {
	return map[string]any{
		"payment_id":  e.paymentID.String(),
		"order_id":    e.orderID,
		"merchant_id": e.merchantID,
	}
}

// CreatedEvent is emitted when a payment is accepted and persisted as pending.
type CreatedEvent struct {
	baseEvent
	AmountCents int64
	Currency    string
	Provider    string
}

// NewCreatedEvent builds the creation event for a freshly persisted payment.
func NewCreatedEvent(p *Payment) CreatedEvent {
	return CreatedEvent{
		baseEvent:   newBaseEvent(p),
		AmountCents: p.Amount.ValueCents,
		Currency:    p.Amount.Currency,
		Provider:    p.Provider,
	}
}

func (e CreatedEvent) Type() string { return EventCreated }

func (e CreatedEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["amount_cents"] = e.AmountCents
	payload["currency"] = e.Currency
	payload["provider"] = e.Provider
	return payload
}

// ProcessingEvent marks the hand-off to the external provider.
type ProcessingEvent struct {
	baseEvent
	Provider string
}

func (e ProcessingEvent) Type() string { return EventProcessing }

func (e ProcessingEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["provider"] = e.Provider
	return payload
}

// CompletedEvent records a successful provider confirmation.
type CompletedEvent struct {
	baseEvent
	TransactionID string
	AmountCents   int64
	Currency      string
}

func (e CompletedEvent) Type() string { return EventCompleted }

func (e CompletedEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["transaction_id"] = e.TransactionID
	payload["amount_cents"] = e.AmountCents
	payload["currency"] = e.Currency
	return payload
}

// FailedEvent records a rejected or errored payment.
type FailedEvent struct {
	baseEvent
	Reason string
}

func (e FailedEvent) Type() string { return EventFailed }

func (e FailedEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["reason"] = e.Reason
	return payload
}

// RefundedEvent records a full refund.
type RefundedEvent struct {
	baseEvent
	AmountCents int64
	Currency    string
}

func (e RefundedEvent) Type() string { return EventRefunded }

func (e RefundedEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["amount_cents"] = e.AmountCents
	payload["currency"] = e.Currency
	return payload
}

// PartiallyRefundedEvent records a refund for less than the captured amount.
type PartiallyRefundedEvent struct {
	baseEvent
	AmountCents   int64
	RefundedCents int64
	Currency      string
}

func (e PartiallyRefundedEvent) Type() string { return EventPartiallyRefunded }

func (e PartiallyRefundedEvent) Payload() map[string]any {
	payload := e.basePayload()
	payload["amount_cents"] = e.AmountCents
	payload["refunded_cents"] = e.RefundedCents
	payload["currency"] = e.Currency
	return payload
}
