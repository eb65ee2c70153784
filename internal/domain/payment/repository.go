package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)
	AddEvent(ctx context.Context, record *EventRecord) error
	GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*EventRecord, error)
}

// ListFilter holds optional filters for listing payments.
type ListFilter struct {
	MerchantID *string
	OrderID    *string
	Status     *Status
	Provider   *string
	Limit      int
	Offset     int
	SortBy     string
	SortOrder  string
}

// EventRecord is the persisted form of a domain event (audit trail).
type EventRecord struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}

// NewEventRecord converts a domain event into its audit row.
func NewEventRecord(e Event) *EventRecord {
	return &EventRecord{
		ID:        uuid.New(),
		PaymentID: e.PaymentID(),
		EventType: e.Type(),
		EventData: e.Payload(),
		CreatedAt: e.OccurredAt(),
	}
}
