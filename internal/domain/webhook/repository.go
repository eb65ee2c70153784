package webhook

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for webhook deliveries.
// GetDue selects pending rows whose nextRetryAt has passed and whose
// retry budget is not exhausted, claiming them with storage-level
// atomicity so multiple scheduler replicas do not double-send.
type Repository interface {
	Insert(ctx context.Context, d *Delivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error)
	GetDue(ctx context.Context, limit int) ([]*Delivery, error)
	Update(ctx context.Context, d *Delivery) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Delivery, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]*Delivery, error)
}
