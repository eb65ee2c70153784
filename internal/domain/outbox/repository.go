package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for outbox messages.
// GetPending must claim rows with storage-level atomicity (e.g. SELECT
// ... FOR UPDATE SKIP LOCKED) so concurrently deployed dispatchers do
// not double-publish within one cycle.
type Repository interface {
	Insert(ctx context.Context, msg *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}
