package idempotency

import "context"

// Repository defines the persistence interface for idempotency records.
// Get must treat rows past their expiry as absent. Insert must surface
// errors.ErrDuplicateIdempotencyKey when the unique constraint on key
// fires, so a losing concurrent insert can fall back to a lookup.
type Repository interface {
	Get(ctx context.Context, key string) (*Request, error)
	Insert(ctx context.Context, req *Request) error
	DeleteExpired(ctx context.Context, limit int) (int64, error)
}
