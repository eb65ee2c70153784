package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/idempotency"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository implements idempotency.Repository using PostgreSQL.
// The primary key on the key column is what makes concurrent first-writes
// race-safe: the loser surfaces ErrDuplicateIdempotencyKey.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Get returns the record for the key, or nil when absent or expired.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Request, error) {
	rec := &idempotency.Request{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT key, payment_id, request_hash, created_at, expires_at
		 FROM idempotent_requests WHERE key = $1 AND expires_at > NOW()`, key,
	).Scan(&rec.Key, &rec.PaymentID, &rec.RequestHash, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("get idempotent request: %w", err)
	}
	return rec, nil
}

// Insert stores a new record. An expired row still occupying the key is
// overwritten in place, since Get already treats it as absent and the
// sweeper may not have reached it yet. A live conflicting row maps to
// ErrDuplicateIdempotencyKey so the caller can fall back to a lookup.
func (r *IdempotencyRepository) Insert(ctx context.Context, rec *idempotency.Request) error {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO idempotent_requests (key, payment_id, request_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
		   payment_id = EXCLUDED.payment_id,
		   request_hash = EXCLUDED.request_hash,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at
		 WHERE idempotent_requests.expires_at < NOW()`,
		rec.Key, rec.PaymentID, rec.RequestHash, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert idempotent request: %w", err)
	}
	// Zero rows means the conflicting row is still live: a real duplicate.
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDuplicateIdempotencyKey
	}
	return nil
}

// DeleteExpired removes up to limit expired records and reports how many went.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM idempotent_requests
		 WHERE key IN (
		   SELECT key FROM idempotent_requests WHERE expires_at < NOW() LIMIT $1
		 )`, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotent requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
