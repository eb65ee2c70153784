package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository implements outbox.Repository using PostgreSQL.
// GetPending must run inside a transaction: SKIP LOCKED only protects
// rows for the lifetime of the claiming transaction.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *OutboxRepository) Insert(ctx context.Context, msg *outbox.Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO outbox_messages (id, topic, event_type, payload, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.Topic, msg.EventType, payload, msg.RetryCount, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// GetPending claims up to limit unprocessed messages in creation order.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, topic, event_type, payload, retry_count, last_error, created_at, processed_at
		 FROM outbox_messages WHERE processed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var msgs []*outbox.Message
	for rows.Next() {
		m := &outbox.Message{}
		var payload []byte
		if err := rows.Scan(&m.ID, &m.Topic, &m.EventType, &payload, &m.RetryCount, &m.LastError, &m.CreatedAt, &m.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		if len(payload) > 0 {
			m.Payload = make(map[string]any)
			if err := json.Unmarshal(payload, &m.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_messages SET processed_at = $1 WHERE id = $2`, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}

// MarkFailed records the publish error and keeps the message pending.
// Messages are retried on every cycle until the publish succeeds; they
// are never flipped to a terminal state or deleted.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_messages SET retry_count = retry_count + 1, last_error = $1 WHERE id = $2`,
		lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
