package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// claimLease is how far GetDue pushes next_retry_at forward when it
// claims a row. The scheduler overwrites it with the real backoff after
// the attempt; if the replica dies mid-attempt the row simply becomes
// due again once the lease lapses.
const claimLease = 2 * time.Minute

// WebhookRepository implements webhook.Repository using PostgreSQL.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const deliveryColumns = `id, payment_id, url, event_type, payload, status,
	retry_count, max_retries, initial_retry_delay_ms, next_retry_at,
	last_error, last_http_status, delivered_at, created_at, updated_at`

func (r *WebhookRepository) Insert(ctx context.Context, d *webhook.Delivery) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO webhook_deliveries
		 (id, payment_id, url, event_type, payload, status, retry_count, max_retries,
		  initial_retry_delay_ms, next_retry_at, last_error, last_http_status,
		  delivered_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.PaymentID, d.URL, d.EventType, payload, string(d.Status),
		d.RetryCount, d.MaxRetries, d.InitialRetryDelay.Milliseconds(), d.NextRetryAt,
		d.LastError, d.LastHTTPStatus, d.DeliveredAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error) {
	return r.scanDelivery(r.db(ctx).QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1`, id))
}

// GetDue atomically claims up to limit due deliveries by pushing their
// next_retry_at forward, so concurrent scheduler replicas never pick up
// the same row. The HTTP attempt then happens outside any transaction.
func (r *WebhookRepository) GetDue(ctx context.Context, limit int) ([]*webhook.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`UPDATE webhook_deliveries d
		 SET next_retry_at = NOW() + make_interval(secs => $2)
		 FROM (
		   SELECT id FROM webhook_deliveries
		   WHERE status = 'pending' AND next_retry_at <= NOW()
		     AND retry_count < max_retries
		   ORDER BY next_retry_at ASC, created_at ASC
		   LIMIT $1
		   FOR UPDATE SKIP LOCKED
		 ) due
		 WHERE d.id = due.id
		 RETURNING d.id, d.payment_id, d.url, d.event_type, d.payload, d.status,
		   d.retry_count, d.max_retries, d.initial_retry_delay_ms, d.next_retry_at,
		   d.last_error, d.last_http_status, d.delivered_at, d.created_at, d.updated_at`,
		limit, claimLease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("claim due webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*webhook.Delivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (r *WebhookRepository) Update(ctx context.Context, d *webhook.Delivery) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE webhook_deliveries SET
		  status=$1, retry_count=$2, next_retry_at=$3, last_error=$4,
		  last_http_status=$5, delivered_at=$6, updated_at=$7
		 WHERE id=$8`,
		string(d.Status), d.RetryCount, d.NextRetryAt, d.LastError,
		d.LastHTTPStatus, d.DeliveredAt, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDeliveryNotFound
	}
	return nil
}

func (r *WebhookRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*webhook.Delivery, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries
		 WHERE payment_id = $1 ORDER BY created_at ASC`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *WebhookRepository) List(ctx context.Context, status *webhook.Status, limit, offset int) ([]*webhook.Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE 1=1`
	args := []any{}
	argIdx := 1
	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*status))
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *WebhookRepository) collect(rows pgx.Rows) ([]*webhook.Delivery, error) {
	var deliveries []*webhook.Delivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (r *WebhookRepository) scanDelivery(s scanner) (*webhook.Delivery, error) {
	d := &webhook.Delivery{}
	var (
		payload []byte
		status  string
		delayMS int64
	)
	err := s.Scan(
		&d.ID, &d.PaymentID, &d.URL, &d.EventType, &payload, &status,
		&d.RetryCount, &d.MaxRetries, &delayMS, &d.NextRetryAt,
		&d.LastError, &d.LastHTTPStatus, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("scan webhook delivery: %w", err)
	}
	d.Status = webhook.Status(status)
	d.InitialRetryDelay = time.Duration(delayMS) * time.Millisecond
	if len(payload) > 0 {
		d.Payload = make(map[string]any)
		if err := json.Unmarshal(payload, &d.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal webhook payload: %w", err)
		}
	}
	return d, nil
}
