package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Publisher pushes a committed outbox message to the message broker.
type Publisher interface {
	Publish(ctx context.Context, msg *outbox.Message) error
}

// TxManager runs fn inside one database transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxDispatcher polls the outbox table and publishes pending
// messages. Rows are claimed inside a transaction with SKIP LOCKED so
// concurrent replicas never double-publish within a cycle. A failed
// publish bumps the retry counter and leaves the row pending; rows are
// retried on every cycle until the publish succeeds, never dropped.
type OutboxDispatcher struct {
	txManager    TxManager
	outboxRepo   outbox.Repository
	publisher    Publisher
	metrics      *observability.Metrics
	logger       zerolog.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewOutboxDispatcher(
	txManager TxManager,
	outboxRepo outbox.Repository,
	publisher Publisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	pollInterval time.Duration,
	batchSize int,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		txManager:    txManager,
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run polls until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := d.dispatchBatch(ctx); err != nil {
			d.logger.Error().Err(err).Msg("outbox dispatch cycle failed")
		}
	}
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) error {
	return d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		msgs, err := d.outboxRepo.GetPending(txCtx, d.batchSize)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if err := d.publisher.Publish(ctx, msg); err != nil {
				d.logger.Error().Err(err).
					Str("outbox_id", msg.ID.String()).
					Str("event_type", msg.EventType).
					Int("retry_count", msg.RetryCount).
					Msg("failed to publish outbox message")
				d.metrics.OutboxRetries.Inc()
				d.metrics.OutboxPublished.WithLabelValues(msg.Topic, "error").Inc()
				if err := d.outboxRepo.MarkFailed(txCtx, msg.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := d.outboxRepo.MarkProcessed(txCtx, msg.ID); err != nil {
				return err
			}
			d.metrics.OutboxPublished.WithLabelValues(msg.Topic, "success").Inc()
		}
		return nil
	})
}
