package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/payflow/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentProcessor drives a pending payment through its provider call.
type PaymentProcessor interface {
	Execute(ctx context.Context, paymentID uuid.UUID) error
}

// EventNotifier schedules webhook deliveries for qualifying events.
type EventNotifier interface {
	Notify(ctx context.Context, eventType string, paymentID uuid.UUID) error
}

// Lock is a best-effort distributed mutex around one payment.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a lock for the given key.
type LockFactory func(key string) Lock

// EventConsumer reads payment events off the Redis stream the outbox
// dispatcher publishes to. payment.created events trigger async
// processing (guarded by a per-payment lock so replicas do not race);
// terminal events fan out to the webhook notifier. Processing is
// idempotent downstream, so at-least-once consumption is safe.
type EventConsumer struct {
	consumer  *infraRedis.StreamConsumer
	processor PaymentProcessor
	notifier  EventNotifier
	newLock   LockFactory
	metrics   *observability.Metrics
	logger    zerolog.Logger
	stream    string
}

func NewEventConsumer(
	consumer *infraRedis.StreamConsumer,
	processor PaymentProcessor,
	notifier EventNotifier,
	newLock LockFactory,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	stream string,
) *EventConsumer {
	return &EventConsumer{
		consumer:  consumer,
		processor: processor,
		notifier:  notifier,
		newLock:   newLock,
		metrics:   metrics,
		logger:    logger,
		stream:    stream,
	}
}

// Run consumes until the context is cancelled.
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := c.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.handle(ctx, msg.ID, msg.Values)
			}
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msgID string, values map[string]any) {
	start := time.Now()
	eventType, _ := values["event_type"].(string)
	rawPayload, _ := values["payload"].(string)

	paymentID, err := paymentIDFromPayload(rawPayload)
	if err != nil {
		// Malformed messages can never succeed; ack them away.
		c.logger.Error().Err(err).Str("message_id", msgID).Msg("invalid stream message, dropping")
		c.consumer.Ack(ctx, msgID)
		c.metrics.WorkerMessagesProcessed.WithLabelValues(c.stream, "invalid").Inc()
		return
	}

	if eventType == payment.EventCreated {
		if !c.processCreated(ctx, paymentID) {
			// Lock contention: leave the message pending for redelivery.
			return
		}
	}

	if err := c.notifier.Notify(ctx, eventType, paymentID); err != nil {
		c.logger.Error().Err(err).
			Str("payment_id", paymentID.String()).
			Str("event_type", eventType).
			Msg("failed to schedule webhook notification")
		c.metrics.WorkerMessagesProcessed.WithLabelValues(c.stream, "error").Inc()
		return
	}

	c.consumer.Ack(ctx, msgID)
	c.metrics.WorkerMessagesProcessed.WithLabelValues(c.stream, "success").Inc()
	c.metrics.WorkerProcessingDuration.WithLabelValues(c.stream).Observe(time.Since(start).Seconds())
}

func (c *EventConsumer) processCreated(ctx context.Context, paymentID uuid.UUID) bool {
	lock := c.newLock("payment:" + paymentID.String())
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		c.logger.Warn().Str("payment_id", paymentID.String()).Msg("could not acquire payment lock, skipping")
		return false
	}
	defer lock.Release(ctx)

	c.logger.Info().Str("payment_id", paymentID.String()).Msg("processing payment")
	if err := c.processor.Execute(ctx, paymentID); err != nil {
		// A failed provider call still transitions the payment to failed
		// and is final from the consumer's point of view.
		c.logger.Error().Err(err).Str("payment_id", paymentID.String()).Msg("payment processing failed")
	}
	return true
}

func paymentIDFromPayload(raw string) (uuid.UUID, error) {
	var payload struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(payload.PaymentID)
}
