package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// DeliverySender performs one HTTP attempt for a webhook delivery.
type DeliverySender interface {
	Send(ctx context.Context, d *webhook.Delivery) (*int, error)
}

// WebhookScheduler polls for due deliveries and attempts them. GetDue
// claims rows atomically in storage, so the HTTP call happens outside
// any database transaction and replicas never double-send. Exhausted
// deliveries go terminal with no dead-letter queue; they are logged at
// error level so operators can find them.
type WebhookScheduler struct {
	webhookRepo    webhook.Repository
	sender         DeliverySender
	metrics        *observability.Metrics
	logger         zerolog.Logger
	pollInterval   time.Duration
	batchSize      int
	attemptTimeout time.Duration
}

func NewWebhookScheduler(
	webhookRepo webhook.Repository,
	sender DeliverySender,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	pollInterval time.Duration,
	batchSize int,
	attemptTimeout time.Duration,
) *WebhookScheduler {
	return &WebhookScheduler{
		webhookRepo:    webhookRepo,
		sender:         sender,
		metrics:        metrics,
		logger:         logger,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		attemptTimeout: attemptTimeout,
	}
}

// Run polls until the context is cancelled.
func (s *WebhookScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.deliverDue(ctx); err != nil {
			s.logger.Error().Err(err).Msg("webhook delivery cycle failed")
		}
	}
}

func (s *WebhookScheduler) deliverDue(ctx context.Context) error {
	due, err := s.webhookRepo.GetDue(ctx, s.batchSize)
	if err != nil {
		return err
	}
	for _, d := range due {
		s.attempt(ctx, d)
	}
	return nil
}

func (s *WebhookScheduler) attempt(ctx context.Context, d *webhook.Delivery) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	start := time.Now()
	status, err := s.sender.Send(attemptCtx, d)
	s.metrics.WebhookAttemptDuration.WithLabelValues(d.EventType).Observe(time.Since(start).Seconds())

	now := time.Now()
	if err != nil {
		d.RecordFailure(status, err.Error(), now)
		s.metrics.WebhookDeliveries.WithLabelValues(d.EventType, "failure").Inc()
		if d.Status == webhook.StatusFailed {
			s.metrics.WebhookExhausted.Inc()
			s.logger.Error().
				Str("delivery_id", d.ID.String()).
				Str("payment_id", d.PaymentID.String()).
				Str("event_type", d.EventType).
				Str("url", d.URL).
				Int("retry_count", d.RetryCount).
				Msg("webhook delivery exhausted all retries")
		} else {
			s.logger.Warn().
				Err(err).
				Str("delivery_id", d.ID.String()).
				Int("retry_count", d.RetryCount).
				Time("next_retry_at", *d.NextRetryAt).
				Msg("webhook attempt failed, retry scheduled")
		}
	} else {
		d.RecordSuccess(*status, now)
		s.metrics.WebhookDeliveries.WithLabelValues(d.EventType, "success").Inc()
		s.logger.Info().
			Str("delivery_id", d.ID.String()).
			Str("event_type", d.EventType).
			Int("http_status", *status).
			Msg("webhook delivered")
	}

	if err := s.webhookRepo.Update(ctx, d); err != nil {
		s.logger.Error().Err(err).
			Str("delivery_id", d.ID.String()).
			Msg("failed to persist webhook delivery state")
	}
}
