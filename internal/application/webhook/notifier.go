package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// qualifyingEvents are the event types merchants are notified about.
// Intermediate transitions (created, processing) stay internal.
var qualifyingEvents = map[string]struct{}{
	payment.EventCompleted:         {},
	payment.EventFailed:            {},
	payment.EventRefunded:          {},
	payment.EventPartiallyRefunded: {},
}

// Notifier turns qualifying payment events into webhook delivery rows.
// URL resolution order: payment metadata override, then the merchant's
// configured URL, then the service-wide default. When none resolve the
// event is skipped silently, which is the expected path for merchants
// that never registered a callback.
type Notifier struct {
	webhookRepo       webhook.Repository
	paymentRepo       payment.Repository
	merchantURLs      map[string]string
	defaultURL        string
	maxRetries        int
	initialRetryDelay time.Duration
	logger            zerolog.Logger
}

// NewNotifier creates a Notifier. merchantURLs maps merchant IDs to
// their configured webhook endpoints.
func NewNotifier(
	webhookRepo webhook.Repository,
	paymentRepo payment.Repository,
	merchantURLs map[string]string,
	defaultURL string,
	maxRetries int,
	initialRetryDelay time.Duration,
	logger zerolog.Logger,
) *Notifier {
	if merchantURLs == nil {
		merchantURLs = make(map[string]string)
	}
	return &Notifier{
		webhookRepo:       webhookRepo,
		paymentRepo:       paymentRepo,
		merchantURLs:      merchantURLs,
		defaultURL:        defaultURL,
		maxRetries:        maxRetries,
		initialRetryDelay: initialRetryDelay,
		logger:            logger,
	}
}

// Notify schedules a webhook delivery for the event, if it qualifies
// and a target URL resolves. The payload is snapshotted from the
// payment's current state so later mutations do not leak into it.
func (n *Notifier) Notify(ctx context.Context, eventType string, paymentID uuid.UUID) error {
	if _, ok := qualifyingEvents[eventType]; !ok {
		return nil
	}

	p, err := n.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	url := n.resolveURL(p)
	if url == "" {
		n.logger.Debug().
			Str("payment_id", p.ID.String()).
			Str("merchant_id", p.MerchantID).
			Str("event_type", eventType).
			Msg("no webhook url resolved, skipping notification")
		return nil
	}

	d := webhook.NewDelivery(p.ID, url, eventType, snapshotPayload(p, eventType), n.maxRetries, n.initialRetryDelay)
	if err := n.webhookRepo.Insert(ctx, d); err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}

	n.logger.Info().
		Str("delivery_id", d.ID.String()).
		Str("payment_id", p.ID.String()).
		Str("event_type", eventType).
		Str("url", url).
		Msg("webhook delivery scheduled")
	return nil
}

func (n *Notifier) resolveURL(p *payment.Payment) string {
	if override := p.WebhookURLOverride(); override != "" {
		return override
	}
	if u, ok := n.merchantURLs[p.MerchantID]; ok && u != "" {
		return u
	}
	return n.defaultURL
}

// snapshotPayload builds the JSON body sent to the merchant.
func snapshotPayload(p *payment.Payment, eventType string) map[string]any {
	var transactionID, failureReason any
	if p.TransactionID != nil {
		transactionID = *p.TransactionID
	}
	if p.FailureReason != nil {
		failureReason = *p.FailureReason
	}
	return map[string]any{
		"eventType":     eventType,
		"paymentId":     p.ID.String(),
		"orderId":       p.OrderID,
		"merchantId":    p.MerchantID,
		"amount":        p.Amount.ValueCents,
		"currency":      p.Amount.Currency,
		"status":        string(p.Status),
		"transactionId": transactionID,
		"failureReason": failureReason,
		"createdAt":     p.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":     p.UpdatedAt.UTC().Format(time.RFC3339),
		"metadata":      p.Metadata,
	}
}
