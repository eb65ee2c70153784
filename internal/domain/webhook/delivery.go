package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery state of a webhook.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

const (
	DefaultMaxRetries        = 5
	DefaultInitialRetryDelay = 1 * time.Second
	// MaxRetryDelay caps exponential backoff.
	MaxRetryDelay = 1 * time.Hour
)

// Delivery is one scheduled webhook notification. The payload is a
// snapshot taken when the row is created, independent of later payment
// mutations. Receivers may observe duplicates: delivery is at-least-once.
type Delivery struct {
	ID                uuid.UUID
	PaymentID         uuid.UUID
	URL               string
	EventType         string
	Payload           map[string]any
	Status            Status
	RetryCount        int
	MaxRetries        int
	InitialRetryDelay time.Duration
	NextRetryAt       *time.Time
	LastError         *string
	LastHTTPStatus    *int
	DeliveredAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDelivery schedules a delivery with an immediate first attempt.
func NewDelivery(paymentID uuid.UUID, url, eventType string, payload map[string]any, maxRetries int, initialDelay time.Duration) *Delivery {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialRetryDelay
	}
	now := time.Now()
	return &Delivery{
		ID:                uuid.New(),
		PaymentID:         paymentID,
		URL:               url,
		EventType:         eventType,
		Payload:           payload,
		Status:            StatusPending,
		MaxRetries:        maxRetries,
		InitialRetryDelay: initialDelay,
		NextRetryAt:       &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// BackoffDelay returns initialDelay * 2^(attempt-1) capped at MaxRetryDelay.
// attempt is 1-based: the delay scheduled after the attempt-th failure.
func BackoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	if delay > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay
}

// RecordFailure increments the retry counter and either schedules the
// next attempt with exponential backoff or, once retries are exhausted,
// marks the delivery terminally failed with no further scheduling.
func (d *Delivery) RecordFailure(httpStatus *int, errMsg string, now time.Time) {
	d.RetryCount++
	d.LastError = &errMsg
	d.LastHTTPStatus = httpStatus
	d.UpdatedAt = now

	if d.RetryCount >= d.MaxRetries {
		d.Status = StatusFailed
		d.NextRetryAt = nil
		return
	}
	next := now.Add(BackoffDelay(d.InitialRetryDelay, d.RetryCount))
	d.NextRetryAt = &next
}

// RecordSuccess marks the delivery as delivered and clears the last error.
func (d *Delivery) RecordSuccess(httpStatus int, now time.Time) {
	d.Status = StatusDelivered
	d.LastHTTPStatus = &httpStatus
	d.LastError = nil
	d.NextRetryAt = nil
	d.DeliveredAt = &now
	d.UpdatedAt = now
}

// Exhausted reports whether the delivery reached its retry ceiling.
func (d *Delivery) Exhausted() bool {
	return d.RetryCount >= d.MaxRetries
}
