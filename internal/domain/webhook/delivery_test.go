package webhook_test

import (
	"testing"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/google/uuid"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{0, 1 * time.Second}, // clamped to first attempt
	}
	for _, tt := range tests {
		if got := webhook.BackoffDelay(time.Second, tt.attempt); got != tt.want {
			t.Errorf("BackoffDelay(1s, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_Cap(t *testing.T) {
	if got := webhook.BackoffDelay(time.Second, 30); got != webhook.MaxRetryDelay {
		t.Errorf("BackoffDelay(1s, 30) = %v, want cap %v", got, webhook.MaxRetryDelay)
	}
	if got := webhook.BackoffDelay(2*time.Hour, 1); got != webhook.MaxRetryDelay {
		t.Errorf("initial delay above cap = %v, want %v", got, webhook.MaxRetryDelay)
	}
}

func TestNewDelivery_Defaults(t *testing.T) {
	d := webhook.NewDelivery(uuid.New(), "https://example.com/hook", "payment.completed",
		map[string]any{"status": "completed"}, 0, 0)

	if d.MaxRetries != webhook.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default %d", d.MaxRetries, webhook.DefaultMaxRetries)
	}
	if d.InitialRetryDelay != webhook.DefaultInitialRetryDelay {
		t.Errorf("InitialRetryDelay = %v, want default %v", d.InitialRetryDelay, webhook.DefaultInitialRetryDelay)
	}
	if d.Status != webhook.StatusPending {
		t.Errorf("Status = %s, want pending", d.Status)
	}
	if d.NextRetryAt == nil {
		t.Error("NextRetryAt not set: first attempt should be due immediately")
	}
}

func TestDelivery_RecordFailure_SchedulesBackoff(t *testing.T) {
	d := webhook.NewDelivery(uuid.New(), "https://example.com/hook", "payment.completed", nil, 5, time.Second)
	now := time.Now()

	status := 500
	d.RecordFailure(&status, "internal server error", now)

	if d.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", d.RetryCount)
	}
	if d.Status != webhook.StatusPending {
		t.Errorf("Status = %s, want pending", d.Status)
	}
	if d.NextRetryAt == nil {
		t.Fatal("NextRetryAt = nil, want scheduled retry")
	}
	if got := d.NextRetryAt.Sub(now); got != time.Second {
		t.Errorf("first retry delay = %v, want 1s", got)
	}
	if d.LastHTTPStatus == nil || *d.LastHTTPStatus != 500 {
		t.Errorf("LastHTTPStatus = %v, want 500", d.LastHTTPStatus)
	}

	d.RecordFailure(&status, "internal server error", now)
	if got := d.NextRetryAt.Sub(now); got != 2*time.Second {
		t.Errorf("second retry delay = %v, want 2s", got)
	}
}

func TestDelivery_RecordFailure_Exhausts(t *testing.T) {
	d := webhook.NewDelivery(uuid.New(), "https://example.com/hook", "payment.completed", nil, 3, time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		d.RecordFailure(nil, "connection refused", now)
	}

	if d.Status != webhook.StatusFailed {
		t.Errorf("Status = %s, want failed", d.Status)
	}
	if d.NextRetryAt != nil {
		t.Errorf("NextRetryAt = %v, want nil after exhaustion", d.NextRetryAt)
	}
	if !d.Exhausted() {
		t.Error("Exhausted() = false, want true")
	}
}

func TestDelivery_RecordSuccess(t *testing.T) {
	d := webhook.NewDelivery(uuid.New(), "https://example.com/hook", "payment.completed", nil, 5, time.Second)
	now := time.Now()

	status := 500
	d.RecordFailure(&status, "flaky", now)
	d.RecordSuccess(200, now)

	if d.Status != webhook.StatusDelivered {
		t.Errorf("Status = %s, want delivered", d.Status)
	}
	if d.LastError != nil {
		t.Errorf("LastError = %v, want nil", *d.LastError)
	}
	if d.NextRetryAt != nil {
		t.Error("NextRetryAt should be cleared after delivery")
	}
	if d.DeliveredAt == nil {
		t.Error("DeliveredAt not set")
	}
	if d.LastHTTPStatus == nil || *d.LastHTTPStatus != 200 {
		t.Errorf("LastHTTPStatus = %v, want 200", d.LastHTTPStatus)
	}
}
