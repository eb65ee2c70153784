package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	"github.com/cassiomorais/payflow/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type stubPublisher struct {
	err       error
	published []*outbox.Message
}

func (p *stubPublisher) Publish(ctx context.Context, msg *outbox.Message) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

func TestOutboxDispatcher_PublishesAndMarksProcessed(t *testing.T) {
	outboxRepo := testutil.NewMockOutboxRepository()
	publisher := &stubPublisher{}

	msg := outbox.NewMessage(outbox.DefaultTopic, payment.EventCreated, map[string]any{"payment_id": "p1"})
	if err := outboxRepo.Insert(context.Background(), msg); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	d := NewOutboxDispatcher(
		testutil.NewMockTransactionManager(), outboxRepo, publisher,
		testMetrics(), zerolog.Nop(), time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published = %d, want 1", len(publisher.published))
	}
	if msg.ProcessedAt == nil {
		t.Error("message not marked processed")
	}
}

func TestOutboxDispatcher_FailedPublishStaysPending(t *testing.T) {
	outboxRepo := testutil.NewMockOutboxRepository()
	publisher := &stubPublisher{err: errors.New("broker unreachable")}

	msg := outbox.NewMessage(outbox.DefaultTopic, payment.EventCreated, map[string]any{"payment_id": "p1"})
	outboxRepo.Insert(context.Background(), msg)

	d := NewOutboxDispatcher(
		testutil.NewMockTransactionManager(), outboxRepo, publisher,
		testMetrics(), zerolog.Nop(), time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}

	if msg.ProcessedAt != nil {
		t.Error("failed message marked processed")
	}
	if msg.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", msg.RetryCount)
	}
	if msg.LastError == nil || *msg.LastError != "broker unreachable" {
		t.Errorf("LastError = %v", msg.LastError)
	}

	// The row is still pending: the next cycle retries it.
	pending, err := outboxRepo.GetPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1 (failed rows are never dropped)", len(pending))
	}
}

func TestOutboxDispatcher_MixedBatch(t *testing.T) {
	outboxRepo := testutil.NewMockOutboxRepository()
	bad := outbox.NewMessage(outbox.DefaultTopic, payment.EventCreated, map[string]any{"payment_id": "p1"})
	good := outbox.NewMessage(outbox.DefaultTopic, payment.EventCompleted, map[string]any{"payment_id": "p2"})
	outboxRepo.Insert(context.Background(), bad)
	outboxRepo.Insert(context.Background(), good)

	calls := 0
	failFirst := func(ctx context.Context, msg *outbox.Message) error {
		calls++
		if msg.ID == bad.ID {
			return errors.New("serialization error")
		}
		return nil
	}

	d := NewOutboxDispatcher(
		testutil.NewMockTransactionManager(), outboxRepo, publisherFunc(failFirst),
		testMetrics(), zerolog.Nop(), time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("publish calls = %d, want 2 (one failure must not stop the batch)", calls)
	}
	if bad.ProcessedAt != nil {
		t.Error("failed message marked processed")
	}
	if good.ProcessedAt == nil {
		t.Error("good message not marked processed")
	}
}

type publisherFunc func(ctx context.Context, msg *outbox.Message) error

func (f publisherFunc) Publish(ctx context.Context, msg *outbox.Message) error { return f(ctx, msg) }
