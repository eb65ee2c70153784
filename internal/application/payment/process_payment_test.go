package payment_test

import (
	"context"
	"errors"
	"testing"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/cassiomorais/payflow/internal/testutil"
	"github.com/google/uuid"
)

func newProcessUC(paymentRepo *testutil.MockPaymentRepository, outboxRepo *testutil.MockOutboxRepository, gateway *testutil.MockProviderGateway) *paymentApp.ProcessPaymentUseCase {
	return paymentApp.NewProcessPaymentUseCase(
		paymentRepo, outboxRepo,
		testutil.NewMockTransactionManager(),
		gateway,
		payment.NewStateMachine(nil),
	)
}

func TestProcessPayment_Success(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	gateway := testutil.NewMockProviderGateway()

	p := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	paymentRepo.AddPayment(p)

	uc := newProcessUC(paymentRepo, outboxRepo, gateway)
	if err := uc.Execute(context.Background(), p.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := paymentRepo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.TransactionID == nil || *got.TransactionID == "" {
		t.Error("transaction id not recorded")
	}

	types := outboxRepo.EventTypes()
	want := []string{payment.EventProcessing, payment.EventCompleted}
	if len(types) != len(want) {
		t.Fatalf("outbox events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("outbox event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestProcessPayment_ProviderRejection(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	gateway := testutil.NewMockProviderGateway()
	gateway.ProcessFunc = func(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error) {
		return &providers.Result{Success: false, FailureReason: "card declined"}, nil
	}

	p := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	paymentRepo.AddPayment(p)

	uc := newProcessUC(paymentRepo, outboxRepo, gateway)
	err := uc.Execute(context.Background(), p.ID)
	if err == nil {
		t.Fatal("expected failure error, got nil")
	}

	got, _ := paymentRepo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != "card declined" {
		t.Errorf("failure reason = %v, want card declined", got.FailureReason)
	}

	types := outboxRepo.EventTypes()
	want := []string{payment.EventProcessing, payment.EventFailed}
	if len(types) != len(want) || types[1] != want[1] {
		t.Errorf("outbox events = %v, want %v", types, want)
	}
}

func TestProcessPayment_CircuitOpen(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	gateway := testutil.NewMockProviderGateway()
	gateway.ProcessFunc = func(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error) {
		return nil, domainErrors.ErrCircuitOpen
	}

	p := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	paymentRepo.AddPayment(p)

	uc := newProcessUC(paymentRepo, outboxRepo, gateway)
	err := uc.Execute(context.Background(), p.ID)
	if !errors.Is(err, domainErrors.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen surfaced to the caller", err)
	}

	got, _ := paymentRepo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestProcessPayment_NonPendingIsNoOp(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	gateway := testutil.NewMockProviderGateway()

	p := testutil.NewCompletedPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	paymentRepo.AddPayment(p)

	uc := newProcessUC(paymentRepo, outboxRepo, gateway)
	if err := uc.Execute(context.Background(), p.ID); err != nil {
		t.Fatalf("Execute() on completed payment error = %v, want nil", err)
	}
	if gateway.ProcessCalls != 0 {
		t.Errorf("provider invoked %d times for an already-completed payment", gateway.ProcessCalls)
	}
	if len(outboxRepo.EventTypes()) != 0 {
		t.Errorf("outbox events emitted for a no-op: %v", outboxRepo.EventTypes())
	}
}

func TestProcessPayment_NotFound(t *testing.T) {
	uc := newProcessUC(testutil.NewMockPaymentRepository(), testutil.NewMockOutboxRepository(), testutil.NewMockProviderGateway())

	err := uc.Execute(context.Background(), uuid.New())
	if !errors.Is(err, domainErrors.ErrPaymentNotFound) {
		t.Errorf("error = %v, want ErrPaymentNotFound", err)
	}
}
