package payment_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/idempotency"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/testutil"
)

func validCreateRequest() paymentApp.CreatePaymentRequest {
	return paymentApp.CreatePaymentRequest{
		IdempotencyKey: "order-1-attempt-0001",
		MerchantID:     "merchant-1",
		OrderID:        "order-1",
		Amount:         10000,
		Currency:       "USD",
		Method:         payment.MethodCard,
		Provider:       "stripe",
	}
}

func newCreateUC(paymentRepo *testutil.MockPaymentRepository, idempotencyRepo *testutil.MockIdempotencyRepository, outboxRepo *testutil.MockOutboxRepository) *paymentApp.CreatePaymentUseCase {
	return paymentApp.NewCreatePaymentUseCase(
		paymentRepo, idempotencyRepo, outboxRepo,
		testutil.NewMockTransactionManager(),
		payment.NewStateMachine(nil),
		24*time.Hour,
	)
}

func TestCreatePayment_Success(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	uc := newCreateUC(paymentRepo, idempotencyRepo, outboxRepo)

	resp, err := uc.Execute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Replayed {
		t.Error("Replayed = true for a fresh request")
	}
	if resp.Payment.Status != payment.StatusPending {
		t.Errorf("status = %s, want pending", resp.Payment.Status)
	}

	types := outboxRepo.EventTypes()
	if len(types) != 1 || types[0] != payment.EventCreated {
		t.Errorf("outbox events = %v, want [%s]", types, payment.EventCreated)
	}
	eventTypes := paymentRepo.EventTypes(resp.Payment.ID)
	if len(eventTypes) != 1 || eventTypes[0] != payment.EventCreated {
		t.Errorf("audit events = %v, want [%s]", eventTypes, payment.EventCreated)
	}
}

func TestCreatePayment_ReplaysSameKeySamePayload(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	uc := newCreateUC(paymentRepo, idempotencyRepo, outboxRepo)

	first, err := uc.Execute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	second, err := uc.Execute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if !second.Replayed {
		t.Error("Replayed = false for a retried key")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Errorf("replay returned a different payment: %s != %s", second.Payment.ID, first.Payment.ID)
	}
	if got := len(outboxRepo.EventTypes()); got != 1 {
		t.Errorf("outbox messages = %d, want 1 (replay must not re-emit)", got)
	}
}

func TestCreatePayment_RejectsSameKeyDifferentPayload(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	uc := newCreateUC(paymentRepo, idempotencyRepo, outboxRepo)

	if _, err := uc.Execute(context.Background(), validCreateRequest()); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	req := validCreateRequest()
	req.Amount = 20000
	_, err := uc.Execute(context.Background(), req)
	if !errors.Is(err, domainErrors.ErrIdempotencyKeyMismatch) {
		t.Errorf("error = %v, want ErrIdempotencyKeyMismatch", err)
	}
}

func TestCreatePayment_InvalidKey(t *testing.T) {
	uc := newCreateUC(testutil.NewMockPaymentRepository(), testutil.NewMockIdempotencyRepository(), testutil.NewMockOutboxRepository())

	for _, key := range []string{"", "short", strings.Repeat("k", 129)} {
		req := validCreateRequest()
		req.IdempotencyKey = key
		_, err := uc.Execute(context.Background(), req)
		if !errors.Is(err, domainErrors.ErrInvalidIdempotencyKey) {
			t.Errorf("key %q: error = %v, want ErrInvalidIdempotencyKey", key, err)
		}
	}
}

func TestCreatePayment_InvalidAmount(t *testing.T) {
	uc := newCreateUC(testutil.NewMockPaymentRepository(), testutil.NewMockIdempotencyRepository(), testutil.NewMockOutboxRepository())

	req := validCreateRequest()
	req.Amount = 0
	if _, err := uc.Execute(context.Background(), req); err == nil {
		t.Fatal("expected validation error for zero amount, got nil")
	}
}

func TestCreatePayment_DuplicateRaceFallsBackToReplay(t *testing.T) {
	// Simulate losing the insert race: the Get sees nothing, the Insert
	// hits the unique constraint, and the retry lookup finds the winner.
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()

	winner := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	paymentRepo.AddPayment(winner)

	canonical := idempotency.CanonicalRequest{
		AmountCents: 10000,
		Currency:    "USD",
		Method:      "card",
		Provider:    "stripe",
		MerchantID:  "merchant-1",
		OrderID:     "order-1",
	}
	record, err := idempotency.NewRequest("order-1-attempt-0001", winner.ID, canonical, time.Hour)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	gets := 0
	idempotencyRepo.GetFunc = func(ctx context.Context, key string) (*idempotency.Request, error) {
		gets++
		if gets == 1 {
			return nil, nil // the winner has not committed yet
		}
		return record, nil
	}
	idempotencyRepo.InsertFunc = func(ctx context.Context, rec *idempotency.Request) error {
		return domainErrors.ErrDuplicateIdempotencyKey
	}

	uc := newCreateUC(paymentRepo, idempotencyRepo, outboxRepo)
	resp, err := uc.Execute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Replayed {
		t.Error("Replayed = false, want replay of the race winner")
	}
	if resp.Payment.ID != winner.ID {
		t.Errorf("payment = %s, want race winner %s", resp.Payment.ID, winner.ID)
	}
}

func TestCreatePayment_ExpiredKeyNotYetSweptIsOverwritten(t *testing.T) {
	// An expired record can linger until the sweeper removes it. It must
	// not block a fresh request with the same key: the request proceeds
	// as a new payment, not a duplicate.
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()

	stale := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	canonical := idempotency.CanonicalRequest{
		AmountCents: 10000,
		Currency:    "USD",
		Method:      "card",
		Provider:    "stripe",
		MerchantID:  "merchant-1",
		OrderID:     "order-1",
	}
	expired, err := idempotency.NewRequest("order-1-attempt-0001", stale.ID, canonical, -time.Hour)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if err := idempotencyRepo.Insert(context.Background(), expired); err != nil {
		t.Fatalf("seed expired record: %v", err)
	}

	uc := newCreateUC(paymentRepo, idempotencyRepo, outboxRepo)
	resp, err := uc.Execute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Replayed {
		t.Error("Replayed = true, want a fresh payment for an expired key")
	}
	if resp.Payment.ID == stale.ID {
		t.Error("payment reused the expired record's payment")
	}
}

func TestCreatePayment_TransactionFailureRollsThrough(t *testing.T) {
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()

	txErr := errors.New("connection reset")
	txManager := testutil.NewMockTransactionManager()
	txManager.WithTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txErr
	}

	uc := paymentApp.NewCreatePaymentUseCase(
		paymentRepo, idempotencyRepo, outboxRepo, txManager,
		payment.NewStateMachine(nil), 24*time.Hour)

	_, err := uc.Execute(context.Background(), validCreateRequest())
	if !errors.Is(err, txErr) {
		t.Errorf("error = %v, want %v", err, txErr)
	}
}
