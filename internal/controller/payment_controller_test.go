package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/cassiomorais/payflow/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type controllerFixture struct {
	paymentRepo *testutil.MockPaymentRepository
	outboxRepo  *testutil.MockOutboxRepository
	gateway     *testutil.MockProviderGateway
	router      chi.Router
}

func newControllerFixture() *controllerFixture {
	paymentRepo := testutil.NewMockPaymentRepository()
	idempotencyRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	gateway := testutil.NewMockProviderGateway()
	txManager := testutil.NewMockTransactionManager()
	machine := payment.NewStateMachine(nil)

	createUC := paymentApp.NewCreatePaymentUseCase(
		paymentRepo, idempotencyRepo, outboxRepo, txManager, machine, 24*time.Hour)
	processUC := paymentApp.NewProcessPaymentUseCase(
		paymentRepo, outboxRepo, txManager, gateway, machine)
	refundUC := paymentApp.NewRefundPaymentUseCase(
		paymentRepo, outboxRepo, txManager, gateway, machine)

	h := NewPaymentController(createUC, processUC, refundUC, paymentRepo, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/payments", h.CreatePayment)
	r.Get("/payments/{id}", h.GetPayment)
	r.Get("/payments", h.ListPayments)
	r.Get("/payments/{id}/events", h.GetEvents)
	r.Post("/payments/{id}/refund", h.RefundPayment)

	return &controllerFixture{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		router:      r,
	}
}

func createBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"merchant_id": "merchant-1",
		"order_id":    "order-1",
		"amount":      100.00,
		"currency":    "USD",
		"method":      "card",
		"provider":    "stripe",
	})
	return body
}

func postPayment(t *testing.T, router chi.Router, body []byte, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodePayment(t *testing.T, rec *httptest.ResponseRecorder) PaymentResponse {
	t.Helper()
	var resp PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreatePayment_EndToEnd(t *testing.T) {
	f := newControllerFixture()

	rec := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	resp := decodePayment(t, rec)
	if resp.Status != string(payment.StatusCompleted) {
		t.Errorf("payment status = %s, want completed", resp.Status)
	}
	if resp.Amount != 100.00 {
		t.Errorf("amount = %v, want 100.00", resp.Amount)
	}
	if resp.TransactionID == nil {
		t.Error("transaction_id missing")
	}
}

func TestCreatePayment_ReplayReturns200(t *testing.T) {
	f := newControllerFixture()

	first := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	firstResp := decodePayment(t, first)

	second := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if second.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", second.Code)
	}
	secondResp := decodePayment(t, second)
	if secondResp.ID != firstResp.ID {
		t.Errorf("replay returned different payment: %s != %s", secondResp.ID, firstResp.ID)
	}
	if f.gateway.ProcessCalls != 1 {
		t.Errorf("provider calls = %d, want 1 (replay must not reprocess)", f.gateway.ProcessCalls)
	}
}

func TestCreatePayment_KeyMismatchReturns409(t *testing.T) {
	f := newControllerFixture()

	if rec := postPayment(t, f.router, createBody(), "order-1-attempt-0001"); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", rec.Code)
	}

	altered, _ := json.Marshal(map[string]any{
		"merchant_id": "merchant-1",
		"order_id":    "order-1",
		"amount":      250.00,
		"currency":    "USD",
		"method":      "card",
		"provider":    "stripe",
	})
	rec := postPayment(t, f.router, altered, "order-1-attempt-0001")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePayment_CircuitOpenReturns503(t *testing.T) {
	f := newControllerFixture()
	f.gateway.ProcessFunc = func(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error) {
		return nil, domainErrors.ErrCircuitOpen
	}

	rec := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePayment_ProviderRejectionReflectedInStatus(t *testing.T) {
	f := newControllerFixture()
	f.gateway.ProcessFunc = func(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error) {
		return &providers.Result{Success: false, FailureReason: "card declined"}, nil
	}

	rec := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (rejection lives in the payment status)", rec.Code)
	}
	resp := decodePayment(t, rec)
	if resp.Status != string(payment.StatusFailed) {
		t.Errorf("payment status = %s, want failed", resp.Status)
	}
	if resp.FailureReason == nil || *resp.FailureReason != "card declined" {
		t.Errorf("failure_reason = %v", resp.FailureReason)
	}
}

func TestCreatePayment_InvalidBody(t *testing.T) {
	f := newControllerFixture()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing merchant", map[string]any{"order_id": "o", "amount": 10.0, "currency": "USD", "method": "card", "provider": "stripe"}},
		{"zero amount", map[string]any{"merchant_id": "m", "order_id": "o", "amount": 0, "currency": "USD", "method": "card", "provider": "stripe"}},
		{"bad currency", map[string]any{"merchant_id": "m", "order_id": "o", "amount": 10.0, "currency": "US", "method": "card", "provider": "stripe"}},
		{"bad method", map[string]any{"merchant_id": "m", "order_id": "o", "amount": 10.0, "currency": "USD", "method": "cash", "provider": "stripe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			rec := postPayment(t, f.router, body, "order-1-attempt-0001")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetPayment(t *testing.T) {
	f := newControllerFixture()
	p := testutil.NewCompletedPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	f.paymentRepo.AddPayment(p)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodePayment(t, rec)
	if resp.ID != p.ID.String() {
		t.Errorf("id = %s, want %s", resp.ID, p.ID)
	}
}

func TestGetPayment_NotFound(t *testing.T) {
	f := newControllerFixture()

	req := httptest.NewRequest(http.MethodGet, "/payments/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetPayment_InvalidID(t *testing.T) {
	f := newControllerFixture()

	req := httptest.NewRequest(http.MethodGet, "/payments/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRefundPayment_Full(t *testing.T) {
	f := newControllerFixture()
	p := testutil.NewCompletedPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	f.paymentRepo.AddPayment(p)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+p.ID.String()+"/refund", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodePayment(t, rec)
	if resp.Status != string(payment.StatusRefunded) {
		t.Errorf("status = %s, want refunded", resp.Status)
	}
	if resp.RefundedAmount != 100.00 {
		t.Errorf("refunded_amount = %v, want 100.00", resp.RefundedAmount)
	}
}

func TestRefundPayment_Partial(t *testing.T) {
	f := newControllerFixture()
	p := testutil.NewCompletedPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	f.paymentRepo.AddPayment(p)

	body, _ := json.Marshal(map[string]any{"amount": 25.00})
	req := httptest.NewRequest(http.MethodPost, "/payments/"+p.ID.String()+"/refund", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodePayment(t, rec)
	if resp.Status != string(payment.StatusPartiallyRefunded) {
		t.Errorf("status = %s, want partially_refunded", resp.Status)
	}
	if resp.RefundedAmount != 25.00 {
		t.Errorf("refunded_amount = %v, want 25.00", resp.RefundedAmount)
	}
}

func TestRefundPayment_InvalidStateReturns409(t *testing.T) {
	f := newControllerFixture()
	p := testutil.NewTestPayment("merchant-1", "order-1", 10000, "USD", "stripe")
	f.paymentRepo.AddPayment(p)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+p.ID.String()+"/refund", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestGetEvents(t *testing.T) {
	f := newControllerFixture()

	rec := postPayment(t, f.router, createBody(), "order-1-attempt-0001")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	created := decodePayment(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+created.ID+"/events", nil)
	eventsRec := httptest.NewRecorder()
	f.router.ServeHTTP(eventsRec, req)

	if eventsRec.Code != http.StatusOK {
		t.Fatalf("events status = %d, want 200", eventsRec.Code)
	}
	var events []EventResponse
	if err := json.NewDecoder(eventsRec.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	// created, processing, completed
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	want := []string{payment.EventCreated, payment.EventProcessing, payment.EventCompleted}
	for i, e := range events {
		if e.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.EventType, want[i])
		}
	}
}
