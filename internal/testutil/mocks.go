package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/idempotency"
	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is a mock implementation of payment.Repository.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
	events   map[uuid.UUID][]*payment.EventRecord

	CreateFunc    func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc   func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	UpdateFunc    func(ctx context.Context, p *payment.Payment) error
	ListFunc      func(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	AddEventFunc  func(ctx context.Context, record *payment.EventRecord) error
	GetEventsFunc func(ctx context.Context, paymentID uuid.UUID) ([]*payment.EventRecord, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
		events:   make(map[uuid.UUID][]*payment.EventRecord),
	}
}

// AddPayment pre-populates the mock with a payment.
func (m *MockPaymentRepository) AddPayment(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*payment.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockPaymentRepository) AddEvent(ctx context.Context, record *payment.EventRecord) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[record.PaymentID] = append(m.events[record.PaymentID], record)
	return nil
}

func (m *MockPaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.EventRecord, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[paymentID], nil
}

// EventTypes returns the recorded event types for a payment, in order.
func (m *MockPaymentRepository) EventTypes(paymentID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events[paymentID]))
	for _, e := range m.events[paymentID] {
		types = append(types, e.EventType)
	}
	return types
}

// --- Idempotency Repository Mock ---

// MockIdempotencyRepository is a mock implementation of idempotency.Repository.
type MockIdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]*idempotency.Request

	GetFunc           func(ctx context.Context, key string) (*idempotency.Request, error)
	InsertFunc        func(ctx context.Context, rec *idempotency.Request) error
	DeleteExpiredFunc func(ctx context.Context, limit int) (int64, error)
}

func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{records: make(map[string]*idempotency.Request)}
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Request, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Expired(time.Now()) {
		return nil, nil
	}
	return rec, nil
}

func (m *MockIdempotencyRepository) Insert(ctx context.Context, rec *idempotency.Request) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.Key]; ok && !existing.Expired(time.Now()) {
		return domainErrors.ErrDuplicateIdempotencyKey
	}
	m.records[rec.Key] = rec
	return nil
}

func (m *MockIdempotencyRepository) DeleteExpired(ctx context.Context, limit int) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	now := time.Now()
	for key, rec := range m.records {
		if deleted >= int64(limit) {
			break
		}
		if rec.Expired(now) {
			delete(m.records, key)
			deleted++
		}
	}
	return deleted, nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu       sync.Mutex
	Messages []*outbox.Message

	InsertFunc        func(ctx context.Context, msg *outbox.Message) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Message, error)
	MarkProcessedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID, lastError string) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, msg *outbox.Message) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Message
	for _, msg := range m.Messages {
		if len(pending) >= limit {
			break
		}
		if msg.ProcessedAt == nil {
			pending = append(pending, msg)
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.ID == id {
			now := time.Now()
			msg.ProcessedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, lastError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.ID == id {
			msg.RetryCount++
			msg.LastError = &lastError
		}
	}
	return nil
}

// EventTypes returns the inserted event types in order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Messages))
	for _, msg := range m.Messages {
		types = append(types, msg.EventType)
	}
	return types
}

// --- Webhook Repository Mock ---

// MockWebhookRepository is a mock implementation of webhook.Repository.
type MockWebhookRepository struct {
	mu         sync.Mutex
	Deliveries []*webhook.Delivery

	InsertFunc        func(ctx context.Context, d *webhook.Delivery) error
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error)
	GetDueFunc        func(ctx context.Context, limit int) ([]*webhook.Delivery, error)
	UpdateFunc        func(ctx context.Context, d *webhook.Delivery) error
	ListByPaymentFunc func(ctx context.Context, paymentID uuid.UUID) ([]*webhook.Delivery, error)
	ListFunc          func(ctx context.Context, status *webhook.Status, limit, offset int) ([]*webhook.Delivery, error)
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{}
}

func (m *MockWebhookRepository) Insert(ctx context.Context, d *webhook.Delivery) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deliveries = append(m.Deliveries, d)
	return nil
}

func (m *MockWebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.Deliveries {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, domainErrors.ErrDeliveryNotFound
}

func (m *MockWebhookRepository) GetDue(ctx context.Context, limit int) ([]*webhook.Delivery, error) {
	if m.GetDueFunc != nil {
		return m.GetDueFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var due []*webhook.Delivery
	for _, d := range m.Deliveries {
		if len(due) >= limit {
			break
		}
		if d.Status == webhook.StatusPending && d.RetryCount < d.MaxRetries &&
			d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			due = append(due, d)
		}
	}
	return due, nil
}

func (m *MockWebhookRepository) Update(ctx context.Context, d *webhook.Delivery) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.Deliveries {
		if existing.ID == d.ID {
			m.Deliveries[i] = d
			return nil
		}
	}
	return domainErrors.ErrDeliveryNotFound
}

func (m *MockWebhookRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*webhook.Delivery, error) {
	if m.ListByPaymentFunc != nil {
		return m.ListByPaymentFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*webhook.Delivery
	for _, d := range m.Deliveries {
		if d.PaymentID == paymentID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *MockWebhookRepository) List(ctx context.Context, status *webhook.Status, limit, offset int) ([]*webhook.Delivery, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, status, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*webhook.Delivery
	for _, d := range m.Deliveries {
		if status == nil || d.Status == *status {
			result = append(result, d)
		}
	}
	return result, nil
}

// --- Provider Gateway Mock ---

// MockProviderGateway is a mock implementation of the provider gateway
// port. By default every call succeeds with a canned transaction id.
type MockProviderGateway struct {
	mu           sync.Mutex
	ProcessCalls int
	RefundCalls  int

	ProcessFunc func(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error)
	RefundFunc  func(ctx context.Context, name string, req providers.RefundRequest) (*providers.Result, error)
}

func NewMockProviderGateway() *MockProviderGateway {
	return &MockProviderGateway{}
}

func (m *MockProviderGateway) Process(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error) {
	m.mu.Lock()
	m.ProcessCalls++
	m.mu.Unlock()
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, name, req)
	}
	return &providers.Result{Success: true, TransactionID: name + "_txn_test"}, nil
}

func (m *MockProviderGateway) Refund(ctx context.Context, name string, req providers.RefundRequest) (*providers.Result, error) {
	m.mu.Lock()
	m.RefundCalls++
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, name, req)
	}
	return &providers.Result{Success: true, TransactionID: name + "_refund_test"}, nil
}
