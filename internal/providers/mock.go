package providers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/google/uuid"
)

// MockProvider simulates an external provider with configurable latency
// and failure behavior. Used in local development and tests.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithTimeoutRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.timeoutRate = rate }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:        name,
		failureRate: 0.0,
		latency:     100 * time.Millisecond,
		timeoutRate: 0.0,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// DefaultMocks returns the sandbox provider set used when no real
// adapters are wired in.
func DefaultMocks() []Provider {
	return []Provider{
		NewMockProvider("stripe", WithLatency(200*time.Millisecond), WithFailureRate(0.05)),
		NewMockProvider("paypal", WithLatency(300*time.Millisecond), WithFailureRate(0.08)),
		NewMockProvider("adyen", WithLatency(250*time.Millisecond), WithFailureRate(0.06)),
	}
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Process(ctx context.Context, req ProcessRequest) (*Result, error) {
	// Simulate latency
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Simulate timeout
	if rand.Float64() < p.timeoutRate {
		return nil, domainErrors.ErrProviderTimeout
	}

	// Simulate rejection
	if rand.Float64() < p.failureRate {
		return &Result{
			Success:       false,
			FailureReason: fmt.Sprintf("%s: simulated processing failure for payment %s", p.name, req.PaymentID),
		}, domainErrors.ErrProviderRejected
	}

	return &Result{
		Success:       true,
		TransactionID: fmt.Sprintf("%s_txn_%s", p.name, uuid.New().String()[:8]),
		Metadata:      map[string]any{"provider": p.name},
	}, nil
}

func (p *MockProvider) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() < p.failureRate {
		return &Result{
			Success:       false,
			FailureReason: fmt.Sprintf("%s: simulated refund failure", p.name),
		}, domainErrors.ErrProviderRejected
	}

	return &Result{
		Success:       true,
		TransactionID: fmt.Sprintf("%s_refund_%s", p.name, uuid.New().String()[:8]),
	}, nil
}
