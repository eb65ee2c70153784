package providers

import (
	"context"
)

// Result is the normalized outcome of a provider call.
type Result struct {
	Success       bool
	TransactionID string
	FailureReason string
	Metadata      map[string]any
}

// Provider is the common contract implemented by every external payment
// provider adapter. Concrete adapters live outside this service; the
// engine only depends on this interface.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// Process charges a payment through the provider.
	Process(ctx context.Context, req ProcessRequest) (*Result, error)
	// Refund refunds a previously captured payment.
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
}

type ProcessRequest struct {
	PaymentID   string
	MerchantID  string
	OrderID     string
	AmountCents int64 // in cents
	Currency    string
	Method      string
	Metadata    map[string]any
}

type RefundRequest struct {
	PaymentID     string
	TransactionID string
	AmountCents   int64 // in cents
	Currency      string
}
