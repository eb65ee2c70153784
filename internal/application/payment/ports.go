package payment

import (
	"context"

	"github.com/cassiomorais/payflow/internal/providers"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProviderGateway is the resilient provider-call capability: every call
// goes through the per-provider circuit breaker. Satisfied by
// providers.Factory.
type ProviderGateway interface {
	Process(ctx context.Context, name string, req providers.ProcessRequest) (*providers.Result, error)
	Refund(ctx context.Context, name string, req providers.RefundRequest) (*providers.Result, error)
}
