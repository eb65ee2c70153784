package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Method represents how the customer pays.
type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
)

// Payment represents a payment entity. Status only changes through the
// state machine; every accepted transition appends exactly one domain event.
type Payment struct {
	ID            uuid.UUID
	MerchantID    string
	OrderID       string
	Amount        Amount
	Method        Method
	Provider      string
	Status        Status
	TransactionID *string
	FailureReason *string
	RefundedCents int64
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	return validateAmount(a)
}

// New creates a new payment in the pending state.
func New(merchantID, orderID string, amount Amount, method Method, provider string) (*Payment, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if merchantID == "" {
		return nil, errors.NewValidationError("merchant_id", "cannot be empty")
	}
	if orderID == "" {
		return nil, errors.NewValidationError("order_id", "cannot be empty")
	}
	if provider == "" {
		return nil, errors.NewValidationError("provider", "cannot be empty")
	}

	now := time.Now()
	return &Payment{
		ID:         uuid.New(),
		MerchantID: merchantID,
		OrderID:    orderID,
		Amount:     amount,
		Method:     method,
		Provider:   provider,
		Status:     StatusPending,
		Metadata:   make(map[string]any),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsTerminal checks if the payment is in a state with no outgoing transitions.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusFailed || p.Status == StatusRefunded
}

// WebhookURLOverride returns the per-payment callback URL from metadata, if set.
// `webhook_url` wins over the legacy `callback_url` key.
func (p *Payment) WebhookURLOverride() string {
	for _, key := range []string{"webhook_url", "callback_url"} {
		if v, ok := p.Metadata[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func validateAmount(amount Amount) error {
	if amount.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if amount.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	// Simple currency validation (3-letter code)
	if len(amount.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}
