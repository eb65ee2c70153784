package testutil

import (
	"time"

	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/google/uuid"
)

func NewTestPayment(merchantID, orderID string, amountCents int64, currency, provider string) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		ID:         uuid.New(),
		MerchantID: merchantID,
		OrderID:    orderID,
		Amount:     payment.Amount{ValueCents: amountCents, Currency: currency},
		Method:     payment.MethodCard,
		Provider:   provider,
		Status:     payment.StatusPending,
		Metadata:   make(map[string]any),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewCompletedPayment(merchantID, orderID string, amountCents int64, currency, provider string) *payment.Payment {
	p := NewTestPayment(merchantID, orderID, amountCents, currency, provider)
	p.Status = payment.StatusCompleted
	txn := provider + "_txn_test"
	p.TransactionID = &txn
	completedAt := time.Now()
	p.CompletedAt = &completedAt
	return p
}

func StrPtr(s string) *string { return &s }
