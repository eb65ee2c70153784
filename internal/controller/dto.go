package controller

import (
	"math"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/domain/webhook"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string enums,
// validation tags). Controllers convert these to application-layer inputs
// before calling business logic.

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	MerchantID string         `json:"merchant_id" validate:"required"`
	OrderID    string         `json:"order_id" validate:"required"`
	Amount     float64        `json:"amount" validate:"required,gt=0"`
	Currency   string         `json:"currency" validate:"required,len=3"`
	Method     string         `json:"method" validate:"required,oneof=card bank_transfer wallet"`
	Provider   string         `json:"provider" validate:"required"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RefundPaymentRequest holds the input for refunding a payment.
// A zero or omitted amount means a full refund.
type RefundPaymentRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
}

// --- Response DTOs ---

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID             string         `json:"id"`
	MerchantID     string         `json:"merchant_id"`
	OrderID        string         `json:"order_id"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	Method         string         `json:"method"`
	Provider       string         `json:"provider"`
	Status         string         `json:"status"`
	TransactionID  *string        `json:"transaction_id,omitempty"`
	FailureReason  *string        `json:"failure_reason,omitempty"`
	RefundedAmount float64        `json:"refunded_amount"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// EventResponse represents one audit-trail entry for a payment.
type EventResponse struct {
	ID        string         `json:"id"`
	PaymentID string         `json:"payment_id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeliveryResponse represents a webhook delivery in API responses.
type DeliveryResponse struct {
	ID             string     `json:"id"`
	PaymentID      string     `json:"payment_id"`
	URL            string     `json:"url"`
	EventType      string     `json:"event_type"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	LastHTTPStatus *int       `json:"last_http_status,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ProviderStateResponse reports a provider's circuit breaker state.
type ProviderStateResponse struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromPayment converts a domain payment to API response.
func FromPayment(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:             p.ID.String(),
		MerchantID:     p.MerchantID,
		OrderID:        p.OrderID,
		Amount:         centsToFloat(p.Amount.ValueCents),
		Currency:       p.Amount.Currency,
		Method:         string(p.Method),
		Provider:       p.Provider,
		Status:         string(p.Status),
		TransactionID:  p.TransactionID,
		FailureReason:  p.FailureReason,
		RefundedAmount: centsToFloat(p.RefundedCents),
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		CompletedAt:    p.CompletedAt,
	}
}

// FromEventRecord converts an audit event to API response.
func FromEventRecord(e *payment.EventRecord) *EventResponse {
	return &EventResponse{
		ID:        e.ID.String(),
		PaymentID: e.PaymentID.String(),
		EventType: e.EventType,
		EventData: e.EventData,
		CreatedAt: e.CreatedAt,
	}
}

// FromDelivery converts a webhook delivery to API response.
func FromDelivery(d *webhook.Delivery) *DeliveryResponse {
	return &DeliveryResponse{
		ID:             d.ID.String(),
		PaymentID:      d.PaymentID.String(),
		URL:            d.URL,
		EventType:      d.EventType,
		Status:         string(d.Status),
		RetryCount:     d.RetryCount,
		MaxRetries:     d.MaxRetries,
		NextRetryAt:    d.NextRetryAt,
		LastError:      d.LastError,
		LastHTTPStatus: d.LastHTTPStatus,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
	}
}

// floatToCents converts a float currency amount to cents. Rounding is
// required: 19.99*100 is 1998.9999... in binary and truncation would
// lose a cent.
func floatToCents(f float64) int64 {
	return int64(math.Round(f * 100))
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
