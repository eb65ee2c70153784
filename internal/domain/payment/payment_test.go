package payment_test

import (
	"testing"

	"github.com/cassiomorais/payflow/internal/domain/payment"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name       string
		merchantID string
		orderID    string
		amount     payment.Amount
		provider   string
		wantErr    bool
	}{
		{
			name:       "valid",
			merchantID: "merchant-1",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: 5000, Currency: "USD"},
			provider:   "stripe",
		},
		{
			name:       "zero amount",
			merchantID: "merchant-1",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: 0, Currency: "USD"},
			provider:   "stripe",
			wantErr:    true,
		},
		{
			name:       "negative amount",
			merchantID: "merchant-1",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: -100, Currency: "USD"},
			provider:   "stripe",
			wantErr:    true,
		},
		{
			name:       "bad currency",
			merchantID: "merchant-1",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: 5000, Currency: "USDOLLAR"},
			provider:   "stripe",
			wantErr:    true,
		},
		{
			name:       "empty merchant",
			merchantID: "",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: 5000, Currency: "USD"},
			provider:   "stripe",
			wantErr:    true,
		},
		{
			name:       "empty order",
			merchantID: "merchant-1",
			orderID:    "",
			amount:     payment.Amount{ValueCents: 5000, Currency: "USD"},
			provider:   "stripe",
			wantErr:    true,
		},
		{
			name:       "empty provider",
			merchantID: "merchant-1",
			orderID:    "order-1",
			amount:     payment.Amount{ValueCents: 5000, Currency: "USD"},
			provider:   "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := payment.New(tt.merchantID, tt.orderID, tt.amount, payment.MethodCard, tt.provider)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if p.Status != payment.StatusPending {
				t.Errorf("status = %s, want %s", p.Status, payment.StatusPending)
			}
			if p.ID.String() == "" {
				t.Error("id not assigned")
			}
		})
	}
}

func TestPayment_IsTerminal(t *testing.T) {
	tests := []struct {
		status payment.Status
		want   bool
	}{
		{payment.StatusPending, false},
		{payment.StatusProcessing, false},
		{payment.StatusCompleted, false},
		{payment.StatusPartiallyRefunded, false},
		{payment.StatusFailed, true},
		{payment.StatusRefunded, true},
	}
	for _, tt := range tests {
		p := &payment.Payment{Status: tt.status}
		if got := p.IsTerminal(); got != tt.want {
			t.Errorf("IsTerminal() for %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPayment_WebhookURLOverride(t *testing.T) {
	p := newPending(t)

	if got := p.WebhookURLOverride(); got != "" {
		t.Errorf("override with empty metadata = %q, want empty", got)
	}

	p.Metadata["callback_url"] = "https://legacy.example.com/hook"
	if got := p.WebhookURLOverride(); got != "https://legacy.example.com/hook" {
		t.Errorf("callback_url override = %q", got)
	}

	p.Metadata["webhook_url"] = "https://new.example.com/hook"
	if got := p.WebhookURLOverride(); got != "https://new.example.com/hook" {
		t.Errorf("webhook_url should win over callback_url, got %q", got)
	}

	p.Metadata["webhook_url"] = 42 // non-string values are ignored
	if got := p.WebhookURLOverride(); got != "https://legacy.example.com/hook" {
		t.Errorf("non-string webhook_url should fall through, got %q", got)
	}
}

func TestAmount_String(t *testing.T) {
	a := payment.Amount{ValueCents: 12345, Currency: "USD"}
	if got := a.String(); got != "123.45 USD" {
		t.Errorf("String() = %q, want %q", got, "123.45 USD")
	}
}
