package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/webhook"
)

const (
	// DefaultSendTimeout bounds a single delivery attempt.
	DefaultSendTimeout = 30 * time.Second

	userAgent = "payflow-webhooks/1.0"
)

// Sender performs one HTTP delivery attempt for a webhook. Any 2xx
// response counts as delivered; everything else is a failure the
// scheduler retries with backoff.
type Sender struct {
	client *http.Client
}

// NewSender creates a Sender with the given per-attempt timeout.
// A non-positive timeout falls back to DefaultSendTimeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Send posts the delivery payload to its target URL. It returns the
// HTTP status code when a response was received (nil otherwise) and a
// non-nil error for any non-2xx outcome.
func (s *Sender) Send(ctx context.Context, d *webhook.Delivery) (*int, error) {
	body, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	status := resp.StatusCode
	if status < 200 || status > 299 {
		return &status, fmt.Errorf("webhook endpoint returned %d", status)
	}
	return &status, nil
}
