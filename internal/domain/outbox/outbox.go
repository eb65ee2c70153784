package outbox

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTopic is the stream all payment events are published to.
const DefaultTopic = "payments.events"

// Message is a transactional outbox row. It is inserted in the same
// database transaction as the aggregate mutation that produced it and
// marked processed only after the publish call succeeds. Rows are never
// deleted on failure; the dispatcher retries them on every poll cycle.
type Message struct {
	ID          uuid.UUID
	EventType   string
	Topic       string
	Payload     map[string]any
	CreatedAt   time.Time
	ProcessedAt *time.Time
	RetryCount  int
	LastError   *string
}

// NewMessage builds a pending outbox message for the given event.
func NewMessage(topic, eventType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New(),
		EventType: eventType,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Processed reports whether the message was successfully published.
func (m *Message) Processed() bool {
	return m.ProcessedAt != nil
}
