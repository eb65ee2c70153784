package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/google/uuid"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
)

// Request is the stored record for a used idempotency key. One key maps
// to exactly one payment and one request hash; a retry with the same key
// but a different hash is a client error.
type Request struct {
	Key         string
	PaymentID   uuid.UUID
	RequestHash string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// CanonicalRequest holds the mutable request fields covered by the hash.
// Free-form metadata is deliberately excluded so cosmetic changes do not
// break retries.
type CanonicalRequest struct {
	AmountCents int64
	Currency    string
	Method      string
	Provider    string
	MerchantID  string
	OrderID     string
}

// Hash returns the stable SHA-256 digest of the canonical fields.
func (c CanonicalRequest) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(
		"%d\n%s\n%s\n%s\n%s\n%s",
		c.AmountCents, c.Currency, c.Method, c.Provider, c.MerchantID, c.OrderID,
	)))
	return hex.EncodeToString(sum[:])
}

// ValidateKey checks the client-supplied key length bounds.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		return errors.ErrInvalidIdempotencyKey
	}
	return nil
}

// NewRequest binds a key to a payment for the given TTL.
func NewRequest(key string, paymentID uuid.UUID, canonical CanonicalRequest, ttl time.Duration) (*Request, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Request{
		Key:         key,
		PaymentID:   paymentID,
		RequestHash: canonical.Hash(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// Expired reports whether the record is past its TTL at the given instant.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Matches reports whether a retried request carries the same payload.
func (r *Request) Matches(canonical CanonicalRequest) bool {
	return r.RequestHash == canonical.Hash()
}
