package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/idempotency"
	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
)

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	IdempotencyKey string
	MerchantID     string
	OrderID        string
	Amount         int64 // in cents
	Currency       string
	Method         payment.Method
	Provider       string
	Metadata       map[string]any
}

// CreatePaymentResponse holds the result of creating a payment.
// Replayed is true when an idempotent retry returned the original
// payment instead of creating a new one.
type CreatePaymentResponse struct {
	Payment  *payment.Payment
	Replayed bool
}

// CreatePaymentUseCase guards payment creation with the idempotency key
// check and persists the payment, its idempotency record, and the
// payment.created outbox message in one transaction.
type CreatePaymentUseCase struct {
	paymentRepo     payment.Repository
	idempotencyRepo idempotency.Repository
	outboxRepo      outbox.Repository
	txManager       TransactionManager
	machine         *payment.StateMachine
	idempotencyTTL  time.Duration
}

// NewCreatePaymentUseCase creates a new CreatePaymentUseCase.
func NewCreatePaymentUseCase(
	paymentRepo payment.Repository,
	idempotencyRepo idempotency.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	machine *payment.StateMachine,
	idempotencyTTL time.Duration,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		paymentRepo:     paymentRepo,
		idempotencyRepo: idempotencyRepo,
		outboxRepo:      outboxRepo,
		txManager:       txManager,
		machine:         machine,
		idempotencyTTL:  idempotencyTTL,
	}
}

// Execute creates a payment, or replays the original response when the
// idempotency key was already used with the same payload. The same key
// with a different payload is rejected, never silently accepted.
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if err := idempotency.ValidateKey(req.IdempotencyKey); err != nil {
		return nil, err
	}

	canonical := idempotency.CanonicalRequest{
		AmountCents: req.Amount,
		Currency:    req.Currency,
		Method:      string(req.Method),
		Provider:    req.Provider,
		MerchantID:  req.MerchantID,
		OrderID:     req.OrderID,
	}

	// 1. Idempotency check. Expired records are treated as absent by the
	// repository, so a reused key past its TTL starts a fresh payment.
	if resp, err := uc.replayExisting(ctx, req.IdempotencyKey, canonical); resp != nil || err != nil {
		return resp, err
	}

	// 2. Build the pending payment.
	p, err := payment.New(req.MerchantID, req.OrderID,
		payment.Amount{ValueCents: req.Amount, Currency: req.Currency},
		req.Method, req.Provider)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Metadata {
		p.Metadata[k] = v
	}

	record, err := idempotency.NewRequest(req.IdempotencyKey, p.ID, canonical, uc.idempotencyTTL)
	if err != nil {
		return nil, err
	}

	// 3. Payment, idempotency record and outbox message commit together:
	// either the state change and its event record both exist, or neither.
	createdEvent := payment.NewCreatedEvent(p)
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Create(txCtx, p); err != nil {
			return err
		}
		if err := uc.idempotencyRepo.Insert(txCtx, record); err != nil {
			return err
		}
		if err := uc.outboxRepo.Insert(txCtx, outbox.NewMessage(outbox.DefaultTopic, createdEvent.Type(), createdEvent.Payload())); err != nil {
			return err
		}
		return uc.paymentRepo.AddEvent(txCtx, payment.NewEventRecord(createdEvent))
	})
	if err != nil {
		// Lost the race on the key's unique constraint: another request
		// with the same key committed first. Fall back to a lookup.
		if errors.Is(err, domainErrors.ErrDuplicateIdempotencyKey) {
			if resp, lookupErr := uc.replayExisting(ctx, req.IdempotencyKey, canonical); resp != nil || lookupErr != nil {
				return resp, lookupErr
			}
		}
		return nil, err
	}

	return &CreatePaymentResponse{Payment: p, Replayed: false}, nil
}

// replayExisting returns the original payment for a reused key, or the
// mismatch error when the payload hash differs. (nil, nil) means no
// usable record exists and the caller should proceed.
func (uc *CreatePaymentUseCase) replayExisting(ctx context.Context, key string, canonical idempotency.CanonicalRequest) (*CreatePaymentResponse, error) {
	record, err := uc.idempotencyRepo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	if !record.Matches(canonical) {
		return nil, domainErrors.NewDomainError(
			"idempotency_key_mismatch",
			fmt.Sprintf("idempotency key %q was already used with a different request payload", key),
			domainErrors.ErrIdempotencyKeyMismatch,
		)
	}
	p, err := uc.paymentRepo.GetByID(ctx, record.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment for idempotency key %q: %w", key, err)
	}
	return &CreatePaymentResponse{Payment: p, Replayed: true}, nil
}
