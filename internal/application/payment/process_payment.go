package payment

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/google/uuid"
)

// ProcessPaymentUseCase drives a pending payment through the provider
// call and into completed or failed. Safe to invoke more than once for
// the same payment: anything past pending is a no-op, which makes the
// worker-side consumer idempotent.
type ProcessPaymentUseCase struct {
	paymentRepo payment.Repository
	outboxRepo  outbox.Repository
	txManager   TransactionManager
	gateway     ProviderGateway
	machine     *payment.StateMachine
}

// NewProcessPaymentUseCase creates a new ProcessPaymentUseCase.
func NewProcessPaymentUseCase(
	paymentRepo payment.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gateway ProviderGateway,
	machine *payment.StateMachine,
) *ProcessPaymentUseCase {
	return &ProcessPaymentUseCase{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		gateway:     gateway,
		machine:     machine,
	}
}

// Execute processes a single payment by ID.
func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, paymentID uuid.UUID) error {
	p, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}

	if p.Status != payment.StatusPending {
		return nil // already processed or terminal
	}

	// Pending -> processing, persisted before the provider call so a
	// crash mid-call leaves an inspectable state.
	event, err := uc.machine.Process(p)
	if err != nil {
		return err
	}
	if err := uc.persistTransition(ctx, p, event); err != nil {
		return err
	}

	result, err := uc.gateway.Process(ctx, p.Provider, providers.ProcessRequest{
		PaymentID:   p.ID.String(),
		MerchantID:  p.MerchantID,
		OrderID:     p.OrderID,
		AmountCents: p.Amount.ValueCents,
		Currency:    p.Amount.Currency,
		Method:      string(p.Method),
		Metadata:    p.Metadata,
	})
	switch {
	case errors.Is(err, domainErrors.ErrCircuitOpen):
		// The call was never attempted: the provider is known-down.
		// Fail the payment without burning a retry budget against it.
		if failErr := uc.failPayment(ctx, p, fmt.Sprintf("provider %s unavailable", p.Provider)); failErr != nil {
			return failErr
		}
		return err
	case err != nil:
		return uc.failPayment(ctx, p, err.Error())
	case !result.Success:
		return uc.failPayment(ctx, p, result.FailureReason)
	}

	event, err = uc.machine.Complete(p, result.TransactionID)
	if err != nil {
		return err
	}
	return uc.persistTransition(ctx, p, event)
}

// failPayment persists the failed transition, then reports the failure
// to the caller as a domain error.
func (uc *ProcessPaymentUseCase) failPayment(ctx context.Context, p *payment.Payment, reason string) error {
	event, err := uc.machine.Fail(p, reason)
	if err != nil {
		return err
	}
	if err := uc.persistTransition(ctx, p, event); err != nil {
		return err
	}
	return domainErrors.NewDomainError("payment_failed", reason, nil)
}

// persistTransition writes the payment update, its audit event and the
// matching outbox message in one transaction.
func (uc *ProcessPaymentUseCase) persistTransition(ctx context.Context, p *payment.Payment, event payment.Event) error {
	return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := uc.outboxRepo.Insert(txCtx, outbox.NewMessage(outbox.DefaultTopic, event.Type(), event.Payload())); err != nil {
			return err
		}
		return uc.paymentRepo.AddEvent(txCtx, payment.NewEventRecord(event))
	})
}
