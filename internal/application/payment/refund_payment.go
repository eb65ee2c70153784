package payment

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/google/uuid"
)

// RefundPaymentUseCase refunds a completed payment, fully or partially.
type RefundPaymentUseCase struct {
	paymentRepo payment.Repository
	outboxRepo  outbox.Repository
	txManager   TransactionManager
	gateway     ProviderGateway
	machine     *payment.StateMachine
}

// NewRefundPaymentUseCase creates a new RefundPaymentUseCase.
func NewRefundPaymentUseCase(
	paymentRepo payment.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gateway ProviderGateway,
	machine *payment.StateMachine,
) *RefundPaymentUseCase {
	return &RefundPaymentUseCase{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		gateway:     gateway,
		machine:     machine,
	}
}

// Execute refunds amountCents of the payment; zero means a full refund.
// The provider refund happens first — a rejected refund leaves the
// payment untouched.
func (uc *RefundPaymentUseCase) Execute(ctx context.Context, paymentID uuid.UUID, amountCents int64) (*payment.Payment, error) {
	p, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if amountCents == 0 {
		amountCents = p.Amount.ValueCents
	}
	if !uc.machine.CanFire(p, payment.TriggerRefund) && !uc.machine.CanFire(p, payment.TriggerPartialRefund) {
		return nil, invalidRefund(p)
	}

	txID := ""
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}
	result, err := uc.gateway.Refund(ctx, p.Provider, providers.RefundRequest{
		PaymentID:     p.ID.String(),
		TransactionID: txID,
		AmountCents:   amountCents,
		Currency:      p.Amount.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("provider refund: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("provider refund rejected: %s", result.FailureReason)
	}

	event, err := uc.machine.Refund(p, amountCents)
	if err != nil {
		return nil, err
	}
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := uc.outboxRepo.Insert(txCtx, outbox.NewMessage(outbox.DefaultTopic, event.Type(), event.Payload())); err != nil {
			return err
		}
		return uc.paymentRepo.AddEvent(txCtx, payment.NewEventRecord(event))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func invalidRefund(p *payment.Payment) error {
	return domainErrors.NewDomainError(
		"invalid_refund",
		fmt.Sprintf("cannot refund payment in status %s", p.Status),
		domainErrors.ErrInvalidStateTransition,
	)
}
