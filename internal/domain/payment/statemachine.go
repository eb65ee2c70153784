package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/errors"
)

// Trigger names an attempted status change.
type Trigger string

const (
	TriggerProcess       Trigger = "process"
	TriggerComplete      Trigger = "complete"
	TriggerFail          Trigger = "fail"
	TriggerRefund        Trigger = "refund"
	TriggerPartialRefund Trigger = "partial_refund"
)

// TransitionTable maps (current status, trigger) to the next status.
// Any pair not present is an illegal transition.
type TransitionTable map[Status]map[Trigger]Status

// DefaultTransitions returns the legal transition table:
//
//	pending    -> processing | failed
//	processing -> completed | failed
//	completed  -> refunded | partially_refunded
//
// failed and refunded have no outgoing transitions.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		StatusPending: {
			TriggerProcess: StatusProcessing,
			TriggerFail:    StatusFailed, // pre-processing rejection
		},
		StatusProcessing: {
			TriggerComplete: StatusCompleted,
			TriggerFail:     StatusFailed,
		},
		StatusCompleted: {
			TriggerRefund:        StatusRefunded,
			TriggerPartialRefund: StatusPartiallyRefunded,
		},
	}
}

// StateMachine enforces legal status transitions and builds the domain
// event matching each accepted transition. It performs no I/O; callers
// persist the mutated payment and the returned event.
type StateMachine struct {
	table TransitionTable
}

// NewStateMachine creates a state machine with the given transition table.
// Passing nil uses DefaultTransitions.
func NewStateMachine(table TransitionTable) *StateMachine {
	if table == nil {
		table = DefaultTransitions()
	}
	return &StateMachine{table: table}
}

// Process moves a pending payment to processing.
func (m *StateMachine) Process(p *Payment) (Event, error) {
	if err := m.apply(p, TriggerProcess); err != nil {
		return nil, err
	}
	return ProcessingEvent{baseEvent: newBaseEvent(p), Provider: p.Provider}, nil
}

// Complete moves a processing payment to completed and records the
// provider transaction id.
func (m *StateMachine) Complete(p *Payment, transactionID string) (Event, error) {
	if err := m.apply(p, TriggerComplete); err != nil {
		return nil, err
	}
	p.TransactionID = &transactionID
	now := time.Now()
	p.CompletedAt = &now
	return CompletedEvent{
		baseEvent:     newBaseEvent(p),
		TransactionID: transactionID,
		AmountCents:   p.Amount.ValueCents,
		Currency:      p.Amount.Currency,
	}, nil
}

// Fail moves a pending or processing payment to failed with a reason.
func (m *StateMachine) Fail(p *Payment, reason string) (Event, error) {
	if err := m.apply(p, TriggerFail); err != nil {
		return nil, err
	}
	p.FailureReason = &reason
	now := time.Now()
	p.CompletedAt = &now
	return FailedEvent{baseEvent: newBaseEvent(p), Reason: reason}, nil
}

// Refund moves a completed payment to refunded or partially_refunded
// depending on whether the refunded amount covers the full capture.
func (m *StateMachine) Refund(p *Payment, amountCents int64) (Event, error) {
	if amountCents <= 0 || amountCents > p.Amount.ValueCents {
		return nil, errors.NewValidationError("amount", "refund amount must be positive and not exceed the payment amount")
	}

	trigger := TriggerRefund
	if amountCents < p.Amount.ValueCents {
		trigger = TriggerPartialRefund
	}
	if err := m.apply(p, trigger); err != nil {
		return nil, err
	}
	p.RefundedCents += amountCents

	if trigger == TriggerRefund {
		return RefundedEvent{
			baseEvent:   newBaseEvent(p),
			AmountCents: amountCents,
			Currency:    p.Amount.Currency,
		}, nil
	}
	return PartiallyRefundedEvent{
		baseEvent:     newBaseEvent(p),
		AmountCents:   p.Amount.ValueCents,
		RefundedCents: amountCents,
		Currency:      p.Amount.Currency,
	}, nil
}

// CanFire reports whether trigger is legal from the payment's current status.
func (m *StateMachine) CanFire(p *Payment, trigger Trigger) bool {
	triggers, ok := m.table[p.Status]
	if !ok {
		return false
	}
	_, ok = triggers[trigger]
	return ok
}

// apply looks up (status, trigger) and mutates the payment status on a
// hit. On a miss the payment is left untouched.
func (m *StateMachine) apply(p *Payment, trigger Trigger) error {
	triggers, ok := m.table[p.Status]
	if !ok {
		return invalidTransition(p.Status, trigger)
	}
	next, ok := triggers[trigger]
	if !ok {
		return invalidTransition(p.Status, trigger)
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	return nil
}

func invalidTransition(current Status, trigger Trigger) error {
	return errors.NewDomainError(
		"invalid_transition",
		fmt.Sprintf("cannot fire %q from status %q", trigger, current),
		errors.ErrInvalidStateTransition,
	)
}
