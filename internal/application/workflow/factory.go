package workflow

import (
	"context"

	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cpq-approval/internal/domain/workflow"
)

var (
	stepMachines  = buildStepMachine()
	quoteMachines = buildQuoteMachine()
)

func buildStepMachine() domainwf.StateMachineBuilder[entity.StepStatus] {
	builder := domainwf.NewBuilder[entity.StepStatus]()

	builder.Configure(entity.StepStatusPending).
		Permit(domainwf.TriggerAssign, entity.StepStatusInProgress).
		Permit(domainwf.TriggerApprove, entity.StepStatusApproved).
		Permit(domainwf.TriggerAutoApprove, entity.StepStatusApproved).
		Permit(domainwf.TriggerReject, entity.StepStatusRejected).
		Permit(domainwf.TriggerSkip, entity.StepStatusSkipped).
		Permit(domainwf.TriggerEscalate, entity.StepStatusEscalated)

	builder.Configure(entity.StepStatusInProgress).
		Permit(domainwf.TriggerApprove, entity.StepStatusApproved).
		Permit(domainwf.TriggerAutoApprove, entity.StepStatusApproved).
		Permit(domainwf.TriggerReject, entity.StepStatusRejected).
		Permit(domainwf.TriggerSkip, entity.StepStatusSkipped).
		Permit(domainwf.TriggerEscalate, entity.StepStatusEscalated)

	// approved, rejected, skipped and escalated are terminal

	return builder
}

func buildQuoteMachine() domainwf.StateMachineBuilder[entity.QuoteStatus] {
	builder := domainwf.NewBuilder[entity.QuoteStatus]()
	pending := entity.PendingStatuses()

	for _, draft := range []entity.QuoteStatus{entity.QuoteStatusDraft, entity.QuoteStatusDraftReopened} {
		cfg := builder.Configure(draft)
		for _, to := range pending {
			cfg.Permit(domainwf.TriggerSubmit, to)
		}
		cfg.Permit(domainwf.TriggerTerminate, entity.QuoteStatusTerminated)
	}

	for _, from := range pending {
		cfg := builder.Configure(from)
		for _, to := range pending {
			if to != from {
				cfg.Permit(domainwf.TriggerAdvance, to)
			}
		}
		cfg.Permit(domainwf.TriggerComplete, entity.QuoteStatusApproved).
			Permit(domainwf.TriggerReject, entity.QuoteStatusRejected).
			Permit(domainwf.TriggerTerminate, entity.QuoteStatusTerminated)
	}

	builder.Configure(entity.QuoteStatusRejected).
		Permit(domainwf.TriggerReopen, entity.QuoteStatusDraftReopened).
		Permit(domainwf.TriggerTerminate, entity.QuoteStatusTerminated)

	// approved and terminated are final

	return builder
}

// NewStepMachine returns a state machine positioned at the step's status
func NewStepMachine(status entity.StepStatus) domainwf.StateMachine[entity.StepStatus] {
	return stepMachines.Build(status)
}

// NewQuoteMachine returns a state machine positioned at the quote's status
func NewQuoteMachine(status entity.QuoteStatus) domainwf.StateMachine[entity.QuoteStatus] {
	return quoteMachines.Build(status)
}

// FireStep applies a trigger to the step's status in place
func FireStep(ctx context.Context, step *entity.WorkflowStep, trigger domainwf.Trigger) error {
	if !step.Status.IsValid() {
		return apperr.InvalidTransition("step", "step %s has unknown status %q", step.ID, step.Status)
	}
	m := NewStepMachine(step.Status)
	if err := m.Fire(ctx, trigger); err != nil {
		return apperr.Wrap(apperr.ErrInvalidStateTransition, "step "+step.ID, err)
	}
	step.Status = m.State()
	return nil
}

// TransitionQuote moves the quote to the given status through the trigger
func TransitionQuote(ctx context.Context, quote *entity.Quote, trigger domainwf.Trigger, to entity.QuoteStatus) error {
	if !quote.Status.IsValid() {
		return apperr.InvalidTransition("quote", "quote %s has unknown status %q", quote.ID, quote.Status)
	}
	m := NewQuoteMachine(quote.Status)
	if err := m.FireTo(ctx, trigger, to); err != nil {
		return apperr.Wrap(apperr.ErrInvalidStateTransition, "quote "+quote.ID, err)
	}
	quote.Status = m.State()
	return nil
}

// CanTransitionQuote reports whether the trigger is permitted from the quote's status
func CanTransitionQuote(status entity.QuoteStatus, trigger domainwf.Trigger) bool {
	if !status.IsValid() {
		return false
	}
	return NewQuoteMachine(status).CanFire(trigger)
}
