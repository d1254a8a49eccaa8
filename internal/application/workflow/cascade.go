package workflow

import (
	"context"
	"time"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/domain/event"
	domainwf "github.com/garyjia/cpq-approval/internal/domain/workflow"
)

// resolved reports whether a step no longer awaits anyone
func resolved(s entity.StepStatus) bool {
	return clearsGate(s)
}

// readyToComplete is true once every required non-customer step is resolved
func readyToComplete(steps []*entity.WorkflowStep) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if s.Status == entity.StepStatusRejected {
			return false
		}
		if s.Persona == entity.PersonaCustomer || !s.IsRequired {
			continue
		}
		if !resolved(s.Status) {
			return false
		}
	}
	return true
}

// advance moves the quote forward after a step was resolved: it completes
// the workflow when nothing required is left, otherwise it points the quote
// at the next approver. With assign set and parallel steps disallowed, the
// next step is marked in_progress. Returned events are for the caller to publish.
func (e *Engine) advance(ctx context.Context, quote *entity.Quote, steps []*entity.WorkflowStep, now time.Time, assign bool) []*event.Event {
	if !quote.Status.IsPending() {
		return nil
	}

	if readyToComplete(steps) {
		return e.complete(ctx, quote, steps, now)
	}

	next, ok := NextApprover(steps)
	if !ok {
		return nil
	}

	target := entity.PendingStatus(next.Persona)
	if quote.Status != target {
		if err := TransitionQuote(ctx, quote, domainwf.TriggerAdvance, target); err != nil {
			e.logger.Warn("Quote status not advanced", "quote_id", quote.ID, "target", target, "error", err)
		} else {
			quote.UpdatedAt = now
			if err := e.quotes.UpdateStatus(ctx, quote.ID, quote.Status); err != nil {
				e.logger.Error("Failed to update quote status", "quote_id", quote.ID, "status", quote.Status, "error", err)
			}
		}
	}

	if assign && !e.cfg.AllowParallelSteps && next.Status == entity.StepStatusPending {
		if err := FireStep(ctx, next, domainwf.TriggerAssign); err != nil {
			e.logger.Warn("Next step not assigned", "step_id", next.ID, "error", err)
			return nil
		}
		next.AssignedAt = &now
		next.UpdatedAt = now
		if err := e.steps.Update(ctx, next); err != nil {
			e.logger.Error("Failed to assign next step", "quote_id", quote.ID, "step_id", next.ID, "error", err)
		}
	}

	return nil
}

// complete auto-approves open customer steps, skips leftover optional
// steps and approves the quote
func (e *Engine) complete(ctx context.Context, quote *entity.Quote, steps []*entity.WorkflowStep, now time.Time) []*event.Event {
	from := quote.Status
	var events []*event.Event

	for _, s := range ProcessingOrder(steps) {
		if !s.Status.IsOpen() {
			continue
		}

		if s.Persona == entity.PersonaCustomer {
			if err := FireStep(ctx, s, domainwf.TriggerAutoApprove); err != nil {
				e.logger.Warn("Customer step not auto-approved", "step_id", s.ID, "error", err)
				continue
			}
			s.ActionTaken = entity.ActionTakenAutoApprove
			s.AutoApproved = true
			s.CompletedAt = &now
			s.CompletedBy = SystemActor
			s.Comments = commentCustomerAutoApproved
			s.UpdatedAt = now
			if err := e.steps.Update(ctx, s); err != nil {
				e.logger.Error("Failed to auto-approve customer step", "quote_id", quote.ID, "step_id", s.ID, "error", err)
				continue
			}
			events = append(events, event.NewEvent(event.TypeStepAutoApproved, quote.ID, SystemActor).
				ForStep(s.ID).
				Transition(from, entity.QuoteStatusApproved).
				WithComments(s.Comments))
			continue
		}

		if err := FireStep(ctx, s, domainwf.TriggerSkip); err != nil {
			e.logger.Warn("Optional step not skipped", "step_id", s.ID, "error", err)
			continue
		}
		s.ActionTaken = ""
		s.Comments = commentSkippedOnCompletion
		s.UpdatedAt = now
		if err := e.steps.Update(ctx, s); err != nil {
			e.logger.Error("Failed to skip optional step", "quote_id", quote.ID, "step_id", s.ID, "error", err)
		}
	}

	if err := TransitionQuote(ctx, quote, domainwf.TriggerComplete, entity.QuoteStatusApproved); err != nil {
		e.logger.Warn("Quote not completed", "quote_id", quote.ID, "error", err)
		return events
	}
	quote.ApprovedAt = &now
	quote.UpdatedAt = now
	if err := e.quotes.Update(ctx, quote); err != nil {
		e.logger.Error("Failed to mark quote approved", "quote_id", quote.ID, "error", err)
		return events
	}

	e.logger.Info("Workflow completed", "quote_id", quote.ID)
	return events
}

// CompleteIfReady finishes a pending workflow whose required steps are
// already resolved, such as one made only of customer steps. It reports
// whether the quote was approved.
func (e *Engine) CompleteIfReady(ctx context.Context, quote *entity.Quote, steps []*entity.WorkflowStep) bool {
	if !quote.Status.IsPending() || !readyToComplete(steps) {
		return false
	}
	e.publish(ctx, e.complete(ctx, quote, steps, e.now())...)
	return quote.Status == entity.QuoteStatusApproved
}

// cascadeRejection skips every other open step and rejects the quote
func (e *Engine) cascadeRejection(ctx context.Context, quote *entity.Quote, steps []*entity.WorkflowStep, rejected *entity.WorkflowStep, now time.Time) {
	skipped := 0
	for _, s := range steps {
		if s.ID == rejected.ID || !s.Status.IsOpen() {
			continue
		}
		if err := FireStep(ctx, s, domainwf.TriggerSkip); err != nil {
			e.logger.Warn("Step not skipped", "step_id", s.ID, "error", err)
			continue
		}
		s.ActionTaken = ""
		s.Comments = commentSkippedOnRejection
		s.UpdatedAt = now
		if err := e.steps.Update(ctx, s); err != nil {
			e.logger.Error("Failed to skip step after rejection", "quote_id", quote.ID, "step_id", s.ID, "error", err)
			continue
		}
		skipped++
	}

	if quote.Status.IsPending() {
		if err := TransitionQuote(ctx, quote, domainwf.TriggerReject, entity.QuoteStatusRejected); err != nil {
			e.logger.Warn("Quote not rejected", "quote_id", quote.ID, "error", err)
		} else {
			quote.UpdatedAt = now
			if err := e.quotes.UpdateStatus(ctx, quote.ID, quote.Status); err != nil {
				e.logger.Error("Failed to mark quote rejected", "quote_id", quote.ID, "error", err)
			}
		}
	}

	e.logger.Info("Rejection cascaded", "quote_id", quote.ID, "skipped_steps", skipped)
}

// reconcile repairs a quote left behind by a partially applied cascade
func (e *Engine) reconcile(ctx context.Context, quote *entity.Quote, steps []*entity.WorkflowStep) []*event.Event {
	if !quote.Status.IsPending() || len(steps) == 0 {
		return nil
	}
	now := e.now()
	before := quote.Status

	var events []*event.Event
	var rejected *entity.WorkflowStep
	for _, s := range steps {
		if s.Status == entity.StepStatusRejected {
			rejected = s
			break
		}
	}
	if rejected != nil {
		e.cascadeRejection(ctx, quote, steps, rejected, now)
	} else {
		events = e.advance(ctx, quote, steps, now, false)
	}

	if quote.Status != before {
		e.logger.Info("Reconciled quote status", "quote_id", quote.ID, "from", before, "to", quote.Status)
	}
	return events
}
