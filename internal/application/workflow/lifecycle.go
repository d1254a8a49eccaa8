package workflow

import (
	"context"
	"time"

	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cpq-approval/internal/domain/workflow"
)

func (e *Engine) materialize(quoteID string, spec entity.StepSpec, now time.Time) *entity.WorkflowStep {
	days := spec.MaxProcessingDays
	if days <= 0 {
		days = e.cfg.MaxProcessingDays
	}
	name := spec.Name
	if name == "" {
		name = StepName(spec.Persona)
	}
	status := spec.Status
	if status == "" {
		status = entity.StepStatusPending
	}
	return &entity.WorkflowStep{
		ID:                e.newID(),
		QuoteID:           quoteID,
		Persona:           spec.Persona,
		StepOrder:         spec.StepOrder,
		Name:              name,
		Description:       spec.Description,
		IsRequired:        spec.IsRequired,
		MaxProcessingDays: days,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func stampAutoApproved(step *entity.WorkflowStep, actor string, now time.Time) {
	step.ActionTaken = entity.ActionTakenAutoApprove
	step.AutoApproved = true
	step.CompletedAt = &now
	step.CompletedBy = actor
	step.Comments = commentAEAutoApproved
	step.UpdatedAt = now
}

// NewConfiguredSteps builds pending steps from a user-supplied configuration
// without persisting them
func (e *Engine) NewConfiguredSteps(quoteID string, specs []entity.StepSpec) []*entity.WorkflowStep {
	now := e.now()
	steps := make([]*entity.WorkflowStep, 0, len(specs))
	for _, spec := range specs {
		spec.Status = entity.StepStatusPending
		steps = append(steps, e.materialize(quoteID, spec, now))
	}
	return steps
}

// StartWorkflow prepares the steps of a quote being submitted. Steps the
// owner configured on the draft are reused; otherwise the chain is derived
// from the discount. Either way the ae step exists, sits first and is
// auto-approved by the submitting user.
func (e *Engine) StartWorkflow(ctx context.Context, quote *entity.Quote, actor string) ([]*entity.WorkflowStep, error) {
	const op = "StartWorkflow"

	existing, err := e.steps.GetByQuoteID(ctx, quote.ID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	now := e.now()
	var steps []*entity.WorkflowStep

	if len(existing) == 0 {
		for _, spec := range DeriveSteps(quote.DiscountPercent) {
			s := e.materialize(quote.ID, spec, now)
			if s.Status == entity.StepStatusApproved {
				stampAutoApproved(s, actor, now)
			}
			steps = append(steps, s)
		}
		e.stampAssigned(steps, now)
		if err := e.steps.CreateBatch(ctx, steps); err != nil {
			return nil, apperr.Storage(op, err)
		}
		e.logger.Info("Workflow derived", "quote_id", quote.ID, "steps", len(steps), "discount", quote.DiscountPercent.String())
		return steps, nil
	}

	steps, err = e.reuseConfigured(ctx, op, quote, existing, actor, now)
	if err != nil {
		return nil, err
	}
	if next := e.stampAssigned(steps, now); next != nil {
		if err := e.steps.Update(ctx, next); err != nil {
			e.logger.Warn("Failed to stamp assignment", "quote_id", quote.ID, "step_id", next.ID, "error", err)
		}
	}
	e.logger.Info("Workflow reused", "quote_id", quote.ID, "steps", len(steps))
	return steps, nil
}

func (e *Engine) reuseConfigured(ctx context.Context, op string, quote *entity.Quote, existing []*entity.WorkflowStep, actor string, now time.Time) ([]*entity.WorkflowStep, error) {
	var ae *entity.WorkflowStep
	for _, s := range existing {
		if s.Persona == entity.PersonaAE {
			ae = s
			break
		}
	}

	if ae != nil {
		if ae.Status != entity.StepStatusApproved {
			if err := FireStep(ctx, ae, domainwf.TriggerAutoApprove); err != nil {
				return nil, err
			}
			stampAutoApproved(ae, actor, now)
			if err := e.steps.Update(ctx, ae); err != nil {
				return nil, apperr.Storage(op, err)
			}
		}
		return existing, nil
	}

	// Highest order first so no two steps ever share an order
	for i := len(existing) - 1; i >= 0; i-- {
		s := existing[i]
		s.StepOrder++
		s.UpdatedAt = now
		if err := e.steps.Update(ctx, s); err != nil {
			return nil, apperr.Storage(op, err)
		}
	}

	ae = e.materialize(quote.ID, DeriveSteps(quote.DiscountPercent)[0], now)
	stampAutoApproved(ae, actor, now)
	if err := e.steps.CreateBatch(ctx, []*entity.WorkflowStep{ae}); err != nil {
		return nil, apperr.Storage(op, err)
	}

	return append([]*entity.WorkflowStep{ae}, existing...), nil
}

// stampAssigned records when the first open step became actionable
func (e *Engine) stampAssigned(steps []*entity.WorkflowStep, now time.Time) *entity.WorkflowStep {
	next, ok := NextApprover(steps)
	if !ok || next.AssignedAt != nil {
		return nil
	}
	next.AssignedAt = &now
	next.UpdatedAt = now
	return next
}

// ResetWorkflow deletes every step of the quote
func (e *Engine) ResetWorkflow(ctx context.Context, quoteID string) (int, error) {
	n, err := e.steps.DeleteByQuoteID(ctx, quoteID)
	if err != nil {
		return 0, apperr.Storage("ResetWorkflow", err)
	}
	e.logger.Info("Workflow reset", "quote_id", quoteID, "deleted_steps", n)
	return n, nil
}

// CancelOpenSteps skips every pending or in-progress step of the quote.
// Individual step failures are logged, not returned.
func (e *Engine) CancelOpenSteps(ctx context.Context, quoteID, comment string) (int, error) {
	steps, err := e.steps.GetByQuoteID(ctx, quoteID)
	if err != nil {
		return 0, apperr.Storage("CancelOpenSteps", err)
	}

	now := e.now()
	cancelled := 0
	for _, s := range steps {
		if !s.Status.IsOpen() {
			continue
		}
		if err := FireStep(ctx, s, domainwf.TriggerSkip); err != nil {
			continue
		}
		s.ActionTaken = ""
		s.Comments = comment
		s.UpdatedAt = now
		if err := e.steps.Update(ctx, s); err != nil {
			e.logger.Error("Failed to cancel step", "quote_id", quoteID, "step_id", s.ID, "error", err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}
