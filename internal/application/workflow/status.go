package workflow

import (
	"context"

	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// WorkflowStatus summarizes where a quote's approval stands
type WorkflowStatus struct {
	QuoteID            string                 `json:"quote_id"`
	QuoteStatus        entity.QuoteStatus     `json:"quote_status"`
	CurrentStep        *entity.WorkflowStep   `json:"current_step"`
	Steps              []*entity.WorkflowStep `json:"steps"`
	CanApprove         bool                   `json:"can_approve"`
	IsComplete         bool                   `json:"is_complete"`
	ProgressPercentage int                    `json:"progress_percentage"`
	NextApprovers      []entity.Persona       `json:"next_approvers"`
}

// Status returns the workflow state of a quote as seen by the caller.
// The quote status is recomputed from the step records first.
func (e *Engine) Status(ctx context.Context, quoteID string, caller entity.Identity) (*WorkflowStatus, error) {
	const op = "Status"

	quote, err := e.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if quote == nil {
		return nil, apperr.NotFound(op, "quote %s not found", quoteID)
	}

	steps, err := e.steps.GetByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	e.publish(ctx, e.reconcile(ctx, quote, steps)...)

	return Summarize(quote, steps, caller), nil
}

// Summarize builds a WorkflowStatus without touching storage
func Summarize(quote *entity.Quote, steps []*entity.WorkflowStep, caller entity.Identity) *WorkflowStatus {
	status := &WorkflowStatus{
		QuoteID:       quote.ID,
		QuoteStatus:   quote.Status,
		Steps:         steps,
		NextApprovers: []entity.Persona{},
	}
	if status.Steps == nil {
		status.Steps = []*entity.WorkflowStep{}
	}

	done := 0
	for _, s := range steps {
		if resolved(s.Status) {
			done++
		}
	}
	if len(steps) > 0 {
		status.ProgressPercentage = done * 100 / len(steps)
		status.IsComplete = done == len(steps)
	}

	if next, ok := NextApprover(steps); ok {
		status.CurrentStep = next
	}
	if status.CurrentStep != nil && quote.Status.IsPending() {
		status.CanApprove = checkActionable(status.CurrentStep, steps, caller.Persona) == nil
	}

	if status.CurrentStep != nil {
		for _, s := range ProcessingOrder(steps) {
			if len(status.NextApprovers) == 3 {
				break
			}
			if s.ID != status.CurrentStep.ID && s.Status.IsOpen() {
				status.NextApprovers = append(status.NextApprovers, s.Persona)
			}
		}
	}

	return status
}

// PendingFor returns the steps the caller can act on right now
func (e *Engine) PendingFor(ctx context.Context, caller entity.Identity) ([]*entity.WorkflowStep, error) {
	const op = "PendingFor"

	open, err := e.steps.ListByStatus(ctx, entity.StepStatusPending, entity.StepStatusInProgress)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	seen := make(map[string]bool)
	var actionable []*entity.WorkflowStep
	for _, candidate := range open {
		if candidate.Persona != caller.Persona || seen[candidate.QuoteID] {
			continue
		}
		seen[candidate.QuoteID] = true

		quote, err := e.quotes.GetByID(ctx, candidate.QuoteID)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		if quote == nil || !quote.Status.IsPending() {
			continue
		}

		steps, err := e.steps.GetByQuoteID(ctx, candidate.QuoteID)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		for _, s := range steps {
			if s.Status.IsOpen() && checkActionable(s, steps, caller.Persona) == nil {
				actionable = append(actionable, s)
			}
		}
	}

	return actionable, nil
}
