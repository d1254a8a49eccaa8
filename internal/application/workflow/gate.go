package workflow

import (
	"context"
	"sort"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Gate decides whether a caller may act on a step
type Gate struct {
	steps port.StepRepository
}

// NewGate creates an approval gate over the step store
func NewGate(steps port.StepRepository) *Gate {
	return &Gate{steps: steps}
}

// CanAct reports whether the persona may approve, reject or escalate the step now.
// A missing step is denied; only storage failures return an error.
func (g *Gate) CanAct(ctx context.Context, stepID string, persona entity.Persona) (bool, error) {
	step, err := g.steps.GetByID(ctx, stepID)
	if err != nil {
		return false, apperr.Storage("CanAct", err)
	}
	if step == nil {
		return false, nil
	}

	siblings, err := g.steps.GetByQuoteID(ctx, step.QuoteID)
	if err != nil {
		return false, apperr.Storage("CanAct", err)
	}

	return checkActionable(step, siblings, persona) == nil, nil
}

// clearsGate reports whether a finished step no longer blocks later ones.
// An escalated step clears because its detour step is itself a predecessor.
func clearsGate(s entity.StepStatus) bool {
	switch s {
	case entity.StepStatusApproved, entity.StepStatusSkipped, entity.StepStatusEscalated:
		return true
	}
	return false
}

// checkActionable returns nil when the persona may act on the step. Every
// predecessor in processing order must be cleared, whatever the action.
// Customer steps never hold up internal approvers.
func checkActionable(step *entity.WorkflowStep, siblings []*entity.WorkflowStep, persona entity.Persona) error {
	if step.Persona != persona {
		return apperr.PermissionDenied("gate", "step %s is assigned to %s, caller is %s", step.ID, step.Persona, persona)
	}
	if !step.Status.IsOpen() {
		return apperr.InvalidTransition("gate", "step %s is already %s", step.ID, step.Status)
	}
	seq := newSequence(siblings)
	for _, s := range siblings {
		if s.ID == step.ID || s.Persona == entity.PersonaCustomer || !seq.before(s, step) {
			continue
		}
		if !clearsGate(s.Status) {
			return apperr.InvalidTransition("gate", "step %d (%s) must be completed before step %d (%s)",
				s.StepOrder, s.Persona, step.StepOrder, step.Persona)
		}
	}
	return nil
}

// sequence orders steps for processing. An escalation step takes the place
// of the step it detours, so it is handled before anything that followed
// the original step.
type sequence struct {
	byID map[string]*entity.WorkflowStep
}

func newSequence(steps []*entity.WorkflowStep) sequence {
	byID := make(map[string]*entity.WorkflowStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	return sequence{byID: byID}
}

func (q sequence) anchor(s *entity.WorkflowStep) int {
	cur := s
	for hops := 0; cur.EscalatedFrom != "" && hops <= len(q.byID); hops++ {
		origin, ok := q.byID[cur.EscalatedFrom]
		if !ok {
			break
		}
		cur = origin
	}
	return cur.StepOrder
}

func (q sequence) before(a, b *entity.WorkflowStep) bool {
	aa, ab := q.anchor(a), q.anchor(b)
	if aa != ab {
		return aa < ab
	}
	return a.StepOrder < b.StepOrder
}

// ProcessingOrder returns the steps in the order they are acted on
func ProcessingOrder(steps []*entity.WorkflowStep) []*entity.WorkflowStep {
	seq := newSequence(steps)
	ordered := append([]*entity.WorkflowStep(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return seq.before(ordered[i], ordered[j])
	})
	return ordered
}

// CurrentStep returns the first open step in processing order
func CurrentStep(steps []*entity.WorkflowStep) *entity.WorkflowStep {
	for _, s := range ProcessingOrder(steps) {
		if s.Status.IsOpen() {
			return s
		}
	}
	return nil
}

// NextApprover returns the persona the quote is waiting on. Customer
// steps are a delivery formality and only count when nothing else is open.
func NextApprover(steps []*entity.WorkflowStep) (*entity.WorkflowStep, bool) {
	var customer *entity.WorkflowStep
	for _, s := range ProcessingOrder(steps) {
		if !s.Status.IsOpen() {
			continue
		}
		if s.Persona != entity.PersonaCustomer {
			return s, true
		}
		if customer == nil {
			customer = s
		}
	}
	return customer, customer != nil
}
