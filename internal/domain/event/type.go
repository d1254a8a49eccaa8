package event

import "github.com/garyjia/cpq-approval/internal/domain/entity"

// Type identifies the type of domain event
type Type string

const (
	TypeQuoteCreated       Type = "quote.created"
	TypeQuoteUpdated       Type = "quote.updated"
	TypeWorkflowConfigured Type = "quote.workflow_configured"
	TypeQuoteSubmitted     Type = "quote.submitted"
	TypeQuoteTerminated    Type = "quote.terminated"
	TypeQuoteReopened      Type = "quote.reopened"
	TypeStepApproved       Type = "step.approved"
	TypeStepAutoApproved   Type = "step.auto_approved"
	TypeStepRejected       Type = "step.rejected"
	TypeStepEscalated      Type = "step.escalated"
)

var actionTypes = map[Type]string{
	TypeQuoteCreated:       entity.ActionCreate,
	TypeQuoteUpdated:       entity.ActionUpdate,
	TypeWorkflowConfigured: entity.ActionConfigureWorkflow,
	TypeQuoteSubmitted:     entity.ActionSubmit,
	TypeQuoteTerminated:    entity.ActionTerminate,
	TypeQuoteReopened:      entity.ActionReopen,
	TypeStepApproved:       entity.ActionApprove,
	TypeStepAutoApproved:   entity.ActionAutoApprove,
	TypeStepRejected:       entity.ActionReject,
	TypeStepEscalated:      entity.ActionEscalate,
}

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeQuoteCreated,
		TypeQuoteUpdated,
		TypeWorkflowConfigured,
		TypeQuoteSubmitted,
		TypeQuoteTerminated,
		TypeQuoteReopened,
		TypeStepApproved,
		TypeStepAutoApproved,
		TypeStepRejected,
		TypeStepEscalated,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	_, ok := actionTypes[t]
	return ok
}

// ActionType returns the audit-trail action recorded for the event
func (t Type) ActionType() string {
	return actionTypes[t]
}
