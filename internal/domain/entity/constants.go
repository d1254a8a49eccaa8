package entity

import "strings"

// Persona is the organizational role a user acts under
type Persona string

const (
	PersonaAE       Persona = "ae"
	PersonaDealDesk Persona = "deal_desk"
	PersonaCRO      Persona = "cro"
	PersonaLegal    Persona = "legal"
	PersonaFinance  Persona = "finance"
	PersonaCustomer Persona = "customer"
)

// Personas lists every persona in relevance order
var Personas = []Persona{
	PersonaAE,
	PersonaDealDesk,
	PersonaCRO,
	PersonaFinance,
	PersonaLegal,
	PersonaCustomer,
}

var personaTitles = map[Persona]string{
	PersonaAE:       "Account Executive",
	PersonaDealDesk: "Deal Desk",
	PersonaCRO:      "CRO",
	PersonaLegal:    "Legal",
	PersonaFinance:  "Finance",
	PersonaCustomer: "Customer",
}

// IsValid returns true if the persona is one of the known roles
func (p Persona) IsValid() bool {
	_, ok := personaTitles[p]
	return ok
}

// Title returns the human-readable role name
func (p Persona) Title() string {
	if t, ok := personaTitles[p]; ok {
		return t
	}
	return string(p)
}

func (p Persona) String() string {
	return string(p)
}

// ParsePersona normalizes and validates a persona label
func ParsePersona(s string) (Persona, bool) {
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	return p, p.IsValid()
}

// QuoteStatus is the lifecycle status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft         QuoteStatus = "draft"
	QuoteStatusDraftReopened QuoteStatus = "draft_reopened"
	QuoteStatusApproved      QuoteStatus = "approved"
	QuoteStatusRejected      QuoteStatus = "rejected"
	QuoteStatusTerminated    QuoteStatus = "terminated"

	pendingPrefix = "pending_"
)

// PendingStatus returns the pending_<persona> status for a persona
func PendingStatus(p Persona) QuoteStatus {
	return QuoteStatus(pendingPrefix + string(p))
}

// PendingStatuses returns every pending_<persona> status
func PendingStatuses() []QuoteStatus {
	out := make([]QuoteStatus, 0, len(Personas))
	for _, p := range Personas {
		out = append(out, PendingStatus(p))
	}
	return out
}

// IsValid returns true if the status is a known quote status
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusDraftReopened, QuoteStatusApproved,
		QuoteStatusRejected, QuoteStatusTerminated:
		return true
	}
	_, ok := s.PendingPersona()
	return ok
}

// PendingPersona returns the persona a pending status waits on
func (s QuoteStatus) PendingPersona() (Persona, bool) {
	if !strings.HasPrefix(string(s), pendingPrefix) {
		return "", false
	}
	p := Persona(strings.TrimPrefix(string(s), pendingPrefix))
	return p, p.IsValid()
}

// IsPending returns true for pending_<persona> statuses
func (s QuoteStatus) IsPending() bool {
	_, ok := s.PendingPersona()
	return ok
}

// IsDraft returns true if the quote can still be edited
func (s QuoteStatus) IsDraft() bool {
	return s == QuoteStatusDraft || s == QuoteStatusDraftReopened
}

func (s QuoteStatus) String() string {
	return string(s)
}

// StepStatus is the status of a single workflow step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusApproved   StepStatus = "approved"
	StepStatusRejected   StepStatus = "rejected"
	StepStatusSkipped    StepStatus = "skipped"
	StepStatusEscalated  StepStatus = "escalated"
)

var validStepStatuses = map[StepStatus]bool{
	StepStatusPending:    true,
	StepStatusInProgress: true,
	StepStatusApproved:   true,
	StepStatusRejected:   true,
	StepStatusSkipped:    true,
	StepStatusEscalated:  true,
}

// IsValid returns true if the status is a known step status
func (s StepStatus) IsValid() bool {
	return validStepStatuses[s]
}

// IsOpen returns true while the step still awaits a decision
func (s StepStatus) IsOpen() bool {
	return s == StepStatusPending || s == StepStatusInProgress
}

// IsTerminal returns true once the step has been decided
func (s StepStatus) IsTerminal() bool {
	return s.IsValid() && !s.IsOpen()
}

func (s StepStatus) String() string {
	return string(s)
}

// Step action constants recorded in WorkflowStep.ActionTaken
const (
	ActionTakenApprove     = "approve"
	ActionTakenReject      = "reject"
	ActionTakenEscalate    = "escalate"
	ActionTakenAutoApprove = "auto_approve"
)

// Audit action types recorded in quote_actions
const (
	ActionCreate            = "create"
	ActionUpdate            = "update"
	ActionConfigureWorkflow = "configure_workflow"
	ActionSubmit            = "submit"
	ActionApprove           = "approve"
	ActionAutoApprove       = "auto_approve"
	ActionReject            = "reject"
	ActionEscalate          = "escalate"
	ActionTerminate         = "terminate"
	ActionReopen            = "reopen"
)
