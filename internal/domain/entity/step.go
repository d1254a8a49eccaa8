package entity

import "time"

// WorkflowStep is one persona's approval gate within a quote's workflow.
// Steps are owned by exactly one quote and ordered by StepOrder.
type WorkflowStep struct {
	ID                string     `json:"id"`
	QuoteID           string     `json:"quote_id"`
	Persona           Persona    `json:"persona"`
	StepOrder         int        `json:"step_order"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	IsRequired        bool       `json:"is_required"`
	MaxProcessingDays int        `json:"max_processing_days"`
	Status            StepStatus `json:"status"`
	ActionTaken       string     `json:"action_taken,omitempty"`

	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletedBy     string     `json:"completed_by,omitempty"`
	Comments        string     `json:"comments,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	AutoApproved    bool       `json:"auto_approved"`

	// EscalatedFrom holds the id of the step this one detours
	EscalatedFrom string `json:"escalated_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEscalation returns true for steps appended by an escalation
func (s *WorkflowStep) IsEscalation() bool {
	return s.EscalatedFrom != ""
}

// IsOverdue reports whether an open step has exceeded its processing window
func (s *WorkflowStep) IsOverdue(now time.Time) bool {
	if !s.Status.IsOpen() || s.AssignedAt == nil || s.MaxProcessingDays <= 0 {
		return false
	}
	return now.After(s.AssignedAt.AddDate(0, 0, s.MaxProcessingDays))
}

// StepSpec describes a step to be created
type StepSpec struct {
	Persona           Persona
	StepOrder         int
	Name              string
	Description       string
	IsRequired        bool
	MaxProcessingDays int
	Status            StepStatus
}
