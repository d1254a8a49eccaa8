package entity

import "time"

// QuoteAction is an entry in a quote's audit trail
type QuoteAction struct {
	ID          string      `json:"id"`
	QuoteID     string      `json:"quote_id"`
	StepID      string      `json:"step_id,omitempty"`
	ActionType  string      `json:"action_type"`
	PerformedBy string      `json:"performed_by"`
	PerformedAt time.Time   `json:"performed_at"`
	Comments    string      `json:"comments,omitempty"`
	FromStatus  QuoteStatus `json:"from_status,omitempty"`
	ToStatus    QuoteStatus `json:"to_status,omitempty"`
}
