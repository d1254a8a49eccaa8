package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Event represents a domain event raised by a quote or step transition
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	QuoteID       string                 `json:"quote_id"`
	StepID        string                 `json:"step_id,omitempty"`
	Actor         string                 `json:"actor"`
	FromStatus    entity.QuoteStatus     `json:"from_status,omitempty"`
	ToStatus      entity.QuoteStatus     `json:"to_status,omitempty"`
	Comments      string                 `json:"comments,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, quoteID, actor string) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		QuoteID:       quoteID,
		Actor:         actor,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// ForStep sets the step the event concerns
func (e *Event) ForStep(stepID string) *Event {
	e.StepID = stepID
	return e
}

// Transition records the quote status change carried by the event
func (e *Event) Transition(from, to entity.QuoteStatus) *Event {
	e.FromStatus = from
	e.ToStatus = to
	return e
}

// WithComments attaches free-text comments
func (e *Event) WithComments(comments string) *Event {
	e.Comments = comments
	return e
}

// WithCorrelation links the event to an existing correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	if correlationID != "" {
		e.CorrelationID = correlationID
	}
	return e
}

// WithPayload returns a copy of the event with an added payload key
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// ToAction converts the event into an audit-trail record
func (e *Event) ToAction() *entity.QuoteAction {
	return &entity.QuoteAction{
		ID:          uuid.NewString(),
		QuoteID:     e.QuoteID,
		StepID:      e.StepID,
		ActionType:  e.Type.ActionType(),
		PerformedBy: e.Actor,
		PerformedAt: e.Timestamp,
		Comments:    e.Comments,
		FromStatus:  e.FromStatus,
		ToStatus:    e.ToStatus,
	}
}
