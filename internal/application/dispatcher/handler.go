package dispatcher

import (
	"context"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// NewAuditHandler returns a handler that writes each event to the quote audit trail
func NewAuditHandler(actions port.ActionRepository) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return actions.Create(ctx, evt.ToAction())
	}
}

// SubscribeAudit registers the audit handler for every event type
func SubscribeAudit(d Dispatcher, actions port.ActionRepository) {
	h := NewAuditHandler(actions)
	for _, t := range event.AllTypes() {
		d.SubscribeNamed(t, "audit-trail", h)
	}
}
