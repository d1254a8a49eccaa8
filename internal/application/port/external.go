package port

import (
	"context"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/domain/event"
)

// DraftItem is a line item proposed by the quote drafter
type DraftItem struct {
	ProductName     string  `json:"product_name"`
	Description     string  `json:"description"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// QuoteDraft is the structured quote produced from a free-form prompt.
// It is untrusted input and goes through the same validation as manual creation.
type QuoteDraft struct {
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerCompany string      `json:"customer_company"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DiscountPercent float64     `json:"discount_percent"`
	Items           []DraftItem `json:"items"`
}

// QuoteDrafter turns natural-language requests into quote drafts
type QuoteDrafter interface {
	Draft(ctx context.Context, prompt string) (*QuoteDraft, error)
}

// IdentityResolver verifies a bearer token and returns the caller
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*entity.Identity, error)
}

// EventPublisher delivers domain events. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}
