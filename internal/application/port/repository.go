package port

import (
	"context"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// QuoteRepository defines persistence operations for Quote.
// Lookups return nil, nil when the record does not exist.
type QuoteRepository interface {
	// Create inserts the quote and assigns its human-readable number
	Create(ctx context.Context, quote *entity.Quote) error
	GetByID(ctx context.Context, id string) (*entity.Quote, error)
	Update(ctx context.Context, quote *entity.Quote) error
	UpdateStatus(ctx context.Context, id string, status entity.QuoteStatus) error
	List(ctx context.Context, filter entity.QuoteFilter) ([]*entity.Quote, error)
	Delete(ctx context.Context, id string) error
}

// ItemRepository defines persistence operations for QuoteItem
type ItemRepository interface {
	CreateBatch(ctx context.Context, items []*entity.QuoteItem) error
	GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteItem, error)
	DeleteByQuoteID(ctx context.Context, quoteID string) error
}

// StepRepository is the persistence facade over workflow steps
type StepRepository interface {
	CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error)

	// GetByQuoteID returns the quote's steps ordered by step order
	GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.WorkflowStep, error)

	// ListByStatus returns steps of any quote in the given statuses
	ListByStatus(ctx context.Context, statuses ...entity.StepStatus) ([]*entity.WorkflowStep, error)

	Update(ctx context.Context, step *entity.WorkflowStep) error
	DeleteByQuoteID(ctx context.Context, quoteID string) (int, error)
}

// ActionRepository defines persistence operations for the quote audit trail
type ActionRepository interface {
	Create(ctx context.Context, action *entity.QuoteAction) error
	GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteAction, error)
	DeleteByQuoteID(ctx context.Context, quoteID string) error
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
