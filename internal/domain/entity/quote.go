package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a sales quote moving through the approval workflow
type Quote struct {
	ID              string          `json:"id"`
	Number          string          `json:"quote_number"`
	OwnerID         string          `json:"owner_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	CustomerCompany string          `json:"customer_company,omitempty"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	Currency        string          `json:"currency"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          QuoteStatus     `json:"status"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`

	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	TerminatedBy      string     `json:"terminated_by,omitempty"`
	TerminationReason string     `json:"termination_reason,omitempty"`

	Items []QuoteItem `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteItem is a single priced line on a quote
type QuoteItem struct {
	ID              string          `json:"id"`
	QuoteID         string          `json:"quote_id"`
	LineNumber      int             `json:"line_number"`
	ProductName     string          `json:"product_name"`
	Description     string          `json:"description,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	CreatedAt       time.Time       `json:"created_at"`
}

// QuoteFilter narrows quote listings
type QuoteFilter struct {
	OwnerID string
	// VisibleTo restricts results to quotes with a step for the persona
	// or a pending_<persona> status.
	VisibleTo  Persona
	Statuses   []QuoteStatus
	InProgress bool
	Limit      int
	Offset     int
}
