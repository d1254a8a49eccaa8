package repository

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type quoteRow struct {
	ID                string          `db:"id"`
	Number            string          `db:"quote_number"`
	OwnerID           string          `db:"owner_id"`
	CustomerName      string          `db:"customer_name"`
	CustomerEmail     string          `db:"customer_email"`
	CustomerCompany   string          `db:"customer_company"`
	Title             string          `db:"title"`
	Description       string          `db:"description"`
	Currency          string          `db:"currency"`
	DiscountPercent   decimal.Decimal `db:"discount_percent"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	Status            string          `db:"status"`
	ValidUntil        sql.NullTime    `db:"valid_until"`
	SubmittedAt       sql.NullTime    `db:"submitted_at"`
	ApprovedAt        sql.NullTime    `db:"approved_at"`
	TerminatedAt      sql.NullTime    `db:"terminated_at"`
	TerminatedBy      string          `db:"terminated_by"`
	TerminationReason string          `db:"termination_reason"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

const quoteColumns = `id, quote_number, owner_id, customer_name, customer_email, customer_company,
	title, description, currency, discount_percent, total_amount, status,
	valid_until, submitted_at, approved_at, terminated_at, terminated_by, termination_reason,
	created_at, updated_at`

func (r quoteRow) toEntity() *entity.Quote {
	return &entity.Quote{
		ID:                r.ID,
		Number:            r.Number,
		OwnerID:           r.OwnerID,
		CustomerName:      r.CustomerName,
		CustomerEmail:     r.CustomerEmail,
		CustomerCompany:   r.CustomerCompany,
		Title:             r.Title,
		Description:       r.Description,
		Currency:          r.Currency,
		DiscountPercent:   r.DiscountPercent,
		TotalAmount:       r.TotalAmount,
		Status:            entity.QuoteStatus(r.Status),
		ValidUntil:        timePtr(r.ValidUntil),
		SubmittedAt:       timePtr(r.SubmittedAt),
		ApprovedAt:        timePtr(r.ApprovedAt),
		TerminatedAt:      timePtr(r.TerminatedAt),
		TerminatedBy:      r.TerminatedBy,
		TerminationReason: r.TerminationReason,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type itemRow struct {
	ID              string          `db:"id"`
	QuoteID         string          `db:"quote_id"`
	LineNumber      int             `db:"line_number"`
	ProductName     string          `db:"product_name"`
	Description     string          `db:"description"`
	Quantity        int             `db:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price"`
	DiscountPercent decimal.Decimal `db:"discount_percent"`
	DiscountAmount  decimal.Decimal `db:"discount_amount"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (r itemRow) toEntity() *entity.QuoteItem {
	return &entity.QuoteItem{
		ID:              r.ID,
		QuoteID:         r.QuoteID,
		LineNumber:      r.LineNumber,
		ProductName:     r.ProductName,
		Description:     r.Description,
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		DiscountPercent: r.DiscountPercent,
		DiscountAmount:  r.DiscountAmount,
		TotalPrice:      r.TotalPrice,
		CreatedAt:       r.CreatedAt,
	}
}

type stepRow struct {
	ID                string       `db:"id"`
	QuoteID           string       `db:"quote_id"`
	Persona           string       `db:"persona"`
	StepOrder         int          `db:"step_order"`
	Name              string       `db:"name"`
	Description       string       `db:"description"`
	IsRequired        bool         `db:"is_required"`
	MaxProcessingDays int          `db:"max_processing_days"`
	Status            string       `db:"status"`
	ActionTaken       string       `db:"action_taken"`
	AssignedAt        sql.NullTime `db:"assigned_at"`
	CompletedAt       sql.NullTime `db:"completed_at"`
	CompletedBy       string       `db:"completed_by"`
	Comments          string       `db:"comments"`
	RejectionReason   string       `db:"rejection_reason"`
	AutoApproved      bool         `db:"auto_approved"`
	EscalatedFrom     string       `db:"escalated_from"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

const stepColumns = `id, quote_id, persona, step_order, name, description, is_required,
	max_processing_days, status, action_taken, assigned_at, completed_at, completed_by,
	comments, rejection_reason, auto_approved, escalated_from, created_at, updated_at`

func (r stepRow) toEntity() *entity.WorkflowStep {
	return &entity.WorkflowStep{
		ID:                r.ID,
		QuoteID:           r.QuoteID,
		Persona:           entity.Persona(r.Persona),
		StepOrder:         r.StepOrder,
		Name:              r.Name,
		Description:       r.Description,
		IsRequired:        r.IsRequired,
		MaxProcessingDays: r.MaxProcessingDays,
		Status:            entity.StepStatus(r.Status),
		ActionTaken:       r.ActionTaken,
		AssignedAt:        timePtr(r.AssignedAt),
		CompletedAt:       timePtr(r.CompletedAt),
		CompletedBy:       r.CompletedBy,
		Comments:          r.Comments,
		RejectionReason:   r.RejectionReason,
		AutoApproved:      r.AutoApproved,
		EscalatedFrom:     r.EscalatedFrom,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type actionRow struct {
	ID          string    `db:"id"`
	QuoteID     string    `db:"quote_id"`
	StepID      string    `db:"step_id"`
	ActionType  string    `db:"action_type"`
	PerformedBy string    `db:"performed_by"`
	PerformedAt time.Time `db:"performed_at"`
	Comments    string    `db:"comments"`
	FromStatus  string    `db:"from_status"`
	ToStatus    string    `db:"to_status"`
}

func (r actionRow) toEntity() *entity.QuoteAction {
	return &entity.QuoteAction{
		ID:          r.ID,
		QuoteID:     r.QuoteID,
		StepID:      r.StepID,
		ActionType:  r.ActionType,
		PerformedBy: r.PerformedBy,
		PerformedAt: r.PerformedAt,
		Comments:    r.Comments,
		FromStatus:  entity.QuoteStatus(r.FromStatus),
		ToStatus:    entity.QuoteStatus(r.ToStatus),
	}
}

type userRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	FullName  string    `db:"full_name"`
	Persona   string    `db:"persona"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
