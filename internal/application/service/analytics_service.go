package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Dashboard aggregates the quotes visible to a caller
type Dashboard struct {
	TotalQuotes       int                        `json:"total_quotes"`
	ApprovedValue     decimal.Decimal            `json:"approved_value"`
	AverageQuoteValue decimal.Decimal            `json:"average_quote_value"`
	ByStatus          map[entity.QuoteStatus]int `json:"by_status"`
	PendingForMe      int                        `json:"pending_for_me"`
}

// ApprovalTime is the mean turnaround of human approvals for one persona
type ApprovalTime struct {
	Persona      entity.Persona `json:"persona"`
	Approvals    int            `json:"approvals"`
	AverageHours float64        `json:"average_hours"`
}

// OverdueStep is an open step past its processing window
type OverdueStep struct {
	Step         *entity.WorkflowStep `json:"step"`
	QuoteNumber  string               `json:"quote_number"`
	DueAt        time.Time            `json:"due_at"`
	HoursOverdue float64              `json:"hours_overdue"`
}

// AnalyticsService answers read-only reporting queries
type AnalyticsService interface {
	Dashboard(ctx context.Context, caller entity.Identity) (*Dashboard, error)
	ApprovalTimes(ctx context.Context) ([]ApprovalTime, error)
	OverdueSteps(ctx context.Context, now time.Time) ([]OverdueStep, error)
}

type analyticsServiceImpl struct {
	quotes port.QuoteRepository
	steps  port.StepRepository
	engine *workflow.Engine
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(quotes port.QuoteRepository, steps port.StepRepository, engine *workflow.Engine) AnalyticsService {
	return &analyticsServiceImpl{quotes: quotes, steps: steps, engine: engine}
}

func (s *analyticsServiceImpl) Dashboard(ctx context.Context, caller entity.Identity) (*Dashboard, error) {
	const op = "Dashboard"

	filter := entity.QuoteFilter{}
	if caller.Persona == entity.PersonaAE {
		filter.OwnerID = caller.UserID
	} else {
		filter.VisibleTo = caller.Persona
	}
	quotes, err := s.quotes.List(ctx, filter)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	d := &Dashboard{
		TotalQuotes:       len(quotes),
		ApprovedValue:     decimal.Zero,
		AverageQuoteValue: decimal.Zero,
		ByStatus:          make(map[entity.QuoteStatus]int),
	}
	total := decimal.Zero
	for _, q := range quotes {
		d.ByStatus[q.Status]++
		total = total.Add(q.TotalAmount)
		if q.Status == entity.QuoteStatusApproved {
			d.ApprovedValue = d.ApprovedValue.Add(q.TotalAmount)
		}
	}
	if len(quotes) > 0 {
		d.AverageQuoteValue = total.Div(decimal.NewFromInt(int64(len(quotes)))).Round(2)
	}

	pending, err := s.engine.PendingFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	d.PendingForMe = len(pending)

	return d, nil
}

func (s *analyticsServiceImpl) ApprovalTimes(ctx context.Context) ([]ApprovalTime, error) {
	const op = "ApprovalTimes"

	approved, err := s.steps.ListByStatus(ctx, entity.StepStatusApproved)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	submitted := make(map[string]*time.Time)
	hours := make(map[entity.Persona][]float64)
	for _, st := range approved {
		if st.AutoApproved || st.CompletedAt == nil {
			continue
		}
		start := st.AssignedAt
		if start == nil {
			at, ok := submitted[st.QuoteID]
			if !ok {
				q, err := s.quotes.GetByID(ctx, st.QuoteID)
				if err != nil {
					return nil, apperr.Storage(op, err)
				}
				if q != nil {
					at = q.SubmittedAt
				}
				submitted[st.QuoteID] = at
			}
			start = at
		}
		if start == nil {
			continue
		}
		hours[st.Persona] = append(hours[st.Persona], st.CompletedAt.Sub(*start).Hours())
	}

	out := make([]ApprovalTime, 0, len(hours))
	for _, p := range entity.Personas {
		samples := hours[p]
		if len(samples) == 0 {
			continue
		}
		sum := 0.0
		for _, h := range samples {
			sum += h
		}
		out = append(out, ApprovalTime{Persona: p, Approvals: len(samples), AverageHours: sum / float64(len(samples))})
	}
	return out, nil
}

func (s *analyticsServiceImpl) OverdueSteps(ctx context.Context, now time.Time) ([]OverdueStep, error) {
	const op = "OverdueSteps"

	open, err := s.steps.ListByStatus(ctx, entity.StepStatusPending, entity.StepStatusInProgress)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	quotes := make(map[string]*entity.Quote)
	out := []OverdueStep{}
	for _, st := range open {
		if !st.IsOverdue(now) {
			continue
		}
		q, ok := quotes[st.QuoteID]
		if !ok {
			if q, err = s.quotes.GetByID(ctx, st.QuoteID); err != nil {
				return nil, apperr.Storage(op, err)
			}
			quotes[st.QuoteID] = q
		}
		if q == nil || !q.Status.IsPending() {
			continue
		}
		due := st.AssignedAt.AddDate(0, 0, st.MaxProcessingDays)
		out = append(out, OverdueStep{
			Step:         st,
			QuoteNumber:  q.Number,
			DueAt:        due,
			HoursOverdue: now.Sub(due).Hours(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}
