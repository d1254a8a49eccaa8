package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/cpq-approval/internal/application/dispatcher"
	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/memory"
)

type mockLogger struct {
	warnings []string
	errors   []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.warnings = append(m.warnings, msg)
}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

type mockDrafter struct {
	draftFunc func(ctx context.Context, prompt string) (*port.QuoteDraft, error)
}

func (m *mockDrafter) Draft(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
	return m.draftFunc(ctx, prompt)
}

var (
	owner    = entity.Identity{UserID: "ae-1", Persona: entity.PersonaAE}
	otherAE  = entity.Identity{UserID: "ae-2", Persona: entity.PersonaAE}
	dealDesk = entity.Identity{UserID: "dd-1", Persona: entity.PersonaDealDesk}
	cro      = entity.Identity{UserID: "cro-1", Persona: entity.PersonaCRO}
	legal    = entity.Identity{UserID: "legal-1", Persona: entity.PersonaLegal}
)

type harness struct {
	ctx     context.Context
	store   *memory.Store
	engine  *workflow.Engine
	svc     QuoteService
	drafter *mockDrafter
	logger  *mockLogger
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:     context.Background(),
		store:   memory.NewStore(),
		drafter: &mockDrafter{},
		logger:  &mockLogger{},
		now:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	d := dispatcher.NewDispatcher()
	dispatcher.SubscribeAudit(d, h.store.Actions())

	h.engine = workflow.NewEngine(h.store.Quotes(), h.store.Steps(),
		workflow.WithPublisher(d),
		workflow.WithClock(func() time.Time { return h.now }),
	)
	h.svc = NewQuoteService(h.store.Quotes(), h.store.Items(), h.store.Steps(), h.store.Actions(),
		h.engine, d, h.drafter, h.logger)
	return h
}

func input(discount int64) QuoteInput {
	return QuoteInput{
		CustomerName:    "Acme Corp",
		CustomerEmail:   "buyer@acme.io",
		Title:           "Platform renewal",
		DiscountPercent: decimal.NewFromInt(discount),
		Items: []ItemInput{
			{ProductName: "Platform License", Quantity: 10, UnitPrice: decimal.NewFromInt(1200)},
		},
	}
}

func (h *harness) create(t *testing.T, discount int64) *entity.Quote {
	t.Helper()
	q, err := h.svc.Create(h.ctx, owner, input(discount))
	require.NoError(t, err)
	return q
}

func (h *harness) stepFor(t *testing.T, quoteID string, p entity.Persona) *entity.WorkflowStep {
	t.Helper()
	steps, err := h.store.Steps().GetByQuoteID(h.ctx, quoteID)
	require.NoError(t, err)
	for _, s := range steps {
		if s.Persona == p {
			return s
		}
	}
	t.Fatalf("no %s step", p)
	return nil
}

func actionTypes(t *testing.T, h *harness, quoteID string) []string {
	t.Helper()
	actions, err := h.svc.Actions(h.ctx, quoteID)
	require.NoError(t, err)
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ActionType
	}
	return out
}

func TestCreate_ComputesTotals(t *testing.T) {
	h := newHarness(t)

	q, err := h.svc.Create(h.ctx, owner, QuoteInput{
		CustomerName:    "  Acme Corp ",
		DiscountPercent: decimal.NewFromInt(20),
		Items: []ItemInput{
			{ProductName: "Seats", Quantity: 2, UnitPrice: decimal.NewFromInt(100), DiscountPercent: decimal.NewFromInt(10)},
			{ProductName: "Setup", Quantity: 1, UnitPrice: decimal.NewFromInt(50), DiscountAmount: decimal.NewFromInt(80)},
			{ProductName: "Support", Quantity: 3, UnitPrice: decimal.RequireFromString("33.33")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", q.CustomerName)
	assert.Equal(t, entity.QuoteStatusDraft, q.Status)
	assert.Equal(t, owner.UserID, q.OwnerID)
	assert.Equal(t, DefaultCurrency, q.Currency)
	assert.NotEmpty(t, q.Number)
	require.Len(t, q.Items, 3)
	assert.True(t, q.Items[0].TotalPrice.Equal(decimal.NewFromInt(180)))
	assert.True(t, q.Items[1].TotalPrice.IsZero(), "discount amount is capped at the subtotal")
	assert.True(t, q.Items[2].TotalPrice.Equal(decimal.RequireFromString("99.99")))
	// (180 + 0 + 99.99) * 0.8
	assert.Equal(t, "223.99", q.TotalAmount.StringFixed(2))

	stored, err := h.svc.Get(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 3)
	assert.Equal(t, []string{entity.ActionCreate}, actionTypes(t, h, q.ID))
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(in *QuoteInput)
	}{
		{"missing customer", func(in *QuoteInput) { in.CustomerName = "  " }},
		{"bad email", func(in *QuoteInput) { in.CustomerEmail = "not-an-email" }},
		{"discount above 100", func(in *QuoteInput) { in.DiscountPercent = decimal.NewFromInt(101) }},
		{"negative discount", func(in *QuoteInput) { in.DiscountPercent = decimal.NewFromInt(-1) }},
		{"no items", func(in *QuoteInput) { in.Items = nil }},
		{"zero quantity", func(in *QuoteInput) { in.Items[0].Quantity = 0 }},
		{"negative price", func(in *QuoteInput) { in.Items[0].UnitPrice = decimal.NewFromInt(-5) }},
		{"unnamed item", func(in *QuoteInput) { in.Items[0].ProductName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(10)
			tt.mutate(&in)
			_, err := h.svc.Create(h.ctx, owner, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	all, err := h.svc.List(h.ctx, owner, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLifecycle_RejectThenReopen(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 20)

	submitted, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PendingStatus(entity.PersonaDealDesk), submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	_, err = h.engine.Approve(h.ctx, h.stepFor(t, q.ID, entity.PersonaDealDesk).ID, dealDesk, "")
	require.NoError(t, err)
	_, err = h.engine.Reject(h.ctx, h.stepFor(t, q.ID, entity.PersonaCRO).ID, cro, "budget concerns, escalate", "")
	require.NoError(t, err)

	detail, err := h.svc.GetWithWorkflow(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusRejected, detail.Quote.Status)
	assert.Len(t, detail.Workflow.Steps, 5)

	reopened, err := h.svc.Reopen(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusDraftReopened, reopened.Status)

	steps, err := h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	assert.Equal(t, []string{
		entity.ActionCreate,
		entity.ActionSubmit,
		entity.ActionApprove,
		entity.ActionReject,
		entity.ActionReopen,
	}, actionTypes(t, h, q.ID))

	// resubmission derives a fresh chain
	again, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PendingStatus(entity.PersonaDealDesk), again.Status)
	steps, err = h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 5)
}

func TestSubmit_Rules(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 5)

	_, err := h.svc.Submit(h.ctx, otherAE, q.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = h.svc.Submit(h.ctx, owner, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)

	_, err = h.svc.Submit(h.ctx, owner, q.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	_, err = h.svc.Update(h.ctx, owner, q.ID, input(5))
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestSubmit_CustomerOnlyWorkflowCompletes(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 5)

	_, err := h.svc.ConfigureWorkflow(h.ctx, owner, q.ID, []StepInput{{Persona: "customer"}})
	require.NoError(t, err)

	submitted, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApproved, submitted.Status)
	require.NotNil(t, submitted.ApprovedAt)

	customer := h.stepFor(t, q.ID, entity.PersonaCustomer)
	assert.Equal(t, entity.StepStatusApproved, customer.Status)
	assert.True(t, customer.AutoApproved)

	stored, err := h.svc.Get(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApproved, stored.Status)
}

func TestReopen_OnlyFromRejected(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 5)

	_, err := h.svc.Reopen(h.ctx, owner, q.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	_, err = h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)
	_, err = h.svc.Reopen(h.ctx, owner, q.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	steps, err := h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 4, "a refused reopen leaves the workflow alone")
}

func TestTerminate(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 20)
	_, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)

	_, err = h.svc.Terminate(h.ctx, owner, q.ID, "too short")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.svc.Terminate(h.ctx, otherAE, q.ID, "customer went with a competitor")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	terminated, err := h.svc.Terminate(h.ctx, owner, q.ID, "customer went with a competitor")
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusTerminated, terminated.Status)
	assert.Equal(t, owner.UserID, terminated.TerminatedBy)
	assert.Equal(t, "customer went with a competitor", terminated.TerminationReason)
	require.NotNil(t, terminated.TerminatedAt)

	steps, err := h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.False(t, s.Status.IsOpen(), "step %s left open", s.Persona)
	}

	_, err = h.svc.Terminate(h.ctx, owner, q.ID, "customer went with a competitor")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestTerminate_ApprovedQuoteIsFinal(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 0)
	_, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)

	for _, who := range []entity.Identity{dealDesk, legal} {
		_, err := h.engine.Approve(h.ctx, h.stepFor(t, q.ID, who.Persona).ID, who, "")
		require.NoError(t, err)
	}
	approved, err := h.svc.Get(h.ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entity.QuoteStatusApproved, approved.Status)

	_, err = h.svc.Terminate(h.ctx, owner, q.ID, "changed our mind entirely")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestConfigureWorkflow(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 60)

	_, err := h.svc.ConfigureWorkflow(h.ctx, owner, q.ID, []StepInput{
		{Persona: "legal", StepOrder: 1},
		{Persona: "cro", StepOrder: 1},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.svc.ConfigureWorkflow(h.ctx, owner, q.ID, []StepInput{{Persona: "janitor"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.svc.ConfigureWorkflow(h.ctx, otherAE, q.ID, []StepInput{{Persona: "legal"}})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	optional := false
	steps, err := h.svc.ConfigureWorkflow(h.ctx, owner, q.ID, []StepInput{
		{Persona: "deal_desk"},
		{Persona: "Legal", Name: "Contract check"},
		{Persona: "finance", IsRequired: &optional},
	})
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{steps[0].StepOrder, steps[1].StepOrder, steps[2].StepOrder})
	assert.Equal(t, "Deal Desk", steps[0].Name)
	assert.Equal(t, "Contract check", steps[1].Name)
	assert.False(t, steps[2].IsRequired)

	submitted, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PendingStatus(entity.PersonaDealDesk), submitted.Status)

	stored, err := h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4, "configured steps are kept and ae is added")
	assert.Equal(t, entity.PersonaAE, stored[0].Persona)
	assert.Equal(t, entity.StepStatusApproved, stored[0].Status)

	// the optional finance step is skipped once the required ones are done
	for _, who := range []entity.Identity{dealDesk, legal} {
		_, err := h.engine.Approve(h.ctx, h.stepFor(t, q.ID, who.Persona).ID, who, "")
		require.NoError(t, err)
	}
	assert.Equal(t, entity.StepStatusSkipped, h.stepFor(t, q.ID, entity.PersonaFinance).Status)
	final, err := h.svc.Get(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApproved, final.Status)
}

func TestList_Visibility(t *testing.T) {
	h := newHarness(t)
	mine := h.create(t, 20)
	other, err := h.svc.Create(h.ctx, otherAE, input(5))
	require.NoError(t, err)
	_, err = h.svc.Submit(h.ctx, owner, mine.ID)
	require.NoError(t, err)

	list, err := h.svc.List(h.ctx, owner, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	croList, err := h.svc.List(h.ctx, cro, ListOptions{})
	require.NoError(t, err)
	require.Len(t, croList, 1, "cro takes part only in the 20% quote")

	draftsOfOther, err := h.svc.List(h.ctx, otherAE, ListOptions{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, draftsOfOther, 1)
	assert.Equal(t, other.ID, draftsOfOther[0].ID)

	inFlight, err := h.svc.List(h.ctx, owner, ListOptions{Status: "in_progress"})
	require.NoError(t, err)
	assert.Len(t, inFlight, 1)

	_, err = h.svc.List(h.ctx, owner, ListOptions{Status: "bogus"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDelete_RemovesDependents(t *testing.T) {
	h := newHarness(t)
	q := h.create(t, 20)
	_, err := h.svc.Submit(h.ctx, owner, q.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.Delete(h.ctx, otherAE, q.ID), apperr.ErrPermissionDenied)

	h.store.FailOn("actions.DeleteByQuoteID", errors.New("audit store down"))
	assert.ErrorIs(t, h.svc.Delete(h.ctx, owner, q.ID), apperr.ErrStorage)
	_, err = h.svc.Get(h.ctx, q.ID)
	require.NoError(t, err, "quote survives when its audit trail cannot be removed")
	assert.NotEmpty(t, actionTypes(t, h, q.ID))

	h.store.FailOn("actions.DeleteByQuoteID", nil)
	require.NoError(t, h.svc.Delete(h.ctx, owner, q.ID))

	_, err = h.svc.Get(h.ctx, q.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	steps, err := h.store.Steps().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
	items, err := h.store.Items().GetByQuoteID(h.ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGenerateFromPrompt(t *testing.T) {
	h := newHarness(t)

	h.drafter.draftFunc = func(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
		return &port.QuoteDraft{CustomerEmail: "nope", DiscountPercent: 150}, nil
	}
	q, err := h.svc.GenerateFromPrompt(h.ctx, owner, "a big deal")
	require.NoError(t, err)
	assert.Equal(t, "Prospective Customer", q.CustomerName)
	assert.Empty(t, q.CustomerEmail)
	assert.True(t, q.DiscountPercent.Equal(decimal.NewFromInt(100)))
	require.Len(t, q.Items, 1)
	assert.Equal(t, "Professional Services", q.Items[0].ProductName)
	assert.True(t, q.TotalAmount.IsZero())

	h.drafter.draftFunc = func(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
		return &port.QuoteDraft{
			CustomerName:    "Globex",
			DiscountPercent: 12.5,
			Items: []port.DraftItem{
				{ProductName: "Software License", Quantity: 5, UnitPrice: 2000},
				{ProductName: "", Quantity: 1, UnitPrice: 10},
			},
		}, nil
	}
	q, err = h.svc.GenerateFromPrompt(h.ctx, owner, "5 licenses for Globex")
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.Equal(t, "8750.00", q.TotalAmount.StringFixed(2))

	_, err = h.svc.GenerateFromPrompt(h.ctx, owner, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
