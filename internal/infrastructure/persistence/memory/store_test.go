package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

func TestQuoteRepo_CreateAssignsNumbersAndCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	q1 := &entity.Quote{ID: "q1", OwnerID: "u1", Status: entity.QuoteStatusDraft, CreatedAt: time.Now()}
	q2 := &entity.Quote{ID: "q2", OwnerID: "u2", Status: entity.QuoteStatusDraft, CreatedAt: time.Now()}
	require.NoError(t, s.Quotes().Create(ctx, q1))
	require.NoError(t, s.Quotes().Create(ctx, q2))
	assert.Equal(t, "Q-000001", q1.Number)
	assert.Equal(t, "Q-000002", q2.Number)
	assert.Error(t, s.Quotes().Create(ctx, q1))

	got, err := s.Quotes().GetByID(ctx, "q1")
	require.NoError(t, err)
	got.Status = entity.QuoteStatusApproved

	again, err := s.Quotes().GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusDraft, again.Status, "mutating a returned record must not touch the store")

	missing, err := s.Quotes().GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestQuoteRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	quotes := []*entity.Quote{
		{ID: "a", OwnerID: "ae-1", Status: entity.QuoteStatusDraft, CreatedAt: base},
		{ID: "b", OwnerID: "ae-1", Status: entity.PendingStatus(entity.PersonaLegal), CreatedAt: base.Add(time.Hour)},
		{ID: "c", OwnerID: "ae-2", Status: entity.QuoteStatusApproved, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", OwnerID: "ae-2", Status: entity.QuoteStatusTerminated, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, q := range quotes {
		require.NoError(t, s.Quotes().Create(ctx, q))
	}
	require.NoError(t, s.Steps().CreateBatch(ctx, []*entity.WorkflowStep{
		{ID: "s1", QuoteID: "c", Persona: entity.PersonaLegal, StepOrder: 1, Status: entity.StepStatusApproved},
	}))

	tests := []struct {
		name   string
		filter entity.QuoteFilter
		want   []string
	}{
		{"all newest first", entity.QuoteFilter{}, []string{"d", "c", "b", "a"}},
		{"owner", entity.QuoteFilter{OwnerID: "ae-1"}, []string{"b", "a"}},
		{"visible to legal", entity.QuoteFilter{VisibleTo: entity.PersonaLegal}, []string{"c", "b"}},
		{"status", entity.QuoteFilter{Statuses: []entity.QuoteStatus{entity.QuoteStatusApproved}}, []string{"c"}},
		{"in progress", entity.QuoteFilter{InProgress: true}, []string{"b", "a"}},
		{"paged", entity.QuoteFilter{Limit: 2, Offset: 1}, []string{"c", "b"}},
		{"offset past end", entity.QuoteFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Quotes().List(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, q := range got {
				ids = append(ids, q.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStepRepo_OrderingAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Steps().CreateBatch(ctx, []*entity.WorkflowStep{
		{ID: "s3", QuoteID: "q", Persona: entity.PersonaLegal, StepOrder: 3, Status: entity.StepStatusPending},
		{ID: "s1", QuoteID: "q", Persona: entity.PersonaAE, StepOrder: 1, Status: entity.StepStatusApproved},
		{ID: "s2", QuoteID: "q", Persona: entity.PersonaDealDesk, StepOrder: 2, Status: entity.StepStatusPending},
	}))

	steps, err := s.Steps().GetByQuoteID(ctx, "q")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{steps[0].StepOrder, steps[1].StepOrder, steps[2].StepOrder})

	dup := &entity.WorkflowStep{ID: "s4", QuoteID: "q", Persona: entity.PersonaCRO, StepOrder: 2, Status: entity.StepStatusPending}
	assert.Error(t, s.Steps().CreateBatch(ctx, []*entity.WorkflowStep{dup}))

	bad := &entity.WorkflowStep{ID: "s5", QuoteID: "q", Persona: entity.PersonaCRO, StepOrder: 9, Status: "done"}
	assert.Error(t, s.Steps().CreateBatch(ctx, []*entity.WorkflowStep{bad}))

	open, err := s.Steps().ListByStatus(ctx, entity.StepStatusPending)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	n, err := s.Steps().DeleteByQuoteID(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("connection reset")

	s.FailOn("quotes.GetByID", boom)
	_, err := s.Quotes().GetByID(ctx, "q")
	assert.ErrorIs(t, err, boom)

	s.FailOn("quotes.GetByID", nil)
	_, err = s.Quotes().GetByID(ctx, "q")
	assert.NoError(t, err)
}

func TestActionRepo(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Actions().Create(ctx, &entity.QuoteAction{ID: "a1", QuoteID: "q1", ActionType: entity.ActionCreate}))
	require.NoError(t, s.Actions().Create(ctx, &entity.QuoteAction{ID: "a2", QuoteID: "q2", ActionType: entity.ActionCreate}))
	require.NoError(t, s.Actions().Create(ctx, &entity.QuoteAction{ID: "a3", QuoteID: "q1", ActionType: entity.ActionSubmit}))

	got, err := s.Actions().GetByQuoteID(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entity.ActionSubmit, got[1].ActionType)

	require.NoError(t, s.Actions().DeleteByQuoteID(ctx, "q1"))
	got, err = s.Actions().GetByQuoteID(ctx, "q1")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := s.Actions().GetByQuoteID(ctx, "q2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
