// Package memory provides an in-process record store implementing the
// repository ports. It backs the application and handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Store holds every table in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	seq     int
	quotes  map[string]*entity.Quote
	items   map[string]*entity.QuoteItem
	steps   map[string]*entity.WorkflowStep
	actions []*entity.QuoteAction
	users   map[string]*entity.User
	faults  map[string]error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		quotes: make(map[string]*entity.Quote),
		items:  make(map[string]*entity.QuoteItem),
		steps:  make(map[string]*entity.WorkflowStep),
		users:  make(map[string]*entity.User),
		faults: make(map[string]error),
	}
}

// FailOn makes the named operation (for example "steps.Update") return err.
// A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	return s.faults[op]
}

// Quotes returns the quote repository view of the store
func (s *Store) Quotes() port.QuoteRepository { return &quoteRepo{s} }

// Items returns the item repository view of the store
func (s *Store) Items() port.ItemRepository { return &itemRepo{s} }

// Steps returns the step repository view of the store
func (s *Store) Steps() port.StepRepository { return &stepRepo{s} }

// Actions returns the audit-trail repository view of the store
func (s *Store) Actions() port.ActionRepository { return &actionRepo{s} }

// Users returns the user repository view of the store
func (s *Store) Users() port.UserRepository { return &userRepo{s} }

type quoteRepo struct{ s *Store }

var _ port.QuoteRepository = (*quoteRepo)(nil)

func copyQuote(q *entity.Quote) *entity.Quote {
	cp := *q
	cp.Items = nil
	return &cp
}

func (r *quoteRepo) Create(ctx context.Context, q *entity.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("quotes.Create"); err != nil {
		return err
	}
	if _, exists := r.s.quotes[q.ID]; exists {
		return fmt.Errorf("quote %s already exists", q.ID)
	}
	r.s.seq++
	q.Number = fmt.Sprintf("Q-%06d", r.s.seq)
	r.s.quotes[q.ID] = copyQuote(q)
	return nil
}

func (r *quoteRepo) GetByID(ctx context.Context, id string) (*entity.Quote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("quotes.GetByID"); err != nil {
		return nil, err
	}
	q, ok := r.s.quotes[id]
	if !ok {
		return nil, nil
	}
	return copyQuote(q), nil
}

func (r *quoteRepo) Update(ctx context.Context, q *entity.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("quotes.Update"); err != nil {
		return err
	}
	if _, ok := r.s.quotes[q.ID]; !ok {
		return fmt.Errorf("quote %s not found", q.ID)
	}
	r.s.quotes[q.ID] = copyQuote(q)
	return nil
}

func (r *quoteRepo) UpdateStatus(ctx context.Context, id string, status entity.QuoteStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("quotes.UpdateStatus"); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid quote status %q", status)
	}
	q, ok := r.s.quotes[id]
	if !ok {
		return fmt.Errorf("quote %s not found", id)
	}
	q.Status = status
	return nil
}

func (r *quoteRepo) List(ctx context.Context, f entity.QuoteFilter) ([]*entity.Quote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("quotes.List"); err != nil {
		return nil, err
	}

	hasStep := make(map[string]bool)
	if f.VisibleTo != "" {
		for _, st := range r.s.steps {
			if st.Persona == f.VisibleTo {
				hasStep[st.QuoteID] = true
			}
		}
	}

	var out []*entity.Quote
	for _, q := range r.s.quotes {
		if f.OwnerID != "" && q.OwnerID != f.OwnerID {
			continue
		}
		if f.VisibleTo != "" && !hasStep[q.ID] && q.Status != entity.PendingStatus(f.VisibleTo) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, q.Status) {
			continue
		}
		if f.InProgress && (q.Status == entity.QuoteStatusApproved || q.Status == entity.QuoteStatusTerminated) {
			continue
		}
		out = append(out, copyQuote(q))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*entity.Quote{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsStatus(list []entity.QuoteStatus, s entity.QuoteStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *quoteRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("quotes.Delete"); err != nil {
		return err
	}
	delete(r.s.quotes, id)
	return nil
}

type itemRepo struct{ s *Store }

var _ port.ItemRepository = (*itemRepo)(nil)

func (r *itemRepo) CreateBatch(ctx context.Context, items []*entity.QuoteItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("items.CreateBatch"); err != nil {
		return err
	}
	for _, it := range items {
		cp := *it
		r.s.items[it.ID] = &cp
	}
	return nil
}

func (r *itemRepo) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("items.GetByQuoteID"); err != nil {
		return nil, err
	}
	var out []*entity.QuoteItem
	for _, it := range r.s.items {
		if it.QuoteID == quoteID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (r *itemRepo) DeleteByQuoteID(ctx context.Context, quoteID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("items.DeleteByQuoteID"); err != nil {
		return err
	}
	for id, it := range r.s.items {
		if it.QuoteID == quoteID {
			delete(r.s.items, id)
		}
	}
	return nil
}

type stepRepo struct{ s *Store }

var _ port.StepRepository = (*stepRepo)(nil)

func (r *stepRepo) CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("steps.CreateBatch"); err != nil {
		return err
	}
	for _, st := range steps {
		if !st.Status.IsValid() || !st.Persona.IsValid() {
			return fmt.Errorf("invalid step %s: status %q persona %q", st.ID, st.Status, st.Persona)
		}
		if err := r.checkOrder(st); err != nil {
			return err
		}
	}
	for _, st := range steps {
		cp := *st
		r.s.steps[st.ID] = &cp
	}
	return nil
}

// checkOrder enforces unique step orders per quote
func (r *stepRepo) checkOrder(st *entity.WorkflowStep) error {
	for _, other := range r.s.steps {
		if other.ID != st.ID && other.QuoteID == st.QuoteID && other.StepOrder == st.StepOrder {
			return fmt.Errorf("step order %d already used on quote %s", st.StepOrder, st.QuoteID)
		}
	}
	return nil
}

func (r *stepRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("steps.GetByID"); err != nil {
		return nil, err
	}
	st, ok := r.s.steps[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *stepRepo) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.WorkflowStep, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("steps.GetByQuoteID"); err != nil {
		return nil, err
	}
	var out []*entity.WorkflowStep
	for _, st := range r.s.steps {
		if st.QuoteID == quoteID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (r *stepRepo) ListByStatus(ctx context.Context, statuses ...entity.StepStatus) ([]*entity.WorkflowStep, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("steps.ListByStatus"); err != nil {
		return nil, err
	}
	want := make(map[entity.StepStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*entity.WorkflowStep
	for _, st := range r.s.steps {
		if len(want) == 0 || want[st.Status] {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuoteID != out[j].QuoteID {
			return out[i].QuoteID < out[j].QuoteID
		}
		return out[i].StepOrder < out[j].StepOrder
	})
	return out, nil
}

func (r *stepRepo) Update(ctx context.Context, st *entity.WorkflowStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("steps.Update"); err != nil {
		return err
	}
	if _, ok := r.s.steps[st.ID]; !ok {
		return fmt.Errorf("step %s not found", st.ID)
	}
	if !st.Status.IsValid() {
		return fmt.Errorf("invalid step status %q", st.Status)
	}
	if err := r.checkOrder(st); err != nil {
		return err
	}
	cp := *st
	r.s.steps[st.ID] = &cp
	return nil
}

func (r *stepRepo) DeleteByQuoteID(ctx context.Context, quoteID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("steps.DeleteByQuoteID"); err != nil {
		return 0, err
	}
	n := 0
	for id, st := range r.s.steps {
		if st.QuoteID == quoteID {
			delete(r.s.steps, id)
			n++
		}
	}
	return n, nil
}

type actionRepo struct{ s *Store }

var _ port.ActionRepository = (*actionRepo)(nil)

func (r *actionRepo) Create(ctx context.Context, a *entity.QuoteAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("actions.Create"); err != nil {
		return err
	}
	cp := *a
	r.s.actions = append(r.s.actions, &cp)
	return nil
}

func (r *actionRepo) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteAction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("actions.GetByQuoteID"); err != nil {
		return nil, err
	}
	var out []*entity.QuoteAction
	for _, a := range r.s.actions {
		if a.QuoteID == quoteID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *actionRepo) DeleteByQuoteID(ctx context.Context, quoteID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("actions.DeleteByQuoteID"); err != nil {
		return err
	}
	kept := r.s.actions[:0]
	for _, a := range r.s.actions {
		if a.QuoteID != quoteID {
			kept = append(kept, a)
		}
	}
	r.s.actions = kept
	return nil
}

type userRepo struct{ s *Store }

var _ port.UserRepository = (*userRepo)(nil)

func (r *userRepo) Upsert(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.Upsert"); err != nil {
		return err
	}
	cp := *u
	if existing, ok := r.s.users[u.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	r.s.users[u.ID] = &cp
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
