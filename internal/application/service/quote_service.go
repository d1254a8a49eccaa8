package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/domain/event"
	domainwf "github.com/garyjia/cpq-approval/internal/domain/workflow"
	"github.com/garyjia/cpq-approval/pkg/utils"
)

const (
	DefaultCurrency  = "USD"
	DefaultListLimit = 50
	MaxListLimit     = 200

	defaultCustomerName = "Prospective Customer"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ItemInput is a line item as supplied by a caller
type ItemInput struct {
	ProductName     string          `json:"product_name"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
}

// QuoteInput carries the editable fields of a quote
type QuoteInput struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerCompany string          `json:"customer_company"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Currency        string          `json:"currency"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ValidUntil      *time.Time      `json:"valid_until"`
	Items           []ItemInput     `json:"items"`
}

// StepInput configures one workflow step on a draft quote
type StepInput struct {
	Persona           string `json:"persona"`
	StepOrder         int    `json:"step_order"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	IsRequired        *bool  `json:"is_required"`
	MaxProcessingDays int    `json:"max_processing_days"`
}

// ListOptions narrows a quote listing. Status accepts any quote status
// or "in_progress" for quotes that are neither approved nor terminated.
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

// QuoteDetail is a quote with its items and workflow state
type QuoteDetail struct {
	Quote    *entity.Quote            `json:"quote"`
	Workflow *workflow.WorkflowStatus `json:"workflow"`
}

// QuoteService coordinates the quote lifecycle around the approval workflow
type QuoteService interface {
	Create(ctx context.Context, caller entity.Identity, in QuoteInput) (*entity.Quote, error)
	GenerateFromPrompt(ctx context.Context, caller entity.Identity, prompt string) (*entity.Quote, error)
	Get(ctx context.Context, id string) (*entity.Quote, error)
	GetWithWorkflow(ctx context.Context, caller entity.Identity, id string) (*QuoteDetail, error)
	List(ctx context.Context, caller entity.Identity, opts ListOptions) ([]*entity.Quote, error)
	Update(ctx context.Context, caller entity.Identity, id string, in QuoteInput) (*entity.Quote, error)
	ConfigureWorkflow(ctx context.Context, caller entity.Identity, id string, steps []StepInput) ([]*entity.WorkflowStep, error)
	Submit(ctx context.Context, caller entity.Identity, id string) (*entity.Quote, error)
	Terminate(ctx context.Context, caller entity.Identity, id, reason string) (*entity.Quote, error)
	Reopen(ctx context.Context, caller entity.Identity, id string) (*entity.Quote, error)
	Delete(ctx context.Context, caller entity.Identity, id string) error
	Actions(ctx context.Context, id string) ([]*entity.QuoteAction, error)
}

type quoteServiceImpl struct {
	quotes    port.QuoteRepository
	items     port.ItemRepository
	steps     port.StepRepository
	actions   port.ActionRepository
	engine    *workflow.Engine
	publisher port.EventPublisher
	drafter   port.QuoteDrafter
	logger    Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	quotes port.QuoteRepository,
	items port.ItemRepository,
	steps port.StepRepository,
	actions port.ActionRepository,
	engine *workflow.Engine,
	publisher port.EventPublisher,
	drafter port.QuoteDrafter,
	logger Logger,
) QuoteService {
	return &quoteServiceImpl{
		quotes:    quotes,
		items:     items,
		steps:     steps,
		actions:   actions,
		engine:    engine,
		publisher: publisher,
		drafter:   drafter,
		logger:    logger,
	}
}

func (s *quoteServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, evt)
	}
}

// buildItems validates the input and returns priced items
func buildItems(op string, in *QuoteInput) ([]entity.QuoteItem, error) {
	in.CustomerName = utils.SanitizeString(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.Title = utils.SanitizeString(in.Title)

	if in.CustomerName == "" {
		return nil, apperr.Validation(op, "customer name is required")
	}
	if in.CustomerEmail != "" {
		if err := utils.ValidateEmail(in.CustomerEmail); err != nil {
			return nil, apperr.Validation(op, "%v", err)
		}
	}
	if err := utils.ValidatePercent("discount_percent", in.DiscountPercent); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation(op, "at least one line item is required")
	}

	items := make([]entity.QuoteItem, 0, len(in.Items))
	for i, it := range in.Items {
		line := i + 1
		name := utils.SanitizeString(it.ProductName)
		if name == "" {
			return nil, apperr.Validation(op, "item %d: product name is required", line)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation(op, "item %d: quantity must be greater than 0", line)
		}
		if it.UnitPrice.IsNegative() {
			return nil, apperr.Validation(op, "item %d: unit price cannot be negative", line)
		}
		if err := utils.ValidatePercent("discount_percent", it.DiscountPercent); err != nil {
			return nil, apperr.Validation(op, "item %d: %v", line, err)
		}
		if it.DiscountAmount.IsNegative() {
			return nil, apperr.Validation(op, "item %d: discount amount cannot be negative", line)
		}
		items = append(items, entity.QuoteItem{
			LineNumber:      line,
			ProductName:     name,
			Description:     strings.TrimSpace(it.Description),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			DiscountAmount:  it.DiscountAmount,
		})
	}
	return items, nil
}

func applyInput(quote *entity.Quote, in QuoteInput, items []entity.QuoteItem) {
	quote.CustomerName = in.CustomerName
	quote.CustomerEmail = in.CustomerEmail
	quote.CustomerCompany = strings.TrimSpace(in.CustomerCompany)
	quote.Title = in.Title
	quote.Description = strings.TrimSpace(in.Description)
	quote.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if quote.Currency == "" {
		quote.Currency = DefaultCurrency
	}
	quote.DiscountPercent = in.DiscountPercent
	quote.ValidUntil = in.ValidUntil
	quote.TotalAmount = QuoteTotal(items, in.DiscountPercent)
}

func (s *quoteServiceImpl) saveItems(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem, now time.Time) error {
	batch := make([]*entity.QuoteItem, len(items))
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].QuoteID = quote.ID
		items[i].CreatedAt = now
		batch[i] = &items[i]
	}
	if err := s.items.CreateBatch(ctx, batch); err != nil {
		return err
	}
	quote.Items = items
	return nil
}

// Create stores a new draft quote owned by the caller
func (s *quoteServiceImpl) Create(ctx context.Context, caller entity.Identity, in QuoteInput) (*entity.Quote, error) {
	const op = "CreateQuote"

	items, err := buildItems(op, &in)
	if err != nil {
		return nil, err
	}

	now := s.engine.Now()
	quote := &entity.Quote{
		ID:        uuid.NewString(),
		OwnerID:   caller.UserID,
		Status:    entity.QuoteStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(quote, in, items)

	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, apperr.Storage(op, err)
	}
	if err := s.saveItems(ctx, quote, items, now); err != nil {
		if delErr := s.quotes.Delete(ctx, quote.ID); delErr != nil {
			s.logger.Error("Failed to remove quote after item failure", "quote_id", quote.ID, "error", delErr)
		}
		return nil, apperr.Storage(op, err)
	}

	s.logger.Info("Quote created", "quote_id", quote.ID, "number", quote.Number, "owner_id", caller.UserID, "total", quote.TotalAmount.String())
	s.publish(ctx, event.NewEvent(event.TypeQuoteCreated, quote.ID, caller.UserID).
		Transition("", quote.Status))

	return quote, nil
}

// GenerateFromPrompt drafts a quote from natural language and creates it
// through the regular validation path
func (s *quoteServiceImpl) GenerateFromPrompt(ctx context.Context, caller entity.Identity, prompt string) (*entity.Quote, error) {
	const op = "GenerateQuote"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.Validation(op, "prompt is required")
	}
	if s.drafter == nil {
		return nil, apperr.Validation(op, "quote drafting is not configured")
	}

	draft, err := s.drafter.Draft(ctx, prompt)
	if err != nil {
		return nil, apperr.Validation(op, "could not draft quote: %v", err)
	}

	return s.Create(ctx, caller, inputFromDraft(draft))
}

func inputFromDraft(draft *port.QuoteDraft) QuoteInput {
	in := QuoteInput{
		CustomerName:    draft.CustomerName,
		CustomerEmail:   draft.CustomerEmail,
		CustomerCompany: draft.CustomerCompany,
		Title:           draft.Title,
		Description:     draft.Description,
		DiscountPercent: utils.ClampPercent(decimal.NewFromFloat(draft.DiscountPercent).Round(2)),
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		in.CustomerName = defaultCustomerName
	}
	if in.CustomerEmail != "" && utils.ValidateEmail(in.CustomerEmail) != nil {
		in.CustomerEmail = ""
	}

	for _, it := range draft.Items {
		if strings.TrimSpace(it.ProductName) == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			continue
		}
		in.Items = append(in.Items, ItemInput{
			ProductName:     it.ProductName,
			Description:     it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       decimal.NewFromFloat(it.UnitPrice).Round(2),
			DiscountPercent: utils.ClampPercent(decimal.NewFromFloat(it.DiscountPercent).Round(2)),
		})
	}
	if len(in.Items) == 0 {
		in.Items = []ItemInput{{
			ProductName: "Professional Services",
			Description: "Consulting and implementation services",
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(1000),
		}}
	}
	return in
}

func (s *quoteServiceImpl) load(ctx context.Context, op, id string) (*entity.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if quote == nil {
		return nil, apperr.NotFound(op, "quote %s not found", id)
	}
	return quote, nil
}

func (s *quoteServiceImpl) loadOwned(ctx context.Context, op, id string, caller entity.Identity) (*entity.Quote, error) {
	quote, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if quote.OwnerID != caller.UserID {
		return nil, apperr.PermissionDenied(op, "quote %s belongs to another user", id)
	}
	return quote, nil
}

// Get returns the quote with its items
func (s *quoteServiceImpl) Get(ctx context.Context, id string) (*entity.Quote, error) {
	const op = "GetQuote"

	quote, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	items, err := s.items.GetByQuoteID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	quote.Items = make([]entity.QuoteItem, 0, len(items))
	for _, it := range items {
		quote.Items = append(quote.Items, *it)
	}
	return quote, nil
}

// GetWithWorkflow returns the quote, its items and its workflow state.
// The workflow is read first so the quote reflects any reconciliation.
func (s *quoteServiceImpl) GetWithWorkflow(ctx context.Context, caller entity.Identity, id string) (*QuoteDetail, error) {
	status, err := s.engine.Status(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	quote, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &QuoteDetail{Quote: quote, Workflow: status}, nil
}

// List returns the quotes visible to the caller. Account executives see
// their own quotes; other personas see quotes they take part in.
func (s *quoteServiceImpl) List(ctx context.Context, caller entity.Identity, opts ListOptions) ([]*entity.Quote, error) {
	const op = "ListQuotes"

	filter := entity.QuoteFilter{Limit: opts.Limit, Offset: opts.Offset}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if caller.Persona == entity.PersonaAE {
		filter.OwnerID = caller.UserID
	} else {
		filter.VisibleTo = caller.Persona
	}

	switch status := strings.TrimSpace(opts.Status); status {
	case "", "all":
	case "in_progress":
		filter.InProgress = true
	default:
		qs := entity.QuoteStatus(status)
		if !qs.IsValid() {
			return nil, apperr.Validation(op, "unknown status filter %q", status)
		}
		filter.Statuses = []entity.QuoteStatus{qs}
	}

	quotes, err := s.quotes.List(ctx, filter)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if quotes == nil {
		quotes = []*entity.Quote{}
	}
	return quotes, nil
}

// Update replaces the editable fields and items of a draft quote
func (s *quoteServiceImpl) Update(ctx context.Context, caller entity.Identity, id string, in QuoteInput) (*entity.Quote, error) {
	const op = "UpdateQuote"

	quote, err := s.loadOwned(ctx, op, id, caller)
	if err != nil {
		return nil, err
	}
	if !quote.Status.IsDraft() {
		return nil, apperr.InvalidTransition(op, "quote %s is %s; only drafts can be edited", id, quote.Status)
	}
	items, err := buildItems(op, &in)
	if err != nil {
		return nil, err
	}

	now := s.engine.Now()
	applyInput(quote, in, items)
	quote.UpdatedAt = now

	if err := s.items.DeleteByQuoteID(ctx, id); err != nil {
		return nil, apperr.Storage(op, err)
	}
	if err := s.saveItems(ctx, quote, items, now); err != nil {
		return nil, apperr.Storage(op, err)
	}
	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, apperr.Storage(op, err)
	}

	s.publish(ctx, event.NewEvent(event.TypeQuoteUpdated, id, caller.UserID).
		Transition(quote.Status, quote.Status))
	return quote, nil
}

// ConfigureWorkflow replaces the steps of a draft quote. Submit reuses them.
func (s *quoteServiceImpl) ConfigureWorkflow(ctx context.Context, caller entity.Identity, id string, inputs []StepInput) ([]*entity.WorkflowStep, error) {
	const op = "ConfigureWorkflow"

	quote, err := s.loadOwned(ctx, op, id, caller)
	if err != nil {
		return nil, err
	}
	if !quote.Status.IsDraft() {
		return nil, apperr.InvalidTransition(op, "quote %s is %s; workflow can only be configured on drafts", id, quote.Status)
	}

	specs, err := stepSpecs(op, inputs)
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.ResetWorkflow(ctx, id); err != nil {
		return nil, err
	}
	steps := s.engine.NewConfiguredSteps(id, specs)
	if err := s.steps.CreateBatch(ctx, steps); err != nil {
		return nil, apperr.Storage(op, err)
	}

	s.logger.Info("Workflow configured", "quote_id", id, "steps", len(steps))
	s.publish(ctx, event.NewEvent(event.TypeWorkflowConfigured, id, caller.UserID).
		Transition(quote.Status, quote.Status).
		WithPayload("steps", len(steps)))

	return workflow.ProcessingOrder(steps), nil
}

func stepSpecs(op string, inputs []StepInput) ([]entity.StepSpec, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation(op, "at least one step is required")
	}

	seen := make(map[int]bool, len(inputs))
	specs := make([]entity.StepSpec, 0, len(inputs))
	for i, in := range inputs {
		persona, ok := entity.ParsePersona(in.Persona)
		if !ok {
			return nil, apperr.Validation(op, "step %d: unknown persona %q", i+1, in.Persona)
		}
		order := in.StepOrder
		if order == 0 {
			order = i + 1
		}
		if order < 0 {
			return nil, apperr.Validation(op, "step %d: order must be positive", i+1)
		}
		if seen[order] {
			return nil, apperr.Validation(op, "duplicate step order %d", order)
		}
		seen[order] = true

		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = persona.Title()
		}
		required := true
		if in.IsRequired != nil {
			required = *in.IsRequired
		}
		specs = append(specs, entity.StepSpec{
			Persona:           persona,
			StepOrder:         order,
			Name:              name,
			Description:       strings.TrimSpace(in.Description),
			IsRequired:        required,
			MaxProcessingDays: in.MaxProcessingDays,
		})
	}
	return specs, nil
}

// Submit starts the approval workflow of a draft quote
func (s *quoteServiceImpl) Submit(ctx context.Context, caller entity.Identity, id string) (*entity.Quote, error) {
	const op = "SubmitQuote"

	quote, err := s.loadOwned(ctx, op, id, caller)
	if err != nil {
		return nil, err
	}
	if !workflow.CanTransitionQuote(quote.Status, domainwf.TriggerSubmit) {
		return nil, apperr.InvalidTransition(op, "quote %s is %s; only drafts can be submitted", id, quote.Status)
	}

	steps, err := s.engine.StartWorkflow(ctx, quote, caller.UserID)
	if err != nil {
		return nil, err
	}

	target := entity.PendingStatus(entity.PersonaDealDesk)
	if next, ok := workflow.NextApprover(steps); ok {
		target = entity.PendingStatus(next.Persona)
	}

	from := quote.Status
	if err := workflow.TransitionQuote(ctx, quote, domainwf.TriggerSubmit, target); err != nil {
		return nil, err
	}
	now := s.engine.Now()
	quote.SubmittedAt = &now
	quote.ApprovedAt = nil
	quote.UpdatedAt = now
	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, apperr.Storage(op, err)
	}

	s.logger.Info("Quote submitted", "quote_id", id, "status", quote.Status, "steps", len(steps))
	s.publish(ctx, event.NewEvent(event.TypeQuoteSubmitted, id, caller.UserID).
		Transition(from, quote.Status))

	if s.engine.CompleteIfReady(ctx, quote, steps) {
		s.logger.Info("Quote approved on submit", "quote_id", id)
	}

	return quote, nil
}

// Terminate ends a quote for good and cancels its open steps
func (s *quoteServiceImpl) Terminate(ctx context.Context, caller entity.Identity, id, reason string) (*entity.Quote, error) {
	const op = "TerminateQuote"

	reason, err := workflow.ValidateReason(op, reason)
	if err != nil {
		return nil, err
	}
	quote, err := s.loadOwned(ctx, op, id, caller)
	if err != nil {
		return nil, err
	}

	from := quote.Status
	if err := workflow.TransitionQuote(ctx, quote, domainwf.TriggerTerminate, entity.QuoteStatusTerminated); err != nil {
		return nil, apperr.InvalidTransition(op, "quote %s is %s and cannot be terminated", id, from)
	}

	now := s.engine.Now()
	quote.TerminatedAt = &now
	quote.TerminatedBy = caller.UserID
	quote.TerminationReason = reason
	quote.UpdatedAt = now
	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, apperr.Storage(op, err)
	}

	cancelled, err := s.engine.CancelOpenSteps(ctx, id, "Cancelled: quote terminated")
	if err != nil {
		s.logger.Error("Failed to cancel steps of terminated quote", "quote_id", id, "error", err)
	}

	s.logger.Info("Quote terminated", "quote_id", id, "from", from, "cancelled_steps", cancelled)
	s.publish(ctx, event.NewEvent(event.TypeQuoteTerminated, id, caller.UserID).
		Transition(from, quote.Status).
		WithComments(reason))

	return quote, nil
}

// Reopen resets the workflow of a rejected quote and returns it to draft
func (s *quoteServiceImpl) Reopen(ctx context.Context, caller entity.Identity, id string) (*entity.Quote, error) {
	const op = "ReopenQuote"

	quote, err := s.loadOwned(ctx, op, id, caller)
	if err != nil {
		return nil, err
	}

	from := quote.Status
	if err := workflow.TransitionQuote(ctx, quote, domainwf.TriggerReopen, entity.QuoteStatusDraftReopened); err != nil {
		return nil, apperr.InvalidTransition(op, "quote %s is %s; only rejected quotes can be reopened", id, from)
	}

	if _, err := s.engine.ResetWorkflow(ctx, id); err != nil {
		return nil, err
	}

	quote.SubmittedAt = nil
	quote.UpdatedAt = s.engine.Now()
	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, apperr.Storage(op, err)
	}

	s.logger.Info("Quote reopened", "quote_id", id)
	s.publish(ctx, event.NewEvent(event.TypeQuoteReopened, id, caller.UserID).
		Transition(from, quote.Status))

	return quote, nil
}

// Delete removes the quote and everything that references it. Steps, items
// and the audit trail go first since the store does not cascade.
func (s *quoteServiceImpl) Delete(ctx context.Context, caller entity.Identity, id string) error {
	const op = "DeleteQuote"

	if _, err := s.loadOwned(ctx, op, id, caller); err != nil {
		return err
	}

	if _, err := s.engine.ResetWorkflow(ctx, id); err != nil {
		return err
	}
	if err := s.items.DeleteByQuoteID(ctx, id); err != nil {
		return apperr.Storage(op, err)
	}
	if err := s.actions.DeleteByQuoteID(ctx, id); err != nil {
		return apperr.Storage(op, err)
	}
	if err := s.quotes.Delete(ctx, id); err != nil {
		return apperr.Storage(op, err)
	}

	s.logger.Info("Quote deleted", "quote_id", id, "user_id", caller.UserID)
	return nil
}

// Actions returns the audit trail of a quote, oldest first
func (s *quoteServiceImpl) Actions(ctx context.Context, id string) ([]*entity.QuoteAction, error) {
	const op = "QuoteActions"

	if _, err := s.load(ctx, op, id); err != nil {
		return nil, err
	}
	actions, err := s.actions.GetByQuoteID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if actions == nil {
		actions = []*entity.QuoteAction{}
	}
	return actions, nil
}
