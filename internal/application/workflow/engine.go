package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/domain/event"
	domainwf "github.com/garyjia/cpq-approval/internal/domain/workflow"
)

const (
	// SystemActor is recorded on changes made by the workflow itself
	SystemActor = "system"

	MinReasonLength = 10
	MaxReasonLength = 1000

	commentCustomerAutoApproved = "Automatically approved - quote sent to customer"
	commentSkippedOnRejection   = "Skipped due to workflow rejection"
	commentSkippedOnCompletion  = "Skipped on workflow completion"
	commentAEAutoApproved       = "Automatically approved on submission"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Config tunes step timing and assignment
type Config struct {
	MaxProcessingDays        int
	EscalationProcessingDays int
	// AllowParallelSteps leaves the next step pending instead of marking it in_progress
	AllowParallelSteps bool
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		MaxProcessingDays:        DefaultMaxProcessingDays,
		EscalationProcessingDays: DefaultEscalationProcessingDays,
	}
}

// Engine applies approve, reject and escalate actions to workflow steps
// and cascades their consequences onto sibling steps and the quote.
//
// Cascades are best-effort: once the acted-on step is written, failures
// while updating siblings or the quote are logged and the action still
// succeeds. Status reads reconcile the quote against its steps.
type Engine struct {
	quotes    port.QuoteRepository
	steps     port.StepRepository
	publisher port.EventPublisher
	logger    Logger
	policy    EscalationPolicy
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*Engine)

// WithPublisher sets the publisher that receives workflow events
func WithPublisher(p port.EventPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithEscalationPolicy replaces the default escalation map
func WithEscalationPolicy(p EscalationPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithConfig sets step timing and assignment behaviour
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		if cfg.MaxProcessingDays <= 0 {
			cfg.MaxProcessingDays = DefaultMaxProcessingDays
		}
		if cfg.EscalationProcessingDays <= 0 {
			cfg.EscalationProcessingDays = DefaultEscalationProcessingDays
		}
		e.cfg = cfg
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(quotes port.QuoteRepository, steps port.StepRepository, opts ...EngineOption) *Engine {
	e := &Engine{
		quotes: quotes,
		steps:  steps,
		logger: nopLogger{},
		policy: DefaultEscalationPolicy(),
		cfg:    DefaultConfig(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Now returns the engine clock's current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// workflowView is one step loaded together with its quote and siblings
type workflowView struct {
	step  *entity.WorkflowStep
	quote *entity.Quote
	steps []*entity.WorkflowStep
}

func (e *Engine) load(ctx context.Context, op, stepID string) (*workflowView, error) {
	step, err := e.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if step == nil {
		return nil, apperr.NotFound(op, "workflow step %s not found", stepID)
	}

	quote, err := e.quotes.GetByID(ctx, step.QuoteID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if quote == nil {
		return nil, apperr.NotFound(op, "quote %s not found", step.QuoteID)
	}

	siblings, err := e.steps.GetByQuoteID(ctx, step.QuoteID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	found := false
	for i, s := range siblings {
		if s.ID == step.ID {
			siblings[i] = step
			found = true
		}
	}
	if !found {
		siblings = append(siblings, step)
	}

	return &workflowView{step: step, quote: quote, steps: siblings}, nil
}

func requireInFlight(op string, quote *entity.Quote) error {
	if !quote.Status.IsPending() {
		return apperr.InvalidTransition(op, "quote %s is %s, not awaiting approval", quote.ID, quote.Status)
	}
	return nil
}

// Approve marks the step approved and advances the workflow
func (e *Engine) Approve(ctx context.Context, stepID string, caller entity.Identity, comments string) (*entity.WorkflowStep, error) {
	const op = "Approve"

	wf, err := e.load(ctx, op, stepID)
	if err != nil {
		return nil, err
	}
	if err := requireInFlight(op, wf.quote); err != nil {
		return nil, err
	}
	if err := checkActionable(wf.step, wf.steps, caller.Persona); err != nil {
		return nil, err
	}

	step := wf.step
	if err := FireStep(ctx, step, domainwf.TriggerApprove); err != nil {
		return nil, err
	}

	now := e.now()
	step.ActionTaken = entity.ActionTakenApprove
	step.CompletedAt = &now
	step.CompletedBy = caller.UserID
	step.Comments = strings.TrimSpace(comments)
	step.UpdatedAt = now

	if err := e.steps.Update(ctx, step); err != nil {
		return nil, apperr.Storage(op, err)
	}

	e.logger.Info("Step approved",
		"quote_id", wf.quote.ID,
		"step_id", step.ID,
		"persona", step.Persona,
		"user_id", caller.UserID,
	)

	from := wf.quote.Status
	followUps := e.advance(ctx, wf.quote, wf.steps, now, true)

	e.publish(ctx, event.NewEvent(event.TypeStepApproved, wf.quote.ID, caller.UserID).
		ForStep(step.ID).
		Transition(from, wf.quote.Status).
		WithComments(step.Comments))
	e.publish(ctx, followUps...)

	return step, nil
}

// ValidateReason checks a rejection or termination reason
func ValidateReason(op, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperr.Validation(op, "a reason is required")
	}
	if len([]rune(reason)) < MinReasonLength {
		return "", apperr.Validation(op, "reason must be at least %d characters", MinReasonLength)
	}
	if len([]rune(reason)) > MaxReasonLength {
		return "", apperr.Validation(op, "reason must be at most %d characters", MaxReasonLength)
	}
	return reason, nil
}

// Reject marks the step rejected, skips every other open step and
// rejects the quote
func (e *Engine) Reject(ctx context.Context, stepID string, caller entity.Identity, reason, comments string) (*entity.WorkflowStep, error) {
	const op = "Reject"

	reason, err := ValidateReason(op, reason)
	if err != nil {
		return nil, err
	}

	wf, err := e.load(ctx, op, stepID)
	if err != nil {
		return nil, err
	}
	if err := requireInFlight(op, wf.quote); err != nil {
		return nil, err
	}
	if err := checkActionable(wf.step, wf.steps, caller.Persona); err != nil {
		return nil, err
	}

	step := wf.step
	if err := FireStep(ctx, step, domainwf.TriggerReject); err != nil {
		return nil, err
	}

	now := e.now()
	step.ActionTaken = entity.ActionTakenReject
	step.CompletedAt = &now
	step.CompletedBy = caller.UserID
	step.RejectionReason = reason
	step.Comments = strings.TrimSpace(comments)
	if step.Comments == "" {
		step.Comments = reason
	}
	step.UpdatedAt = now

	if err := e.steps.Update(ctx, step); err != nil {
		return nil, apperr.Storage(op, err)
	}

	e.logger.Info("Step rejected",
		"quote_id", wf.quote.ID,
		"step_id", step.ID,
		"persona", step.Persona,
		"user_id", caller.UserID,
	)

	from := wf.quote.Status
	e.cascadeRejection(ctx, wf.quote, wf.steps, step, now)

	e.publish(ctx, event.NewEvent(event.TypeStepRejected, wf.quote.ID, caller.UserID).
		ForStep(step.ID).
		Transition(from, wf.quote.Status).
		WithComments(reason))

	return step, nil
}

// Escalate hands the step's decision to a higher authority by appending
// a new step for the target persona. The escalation step is worked before
// anything that followed the original step.
func (e *Engine) Escalate(ctx context.Context, stepID string, caller entity.Identity, target entity.Persona, comments string) (*entity.WorkflowStep, error) {
	const op = "Escalate"

	wf, err := e.load(ctx, op, stepID)
	if err != nil {
		return nil, err
	}
	if err := requireInFlight(op, wf.quote); err != nil {
		return nil, err
	}
	if err := checkActionable(wf.step, wf.steps, caller.Persona); err != nil {
		return nil, err
	}

	step := wf.step
	to, err := e.policy.Target(step.Persona, target)
	if err != nil {
		return nil, err
	}
	if err := FireStep(ctx, step, domainwf.TriggerEscalate); err != nil {
		return nil, err
	}

	comments = strings.TrimSpace(comments)
	now := e.now()
	step.ActionTaken = entity.ActionTakenEscalate
	step.CompletedAt = &now
	step.CompletedBy = caller.UserID
	step.Comments = comments
	if step.Comments == "" {
		step.Comments = fmt.Sprintf("Escalated to %s", to)
	}
	step.UpdatedAt = now

	if err := e.steps.Update(ctx, step); err != nil {
		return nil, apperr.Storage(op, err)
	}

	reason := comments
	if reason == "" {
		reason = "No reason provided"
	}
	maxOrder := 0
	for _, s := range wf.steps {
		if s.StepOrder > maxOrder {
			maxOrder = s.StepOrder
		}
	}
	detour := &entity.WorkflowStep{
		ID:                e.newID(),
		QuoteID:           wf.quote.ID,
		Persona:           to,
		StepOrder:         maxOrder + 1,
		Name:              fmt.Sprintf("%s Escalation Review", to.Title()),
		Description:       fmt.Sprintf("Escalated from %s - %s", step.Persona, reason),
		IsRequired:        true,
		MaxProcessingDays: e.cfg.EscalationProcessingDays,
		Status:            entity.StepStatusPending,
		AssignedAt:        &now,
		EscalatedFrom:     step.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.steps.CreateBatch(ctx, []*entity.WorkflowStep{detour}); err != nil {
		return nil, apperr.Storage(op, err)
	}

	e.logger.Info("Step escalated",
		"quote_id", wf.quote.ID,
		"step_id", step.ID,
		"from", step.Persona,
		"to", to,
		"escalation_step_id", detour.ID,
	)

	from := wf.quote.Status
	e.advance(ctx, wf.quote, append(wf.steps, detour), now, false)

	e.publish(ctx, event.NewEvent(event.TypeStepEscalated, wf.quote.ID, caller.UserID).
		ForStep(step.ID).
		Transition(from, wf.quote.Status).
		WithComments(step.Comments).
		WithPayload("escalate_to", string(to)).
		WithPayload("escalation_step_id", detour.ID))

	return detour, nil
}

func (e *Engine) publish(ctx context.Context, events ...*event.Event) {
	if e.publisher == nil {
		return
	}
	for _, evt := range events {
		e.publisher.Publish(ctx, evt)
	}
}
