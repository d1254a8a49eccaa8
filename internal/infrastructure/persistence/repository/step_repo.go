package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewStepRepository creates a new workflow step repository
func NewStepRepository(db *sqlite.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

func validateStep(step *entity.WorkflowStep) error {
	if !step.Status.IsValid() {
		return fmt.Errorf("invalid step status %q", step.Status)
	}
	if !step.Persona.IsValid() {
		return fmt.Errorf("invalid step persona %q", step.Persona)
	}
	return nil
}

// CreateBatch inserts all steps or none
func (r *StepRepository) CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (
			id, quote_id, persona, step_order, name, description, is_required,
			max_processing_days, status, action_taken, assigned_at, completed_at, completed_by,
			comments, rejection_reason, auto_approved, escalated_from, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, step := range steps {
		if err := validateStep(step); err != nil {
			return err
		}
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Executor(ctx)
		for _, s := range steps {
			_, err := exec.ExecContext(ctx, query,
				s.ID, s.QuoteID, string(s.Persona), s.StepOrder, s.Name, s.Description, s.IsRequired,
				s.MaxProcessingDays, string(s.Status), s.ActionTaken,
				nullTime(s.AssignedAt), nullTime(s.CompletedAt), s.CompletedBy,
				s.Comments, s.RejectionReason, s.AutoApproved, s.EscalatedFrom,
				s.CreatedAt, s.UpdatedAt,
			)
			if err != nil {
				r.logger.Error("Failed to create workflow step",
					zap.String("quote_id", s.QuoteID),
					zap.String("persona", string(s.Persona)),
					zap.Int("step_order", s.StepOrder),
					zap.Error(err))
				return fmt.Errorf("failed to create workflow step: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a step, or nil when it does not exist
func (r *StepRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error) {
	var row stepRow
	err := r.db.Executor(ctx).GetContext(ctx, &row, `SELECT `+stepColumns+` FROM workflow_steps WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow step", zap.String("step_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow step: %w", err)
	}
	return row.toEntity(), nil
}

// GetByQuoteID retrieves the steps of a quote ordered by step order
func (r *StepRepository) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.WorkflowStep, error) {
	var rows []stepRow
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE quote_id = ? ORDER BY step_order`
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, quoteID); err != nil {
		r.logger.Error("Failed to get workflow steps", zap.String("quote_id", quoteID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}
	return toSteps(rows), nil
}

// ListByStatus retrieves steps of any quote in the given statuses
func (r *StepRepository) ListByStatus(ctx context.Context, statuses ...entity.StepStatus) ([]*entity.WorkflowStep, error) {
	if len(statuses) == 0 {
		return []*entity.WorkflowStep{}, nil
	}

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query, args, err := sqlx.In(`SELECT `+stepColumns+` FROM workflow_steps
		WHERE status IN (?) ORDER BY quote_id, step_order`, values)
	if err != nil {
		return nil, fmt.Errorf("failed to build step query: %w", err)
	}

	var rows []stepRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("Failed to list workflow steps", zap.Strings("statuses", values), zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	return toSteps(rows), nil
}

// Update writes every mutable column of the step
func (r *StepRepository) Update(ctx context.Context, step *entity.WorkflowStep) error {
	if err := validateStep(step); err != nil {
		return err
	}

	query := `
		UPDATE workflow_steps SET
			step_order = ?, name = ?, description = ?, is_required = ?, max_processing_days = ?,
			status = ?, action_taken = ?, assigned_at = ?, completed_at = ?, completed_by = ?,
			comments = ?, rejection_reason = ?, auto_approved = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.Executor(ctx).ExecContext(ctx, query,
		step.StepOrder, step.Name, step.Description, step.IsRequired, step.MaxProcessingDays,
		string(step.Status), step.ActionTaken, nullTime(step.AssignedAt), nullTime(step.CompletedAt), step.CompletedBy,
		step.Comments, step.RejectionReason, step.AutoApproved, step.UpdatedAt,
		step.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow step",
			zap.String("step_id", step.ID),
			zap.String("status", string(step.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update workflow step: %w", err)
	}
	return requireOneRow(res, "workflow step", step.ID)
}

// DeleteByQuoteID removes every step of a quote and reports how many went
func (r *StepRepository) DeleteByQuoteID(ctx context.Context, quoteID string) (int, error) {
	res, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM workflow_steps WHERE quote_id = ?`, quoteID)
	if err != nil {
		r.logger.Error("Failed to delete workflow steps", zap.String("quote_id", quoteID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete workflow steps: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func toSteps(rows []stepRow) []*entity.WorkflowStep {
	steps := make([]*entity.WorkflowStep, 0, len(rows))
	for _, row := range rows {
		steps = append(steps, row.toEntity())
	}
	return steps
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
