package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
)

// ActionRepository implements port.ActionRepository over quote_actions
type ActionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewActionRepository creates a new audit-trail repository
func NewActionRepository(db *sqlite.DB, logger *zap.Logger) port.ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an entry to the audit trail
func (r *ActionRepository) Create(ctx context.Context, action *entity.QuoteAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}

	query := `
		INSERT INTO quote_actions (
			id, quote_id, step_id, action_type, performed_by, performed_at,
			comments, from_status, to_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		action.ID, action.QuoteID, action.StepID, action.ActionType, action.PerformedBy, action.PerformedAt,
		action.Comments, string(action.FromStatus), string(action.ToStatus),
	)
	if err != nil {
		r.logger.Error("Failed to record quote action",
			zap.String("quote_id", action.QuoteID),
			zap.String("action_type", action.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create quote action: %w", err)
	}
	return nil
}

// GetByQuoteID retrieves the audit trail of a quote, oldest first
func (r *ActionRepository) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteAction, error) {
	query := `
		SELECT id, quote_id, step_id, action_type, performed_by, performed_at,
			comments, from_status, to_status
		FROM quote_actions
		WHERE quote_id = ?
		ORDER BY performed_at, rowid
	`

	var rows []actionRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, quoteID); err != nil {
		r.logger.Error("Failed to get quote actions", zap.String("quote_id", quoteID), zap.Error(err))
		return nil, fmt.Errorf("failed to get quote actions: %w", err)
	}

	actions := make([]*entity.QuoteAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.toEntity())
	}
	return actions, nil
}

// DeleteByQuoteID removes the audit trail of a quote
func (r *ActionRepository) DeleteByQuoteID(ctx context.Context, quoteID string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM quote_actions WHERE quote_id = ?`, quoteID); err != nil {
		r.logger.Error("Failed to delete quote actions", zap.String("quote_id", quoteID), zap.Error(err))
		return fmt.Errorf("failed to delete quote actions: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.ActionRepository = (*ActionRepository)(nil)
