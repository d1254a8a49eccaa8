package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
)

// QuoteRepository implements port.QuoteRepository
type QuoteRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *sqlite.DB, logger *zap.Logger) port.QuoteRepository {
	return &QuoteRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a quote and assigns the next quote number
func (r *QuoteRepository) Create(ctx context.Context, quote *entity.Quote) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Executor(ctx)

		var seq int64
		if err := exec.QueryRowxContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM quotes`).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate quote number: %w", err)
		}
		number := fmt.Sprintf("Q-%06d", seq)

		query := `
			INSERT INTO quotes (
				id, seq, quote_number, owner_id, customer_name, customer_email, customer_company,
				title, description, currency, discount_percent, total_amount, status,
				valid_until, submitted_at, approved_at, terminated_at, terminated_by, termination_reason,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query,
			quote.ID, seq, number, quote.OwnerID,
			quote.CustomerName, quote.CustomerEmail, quote.CustomerCompany,
			quote.Title, quote.Description, quote.Currency,
			quote.DiscountPercent, quote.TotalAmount, string(quote.Status),
			nullTime(quote.ValidUntil), nullTime(quote.SubmittedAt), nullTime(quote.ApprovedAt), nullTime(quote.TerminatedAt),
			quote.TerminatedBy, quote.TerminationReason,
			quote.CreatedAt, quote.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create quote", zap.String("quote_id", quote.ID), zap.Error(err))
			return fmt.Errorf("failed to create quote: %w", err)
		}

		quote.Number = number
		return nil
	})
}

// GetByID retrieves a quote, or nil when it does not exist
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*entity.Quote, error) {
	var row quoteRow
	err := r.db.Executor(ctx).GetContext(ctx, &row, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get quote", zap.String("quote_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return row.toEntity(), nil
}

// Update writes every mutable column of the quote
func (r *QuoteRepository) Update(ctx context.Context, quote *entity.Quote) error {
	query := `
		UPDATE quotes SET
			customer_name = ?, customer_email = ?, customer_company = ?,
			title = ?, description = ?, currency = ?,
			discount_percent = ?, total_amount = ?, status = ?,
			valid_until = ?, submitted_at = ?, approved_at = ?, terminated_at = ?,
			terminated_by = ?, termination_reason = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.Executor(ctx).ExecContext(ctx, query,
		quote.CustomerName, quote.CustomerEmail, quote.CustomerCompany,
		quote.Title, quote.Description, quote.Currency,
		quote.DiscountPercent, quote.TotalAmount, string(quote.Status),
		nullTime(quote.ValidUntil), nullTime(quote.SubmittedAt), nullTime(quote.ApprovedAt), nullTime(quote.TerminatedAt),
		quote.TerminatedBy, quote.TerminationReason, quote.UpdatedAt,
		quote.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update quote", zap.String("quote_id", quote.ID), zap.Error(err))
		return fmt.Errorf("failed to update quote: %w", err)
	}
	return requireOneRow(res, "quote", quote.ID)
}

// UpdateStatus changes only the quote status
func (r *QuoteRepository) UpdateStatus(ctx context.Context, id string, status entity.QuoteStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid quote status %q", status)
	}
	res, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE quotes SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
	if err != nil {
		r.logger.Error("Failed to update quote status",
			zap.String("quote_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update quote status: %w", err)
	}
	return requireOneRow(res, "quote", id)
}

// List returns quotes matching the filter, newest first
func (r *QuoteRepository) List(ctx context.Context, filter entity.QuoteFilter) ([]*entity.Quote, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.VisibleTo != "" {
		where = append(where, `(status = ? OR EXISTS (
			SELECT 1 FROM workflow_steps s WHERE s.quote_id = quotes.id AND s.persona = ?))`)
		args = append(args, string(entity.PendingStatus(filter.VisibleTo)), string(filter.VisibleTo))
	}
	if len(filter.Statuses) > 0 {
		in, inArgs, err := sqlx.In("status IN (?)", statusStrings(filter.Statuses))
		if err != nil {
			return nil, fmt.Errorf("failed to build status filter: %w", err)
		}
		where = append(where, in)
		args = append(args, inArgs...)
	}
	if filter.InProgress {
		where = append(where, "status NOT IN (?, ?)")
		args = append(args, string(entity.QuoteStatusApproved), string(entity.QuoteStatusTerminated))
	}

	query := `SELECT ` + quoteColumns + ` FROM quotes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"

	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	var rows []quoteRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("Failed to list quotes", zap.Error(err))
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}

	quotes := make([]*entity.Quote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, row.toEntity())
	}
	return quotes, nil
}

// Delete removes the quote row. Dependent rows must be gone already.
func (r *QuoteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete quote", zap.String("quote_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	return nil
}

func statusStrings(statuses []entity.QuoteStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func requireOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return nil
}

// Verify interface compliance
var _ port.QuoteRepository = (*QuoteRepository)(nil)
