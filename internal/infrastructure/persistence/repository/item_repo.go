package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewItemRepository creates a new quote item repository
func NewItemRepository(db *sqlite.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all items or none
func (r *ItemRepository) CreateBatch(ctx context.Context, items []*entity.QuoteItem) error {
	query := `
		INSERT INTO quote_items (
			id, quote_id, line_number, product_name, description, quantity,
			unit_price, discount_percent, discount_amount, total_price, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Executor(ctx)
		for _, item := range items {
			_, err := exec.ExecContext(ctx, query,
				item.ID, item.QuoteID, item.LineNumber, item.ProductName, item.Description, item.Quantity,
				item.UnitPrice, item.DiscountPercent, item.DiscountAmount, item.TotalPrice, item.CreatedAt,
			)
			if err != nil {
				r.logger.Error("Failed to create quote item",
					zap.String("quote_id", item.QuoteID),
					zap.Int("line_number", item.LineNumber),
					zap.Error(err))
				return fmt.Errorf("failed to create quote item: %w", err)
			}
		}
		return nil
	})
}

// GetByQuoteID retrieves the items of a quote in line order
func (r *ItemRepository) GetByQuoteID(ctx context.Context, quoteID string) ([]*entity.QuoteItem, error) {
	query := `
		SELECT id, quote_id, line_number, product_name, description, quantity,
			unit_price, discount_percent, discount_amount, total_price, created_at
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY line_number
	`

	var rows []itemRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, quoteID); err != nil {
		r.logger.Error("Failed to get quote items", zap.String("quote_id", quoteID), zap.Error(err))
		return nil, fmt.Errorf("failed to get quote items: %w", err)
	}

	items := make([]*entity.QuoteItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// DeleteByQuoteID removes every item of a quote
func (r *ItemRepository) DeleteByQuoteID(ctx context.Context, quoteID string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM quote_items WHERE quote_id = ?`, quoteID); err != nil {
		r.logger.Error("Failed to delete quote items", zap.String("quote_id", quoteID), zap.Error(err))
		return fmt.Errorf("failed to delete quote items: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.ItemRepository = (*ItemRepository)(nil)
