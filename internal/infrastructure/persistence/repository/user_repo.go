package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the user or refreshes the stored email, name and persona
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, email, full_name, persona, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			full_name = CASE WHEN excluded.full_name = '' THEN users.full_name ELSE excluded.full_name END,
			persona = excluded.persona,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, string(user.Persona), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user, or nil when unknown
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var row userRow
	err := r.db.Executor(ctx).GetContext(ctx, &row,
		`SELECT id, email, full_name, persona, created_at, updated_at FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &entity.User{
		ID:        row.ID,
		Email:     row.Email,
		FullName:  row.FullName,
		Persona:   entity.Persona(row.Persona),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
