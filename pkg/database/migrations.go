package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// gooseLogger routes goose output through zap
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }

// Migrator applies the embedded schema migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(gooseLogger{sugar: m.logger.Sugar()})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// RunMigrations applies every pending migration
func (m *Migrator) RunMigrations(ctx context.Context) error {
	m.logger.Info("Starting database migrations")

	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db.DB.DB, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("Database migrations completed successfully", zap.Int64("version", version))
	return nil
}

// Version returns the current schema version
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, m.db.DB.DB)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
