package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "cpq.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_RunMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	require.NoError(t, migrator.RunMigrations(ctx))

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'goose%' AND name NOT LIKE 'sqlite%' ORDER BY name`))
	assert.Equal(t, []string{"quote_actions", "quote_items", "quotes", "users", "workflow_steps"}, tables)

	// Re-running is a no-op
	require.NoError(t, migrator.RunMigrations(ctx))
}

func TestNew_EnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, NewMigrator(db, zap.NewNop()).RunMigrations(ctx))

	var enabled int
	require.NoError(t, db.GetContext(ctx, &enabled, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, enabled)

	_, err := db.ExecContext(ctx, `INSERT INTO quote_actions (id, quote_id, action_type, performed_by, performed_at)
		VALUES ('a-1', 'missing', 'create', 'u', CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(Config{Path: filepath.Join(t.TempDir(), "missing", "dir", "cpq.db")}, zap.NewNop())
	assert.Error(t, err)
}
