package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/cpq-approval/internal/application/dispatcher"
	"github.com/garyjia/cpq-approval/internal/config"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/memory"
	httpapi "github.com/garyjia/cpq-approval/internal/interfaces/http"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Mode: "test"},
		Database: config.DatabaseConfig{
			Path:         filepath.Join(t.TempDir(), "cpq.db"),
			MaxOpenConns: 1,
		},
		OpenAI: config.OpenAIConfig{Model: "gpt-4o-mini"},
		Auth:   config.AuthConfig{DevMode: true, DevTokenPrefix: "dev-token-"},
		Workflow: config.WorkflowConfig{
			MaxProcessingDays:        3,
			EscalationProcessingDays: 2,
		},
		Logger: config.LoggerConfig{Level: "info"},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Auth.DevMode = false
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	health := c.Health(ctx)
	assert.False(t, health.Overall)
	assert.Equal(t, "not initialized", health.Components["database"].Message)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health = c.Health(ctx)
	assert.True(t, health.Overall)
	for name, comp := range health.Components {
		assert.True(t, comp.Healthy, name)
	}

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(ctx), "start after close")
}

func TestHealth_DispatcherNeedsAuditHandlers(t *testing.T) {
	ctx := context.Background()
	d := dispatcher.NewDispatcher()
	c := &Container{dispatcher: d}

	comp := c.Health(ctx).Components["dispatcher"]
	assert.False(t, comp.Healthy)
	assert.Contains(t, comp.Message, "no handler for")

	dispatcher.SubscribeAudit(d, memory.NewStore().Actions())
	comp = c.Health(ctx).Components["dispatcher"]
	assert.True(t, comp.Healthy, comp.Message)
}

func TestContainer_StartRejectsSelfEscalation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.EscalationMap = map[string]string{"cro": "cro"}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escalation")
	assert.False(t, c.Ready())
}

func TestContainer_ServesQuotesEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	srv := httpapi.NewServer(httpapi.DefaultServerConfig(), c.HTTPServices(), c.HTTPLogger())

	body, err := json.Marshal(map[string]interface{}{
		"customer_name": "Acme",
		"items": []map[string]interface{}{
			{"product_name": "Seat", "quantity": 3, "unit_price": 100},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer dev-token-ae-1")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			ID          string `json:"id"`
			TotalAmount string `json:"total_amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.ID)

	repos := c.Repositories()

	user, err := repos.User.GetByID(ctx, "ae-1")
	require.NoError(t, err)
	require.NotNil(t, user, "caller is remembered on first request")

	actions, err := repos.Action.GetByQuoteID(ctx, env.Data.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, actions, "audit handler records the creation")
}

func TestConvertToZapFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	adapter := &zapLoggerAdapter{logger: zap.New(core)}

	adapter.Warn("cascade failed",
		"quote_id", "q-1",
		"error", errors.New("disk full"),
		42, "ignored",
		"attempt", 2,
		"dangling",
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "q-1", fields["quote_id"])
	assert.Equal(t, "disk full", fields["error"])
	assert.EqualValues(t, 2, fields["attempt"])
	assert.NotContains(t, fields, "dangling")
	assert.Len(t, fields, 3)
}
