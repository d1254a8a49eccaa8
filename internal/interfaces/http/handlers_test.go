package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/dispatcher"
	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/service"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
	"github.com/garyjia/cpq-approval/internal/infrastructure/auth"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type stubDrafter struct{}

func (stubDrafter) Draft(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
	return &port.QuoteDraft{
		CustomerName: "Globex",
		Items:        []port.DraftItem{{ProductName: "Support Package", Quantity: 1, UnitPrice: 5000}},
	}, nil
}

const (
	aeToken    = "dev-token-ae-1"
	otherAE    = "dev-token-ae-2"
	ddToken    = "dev-token-dd-1:deal_desk"
	legalToken = "dev-token-legal-1:legal"
)

type apiHarness struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	d := dispatcher.NewDispatcher()
	dispatcher.SubscribeAudit(d, store.Actions())
	engine := workflow.NewEngine(store.Quotes(), store.Steps(),
		workflow.WithPublisher(d),
		workflow.WithClock(func() time.Time { return now }),
	)

	server := NewServer(ServerConfig{Mode: gin.TestMode}, Services{
		Quotes:    service.NewQuoteService(store.Quotes(), store.Items(), store.Steps(), store.Actions(), engine, d, stubDrafter{}, nopLogger{}),
		Analytics: service.NewAnalyticsService(store.Quotes(), store.Steps(), engine),
		Workflow:  engine,
		Identity:  auth.NewJWTResolver(auth.Config{DevMode: true}, zap.NewNop()),
		Users:     store.Users(),
		Now:       func() time.Time { return now },
	}, nopLogger{})

	return &apiHarness{t: t, store: store, router: server.Router()}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (h *apiHarness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, isString := body.(string); isString {
			buf.WriteString(s)
		} else {
			require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func quoteBody(discount int) map[string]interface{} {
	return map[string]interface{}{
		"customer_name":    "Acme",
		"discount_percent": discount,
		"items": []map[string]interface{}{
			{"product_name": "Seat", "quantity": 2, "unit_price": 100},
		},
	}
}

func (h *apiHarness) createQuote(discount int) entity.Quote {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/quotes", aeToken, quoteBody(discount))
	require.Equal(h.t, http.StatusCreated, code, env.Error)
	return decode[entity.Quote](h.t, env)
}

func TestHealth_NoAuth(t *testing.T) {
	h := newAPI(t)
	code, env := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", decode[HealthResponse](t, env).Status)
}

func TestAuth(t *testing.T) {
	h := newAPI(t)

	code, env := h.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = h.do(http.MethodGet, "/api/v1/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = h.do(http.MethodGet, "/api/v1/me", ddToken, nil)
	require.Equal(t, http.StatusOK, code)
	me := decode[entity.Identity](t, env)
	assert.Equal(t, entity.Identity{UserID: "dd-1", Email: "dd-1@dev.local", Persona: entity.PersonaDealDesk}, me)

	user, err := h.store.Users().GetByID(context.Background(), "dd-1")
	require.NoError(t, err)
	require.NotNil(t, user, "first request records the user")
	assert.Equal(t, entity.PersonaDealDesk, user.Persona)
	assert.Equal(t, "dd-1", user.FullName)
}

func TestQuoteApprovalFlow(t *testing.T) {
	h := newAPI(t)
	q := h.createQuote(0)
	assert.Equal(t, entity.QuoteStatusDraft, q.Status)
	assert.True(t, q.TotalAmount.Equal(decimal.NewFromInt(200)))

	code, env := h.do(http.MethodPost, "/api/v1/quotes/"+q.ID+"/submit", aeToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, entity.PendingStatus(entity.PersonaDealDesk), decode[entity.Quote](t, env).Status)

	code, env = h.do(http.MethodGet, "/api/v1/workflow/pending", ddToken, nil)
	require.Equal(t, http.StatusOK, code)
	pending := decode[[]entity.WorkflowStep](t, env)
	require.Len(t, pending, 1)
	stepID := pending[0].ID

	code, _ = h.do(http.MethodPost, "/api/v1/workflow/steps/"+stepID+"/approve", legalToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodPost, "/api/v1/workflow/steps/"+stepID+"/approve", ddToken, map[string]string{"comments": "pricing ok"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, entity.StepStatusApproved, decode[entity.WorkflowStep](t, env).Status)

	code, env = h.do(http.MethodPost, "/api/v1/workflow/steps/"+stepID+"/approve", ddToken, nil)
	assert.Equal(t, http.StatusConflict, code, "a decided step cannot be approved again")

	code, env = h.do(http.MethodGet, "/api/v1/quotes/"+q.ID+"/workflow", legalToken, nil)
	require.Equal(t, http.StatusOK, code)
	status := decode[workflow.WorkflowStatus](t, env)
	assert.Equal(t, entity.PendingStatus(entity.PersonaLegal), status.QuoteStatus)
	assert.True(t, status.CanApprove)
	require.NotNil(t, status.CurrentStep)

	legalStep := status.CurrentStep.ID
	code, env = h.do(http.MethodPost, "/api/v1/workflow/steps/"+legalStep+"/reject", legalToken, map[string]string{"reason": "too short"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, env.Error)

	code, env = h.do(http.MethodPost, "/api/v1/workflow/steps/"+legalStep+"/reject", legalToken,
		map[string]string{"reason": "indemnity clause is unacceptable"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = h.do(http.MethodGet, "/api/v1/quotes/"+q.ID, aeToken, nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[service.QuoteDetail](t, env)
	assert.Equal(t, entity.QuoteStatusRejected, detail.Quote.Status)

	code, env = h.do(http.MethodPost, "/api/v1/quotes/"+q.ID+"/reopen", aeToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, entity.QuoteStatusDraftReopened, decode[entity.Quote](t, env).Status)

	code, env = h.do(http.MethodGet, "/api/v1/quotes/"+q.ID+"/actions", aeToken, nil)
	require.Equal(t, http.StatusOK, code)
	actions := decode[[]entity.QuoteAction](t, env)
	types := make([]string, 0, len(actions))
	for _, a := range actions {
		types = append(types, a.ActionType)
	}
	assert.Contains(t, types, "submit")
	assert.Contains(t, types, "approve")
	assert.Contains(t, types, "reject")
	assert.Contains(t, types, "reopen")
}

func TestQuoteErrors(t *testing.T) {
	h := newAPI(t)
	q := h.createQuote(0)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"unknown quote", http.MethodGet, "/api/v1/quotes/missing", aeToken, nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/v1/quotes", aeToken, "{not json", http.StatusUnprocessableEntity},
		{"no items", http.MethodPost, "/api/v1/quotes", aeToken, map[string]string{"customer_name": "Acme"}, http.StatusUnprocessableEntity},
		{"not the owner", http.MethodPut, "/api/v1/quotes/" + q.ID, otherAE, quoteBody(5), http.StatusForbidden},
		{"reopen a draft", http.MethodPost, "/api/v1/quotes/" + q.ID + "/reopen", aeToken, nil, http.StatusConflict},
		{"terminate without reason", http.MethodPost, "/api/v1/quotes/" + q.ID + "/terminate", aeToken, map[string]string{}, http.StatusUnprocessableEntity},
		{"bad status filter", http.MethodGet, "/api/v1/quotes?status=bogus", aeToken, nil, http.StatusUnprocessableEntity},
		{"escalate to unknown persona", http.MethodPost, "/api/v1/workflow/steps/x/escalate", ddToken, map[string]string{"escalate_to": "ceo"}, http.StatusUnprocessableEntity},
		{"approve unknown step", http.MethodPost, "/api/v1/workflow/steps/x/approve", ddToken, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, code, env.Error)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestQuoteCRUD(t *testing.T) {
	h := newAPI(t)
	q := h.createQuote(0)

	code, env := h.do(http.MethodPut, "/api/v1/quotes/"+q.ID, aeToken, quoteBody(10))
	require.Equal(t, http.StatusOK, code, env.Error)
	updated := decode[entity.Quote](t, env)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(180)))

	code, env = h.do(http.MethodPut, "/api/v1/quotes/"+q.ID+"/workflow", aeToken, map[string]interface{}{
		"steps": []map[string]interface{}{
			{"persona": "deal_desk"},
			{"persona": "legal"},
		},
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Len(t, decode[[]entity.WorkflowStep](t, env), 2)

	code, env = h.do(http.MethodGet, "/api/v1/quotes?status=draft", aeToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]entity.Quote](t, env), 1)

	code, env = h.do(http.MethodGet, "/api/v1/quotes", otherAE, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]entity.Quote](t, env))

	code, env = h.do(http.MethodPost, "/api/v1/quotes/generate", aeToken, GenerateRequest{Prompt: "support for Globex"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, "Globex", decode[entity.Quote](t, env).CustomerName)

	code, _ = h.do(http.MethodDelete, "/api/v1/quotes/"+q.ID, aeToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, "/api/v1/quotes/"+q.ID, aeToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	h := newAPI(t)
	q := h.createQuote(0)
	code, _ := h.do(http.MethodPost, "/api/v1/quotes/"+q.ID+"/submit", aeToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := h.do(http.MethodGet, "/api/v1/analytics/dashboard", ddToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	dash := decode[service.Dashboard](t, env)
	assert.Equal(t, 1, dash.TotalQuotes)
	assert.Equal(t, 1, dash.PendingForMe)

	code, env = h.do(http.MethodGet, "/api/v1/analytics/approval-times", ddToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, decode[[]service.ApprovalTime](t, env))

	code, env = h.do(http.MethodGet, "/api/v1/analytics/overdue", ddToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]service.OverdueStep](t, env), "nothing is overdue on submission day")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
