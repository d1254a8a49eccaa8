package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cpq-approval/internal/application/service"
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
)

const version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	quotes    service.QuoteService
	analytics service.AnalyticsService
	workflow  WorkflowActions
	now       func() time.Time
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	now := services.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		quotes:    services.Quotes,
		analytics: services.Analytics,
		workflow:  services.Workflow,
		now:       now,
		logger:    logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// GenerateRequest is the body of POST /quotes/generate
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// TerminateRequest is the body of POST /quotes/:id/terminate
type TerminateRequest struct {
	Reason string `json:"reason"`
}

// ListQuotesRequest represents query parameters for listing quotes
type ListQuotesRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   version,
	})
}

// Me handles GET /api/v1/me
func (h *Handlers) Me(c *gin.Context) {
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, "Me", err)
		return
	}
	ok(c, http.StatusOK, caller)
}

// bindJSON decodes the body, mapping decode failures to validation errors
func (h *Handlers) bindJSON(c *gin.Context, op string, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, op, apperr.Validation(op, "invalid request body: %v", err))
		return false
	}
	return true
}

// CreateQuote handles POST /api/v1/quotes
func (h *Handlers) CreateQuote(c *gin.Context) {
	const op = "CreateQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var in service.QuoteInput
	if !h.bindJSON(c, op, &in) {
		return
	}

	quote, err := h.quotes.Create(c.Request.Context(), caller, in)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusCreated, quote)
}

// GenerateQuote handles POST /api/v1/quotes/generate
func (h *Handlers) GenerateQuote(c *gin.Context) {
	const op = "GenerateQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req GenerateRequest
	if !h.bindJSON(c, op, &req) {
		return
	}

	quote, err := h.quotes.GenerateFromPrompt(c.Request.Context(), caller, req.Prompt)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusCreated, quote)
}

// ListQuotes handles GET /api/v1/quotes
func (h *Handlers) ListQuotes(c *gin.Context) {
	const op = "ListQuotes"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, op, apperr.Validation(op, "invalid query parameters: %v", err))
		return
	}

	quotes, err := h.quotes.List(c.Request.Context(), caller, service.ListOptions{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, quotes)
}

// GetQuote handles GET /api/v1/quotes/:id
func (h *Handlers) GetQuote(c *gin.Context) {
	const op = "GetQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	detail, err := h.quotes.GetWithWorkflow(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// UpdateQuote handles PUT /api/v1/quotes/:id
func (h *Handlers) UpdateQuote(c *gin.Context) {
	const op = "UpdateQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var in service.QuoteInput
	if !h.bindJSON(c, op, &in) {
		return
	}

	quote, err := h.quotes.Update(c.Request.Context(), caller, c.Param("id"), in)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, quote)
}

// DeleteQuote handles DELETE /api/v1/quotes/:id
func (h *Handlers) DeleteQuote(c *gin.Context) {
	const op = "DeleteQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	id := c.Param("id")
	if err := h.quotes.Delete(c.Request.Context(), caller, id); err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// ConfigureWorkflow handles PUT /api/v1/quotes/:id/workflow
func (h *Handlers) ConfigureWorkflow(c *gin.Context) {
	const op = "ConfigureWorkflow"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req struct {
		Steps []service.StepInput `json:"steps"`
	}
	if !h.bindJSON(c, op, &req) {
		return
	}

	steps, err := h.quotes.ConfigureWorkflow(c.Request.Context(), caller, c.Param("id"), req.Steps)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, steps)
}

// SubmitQuote handles POST /api/v1/quotes/:id/submit
func (h *Handlers) SubmitQuote(c *gin.Context) {
	const op = "SubmitQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	quote, err := h.quotes.Submit(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, quote)
}

// TerminateQuote handles POST /api/v1/quotes/:id/terminate
func (h *Handlers) TerminateQuote(c *gin.Context) {
	const op = "TerminateQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req TerminateRequest
	if !h.bindJSON(c, op, &req) {
		return
	}

	quote, err := h.quotes.Terminate(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, quote)
}

// ReopenQuote handles POST /api/v1/quotes/:id/reopen
func (h *Handlers) ReopenQuote(c *gin.Context) {
	const op = "ReopenQuote"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	quote, err := h.quotes.Reopen(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, quote)
}

// QuoteActions handles GET /api/v1/quotes/:id/actions
func (h *Handlers) QuoteActions(c *gin.Context) {
	const op = "QuoteActions"

	actions, err := h.quotes.Actions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, actions)
}
