package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// ApproveRequest is the body of POST /workflow/steps/:id/approve
type ApproveRequest struct {
	Comments string `json:"comments"`
}

// RejectRequest is the body of POST /workflow/steps/:id/reject
type RejectRequest struct {
	Reason   string `json:"reason"`
	Comments string `json:"comments"`
}

// EscalateRequest is the body of POST /workflow/steps/:id/escalate
type EscalateRequest struct {
	EscalateTo string `json:"escalate_to"`
	Comments   string `json:"comments"`
}

// bindOptionalJSON accepts an empty body
func (h *Handlers) bindOptionalJSON(c *gin.Context, op string, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, op, dst)
}

// WorkflowStatus handles GET /api/v1/quotes/:id/workflow
func (h *Handlers) WorkflowStatus(c *gin.Context) {
	const op = "WorkflowStatus"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	status, err := h.workflow.Status(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, status)
}

// PendingSteps handles GET /api/v1/workflow/pending
func (h *Handlers) PendingSteps(c *gin.Context) {
	const op = "PendingSteps"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	steps, err := h.workflow.PendingFor(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	if steps == nil {
		steps = []*entity.WorkflowStep{}
	}
	ok(c, http.StatusOK, steps)
}

// ApproveStep handles POST /api/v1/workflow/steps/:id/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	const op = "ApproveStep"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req ApproveRequest
	if !h.bindOptionalJSON(c, op, &req) {
		return
	}

	step, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), caller, req.Comments)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, step)
}

// RejectStep handles POST /api/v1/workflow/steps/:id/reject
func (h *Handlers) RejectStep(c *gin.Context) {
	const op = "RejectStep"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req RejectRequest
	if !h.bindJSON(c, op, &req) {
		return
	}

	step, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), caller, req.Reason, req.Comments)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, step)
}

// EscalateStep handles POST /api/v1/workflow/steps/:id/escalate
func (h *Handlers) EscalateStep(c *gin.Context) {
	const op = "EscalateStep"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	var req EscalateRequest
	if !h.bindOptionalJSON(c, op, &req) {
		return
	}

	var target entity.Persona
	if raw := strings.TrimSpace(req.EscalateTo); raw != "" {
		p, valid := entity.ParsePersona(raw)
		if !valid {
			h.respondError(c, op, apperr.Validation(op, "unknown persona %q", raw))
			return
		}
		target = p
	}

	step, err := h.workflow.Escalate(c.Request.Context(), c.Param("id"), caller, target, req.Comments)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, step)
}
