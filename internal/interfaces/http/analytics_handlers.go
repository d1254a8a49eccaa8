package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cpq-approval/internal/application/service"
)

// Dashboard handles GET /api/v1/analytics/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	const op = "Dashboard"
	caller, err := identityFrom(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	dashboard, err := h.analytics.Dashboard(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, dashboard)
}

// ApprovalTimes handles GET /api/v1/analytics/approval-times
func (h *Handlers) ApprovalTimes(c *gin.Context) {
	times, err := h.analytics.ApprovalTimes(c.Request.Context())
	if err != nil {
		h.respondError(c, "ApprovalTimes", err)
		return
	}
	if times == nil {
		times = []service.ApprovalTime{}
	}
	ok(c, http.StatusOK, times)
}

// OverdueSteps handles GET /api/v1/analytics/overdue
func (h *Handlers) OverdueSteps(c *gin.Context) {
	overdue, err := h.analytics.OverdueSteps(c.Request.Context(), h.now().UTC())
	if err != nil {
		h.respondError(c, "OverdueSteps", err)
		return
	}
	if overdue == nil {
		overdue = []service.OverdueStep{}
	}
	ok(c, http.StatusOK, overdue)
}
