package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cpq-approval/internal/domain/apperr"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// statusFor maps an error kind to an HTTP status code
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrPermissionDenied:
		return http.StatusForbidden
	case apperr.ErrValidation:
		return http.StatusUnprocessableEntity
	case apperr.ErrInvalidStateTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()

	if errors.Is(err, errNoIdentity) {
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err, "request_id", c.GetString(requestIDKey))
		msg = "internal server error"
	}

	c.JSON(status, Response{
		Success: false,
		Error:   msg,
	})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}
