// Package httpkit is the shared HTTP surface of the API: response shapes,
// error-to-status mapping, and the caller identity handlers read.
package httpkit

import (
	"net/http"

	"haulhub_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the one error body every endpoint returns. Details is
// optional and carries validation specifics when present.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error writes an ErrorResponse with an explicit status, for cases the
// handler decides itself (bad input, unparseable IDs).
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, payload)
}

// HandleError converts a service error into the HTTP response, keyed off
// the apperr kind (conflict becomes 409, not-found 404, and so on).
// Untyped errors fall back to 400. Returns false when err is nil so the
// handler can continue to the success path.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if appErr, ok := err.(*apperr.Error); ok {
		c.JSON(appErr.HTTPStatus(), ErrorResponse{
			Error:   appErr.Message,
			Details: appErr.Details,
		})
		return true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return true
}
