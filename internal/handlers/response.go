package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwarden/bookwarden/internal/apperrors"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// statusForKind maps the business error taxonomy onto HTTP statuses.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindInvalidOperand:
		return http.StatusBadRequest
	case apperrors.KindPreconditionFailed:
		return http.StatusUnprocessableEntity
	case apperrors.KindConflict, apperrors.KindAlreadyCompleted,
		apperrors.KindInvalidState, apperrors.KindLimitExceeded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a typed business error with its mapped status, or a
// generic 500 for infrastructure failures.
func respondError(c *gin.Context, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "Internal server error",
			},
		})
		return
	}

	c.JSON(statusForKind(kind), ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    string(kind),
			Message: err.Error(),
		},
	})
}

// respondBindError writes a 400 for malformed or invalid request bodies.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request data",
			Details: err.Error(),
		},
	})
}
