package handlers

import (
	"context"
	"errors"
	"net/http"

	"tourbackend/internal/domain"
	"tourbackend/internal/http/middleware"
	"tourbackend/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

const storeHint = "The booking store is not reachable. Check /db-diagnostics for troubleshooting steps."

func respondError(c *gin.Context, status int, code, message, hint string) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Hint:      hint,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var conflict domain.ConflictError
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), "")
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), "")
	case errors.As(err, &conflict):
		code := conflict.Code
		if code == "" {
			code = "conflict"
		}
		respondError(c, http.StatusConflict, code, err.Error(), "")
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), "")
	case domain.IsUnavailable(err):
		utils.LogCtx(c.Request.Context(), "http", "store_unavailable", err.Error())
		respondError(c, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable", storeHint)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "timeout", "request timed out", "")
	default:
		utils.LogCtx(c.Request.Context(), "http", "internal_error", err.Error())
		respondError(c, http.StatusInternalServerError, "internal_error", "something went wrong", "")
	}
}
