package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error produced by the gateway's own
// handlers.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: GetRequestID(c),
	})
}

// respondError maps domain errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		blocked    *domain.StepBlockedError
		upstream   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error(), validation.Fields)
	case errors.As(err, &blocked):
		abortWithError(c, http.StatusConflict, "step_blocked", err.Error(), blocked)
	case errors.Is(err, domain.ErrFlowNotStarted), errors.Is(err, domain.ErrNoBooking):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrStepOutOfOrder),
		errors.Is(err, domain.ErrFlowSubmitted),
		errors.Is(err, domain.ErrSubmissionInProgress),
		errors.Is(err, domain.ErrOrderNotPayable):
		abortWithError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthenticated):
		abortWithError(c, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
	case errors.As(err, &upstream):
		abortWithError(c, upstreamStatus(upstream.Status), "upstream_error", err.Error(), gin.H{
			"service": upstream.Service,
			"status":  upstream.Status,
		})
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

// upstreamStatus relays client errors of a backend service and turns
// everything else into a bad gateway.
func upstreamStatus(status int) int {
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
