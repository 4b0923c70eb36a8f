package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/tasks"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Message   string             `json:"message,omitempty"`
	Details   []tasks.FieldError `json:"details,omitempty"`
	Retryable *bool              `json:"retryable,omitempty"`
}

func retryable(v bool) *bool { return &v }

// errorResponse maps an error to a status and body.
func (s *Server) errorResponse(err error) (int, ErrorResponse) {
	var ve *tasks.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: "Validation Error", Message: ve.Error(), Details: ve.Details}
	case errors.Is(err, tasks.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: "Validation Error", Message: err.Error()}
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Todo not found"}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Message: err.Error()}
	case errors.Is(err, oracle.ErrContractViolation):
		return http.StatusBadGateway, ErrorResponse{
			Error:     "AI Contract Error",
			Message:   "The AI service returned a response that could not be understood.",
			Retryable: retryable(false),
		}
	case errors.Is(err, oracle.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:     "AI Service Error",
			Message:   "The AI service is unavailable. Please try again later.",
			Retryable: retryable(true),
		}
	case errors.Is(err, search.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: "Search Error", Message: err.Error(), Retryable: retryable(true)}
	case errors.Is(err, search.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "Search Error", Message: err.Error()}
	case errors.Is(err, search.ErrNotConfigured), errors.Is(err, search.ErrTimeout), errors.Is(err, search.ErrFailed):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Search Error", Message: err.Error(), Retryable: retryable(!errors.Is(err, search.ErrNotConfigured))}
	}

	msg := "An unexpected error occurred."
	if s.cfg.Debug {
		msg = err.Error()
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "Server Error", Message: msg}
}

// fail records err on the context and aborts with the mapped response.
func (s *Server) fail(c *gin.Context, err error) {
	status, body := s.errorResponse(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// badRequest aborts with a validation error for a malformed body.
func (s *Server) badRequest(c *gin.Context, field, message string) {
	s.fail(c, tasks.Invalid(field, message))
}
