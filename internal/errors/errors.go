package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIError is the error type rendered by the error middleware.
type APIError struct {
	Status   int    `json:"-"`
	Message  string `json:"error"`
	Details  any    `json:"details,omitempty"`
	Internal error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, message string, err error) *APIError {
	return &APIError{Status: status, Message: message, Internal: err}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, message, err)
}

func BadGateway(message string, err error) *APIError {
	return New(http.StatusBadGateway, message, err)
}

func ServiceUnavailable(message string, err error) *APIError {
	return New(http.StatusServiceUnavailable, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// NewValidationError turns a binding error into a 400 with per-field details.
func NewValidationError(err error) *APIError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return BadRequest("Invalid request body", err)
	}

	fields := make([]FieldError, 0, len(ve))
	names := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		fields = append(fields, FieldError{Field: field, Rule: fe.Tag()})
		names = append(names, field)
	}

	return &APIError{
		Status:   http.StatusBadRequest,
		Message:  fmt.Sprintf("Invalid fields: %s", strings.Join(names, ", ")),
		Details:  fields,
		Internal: err,
	}
}
