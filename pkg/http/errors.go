package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and a stable code clients
// can switch on.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an error rendered with the given status and code.
func NewAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithError wraps the cause. It is logged, never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func NotFoundError(code, message string) *AppError {
	return NewAppError(http.StatusNotFound, code, message)
}

func ConflictError(code, message string) *AppError {
	return NewAppError(http.StatusConflict, code, message)
}

func UnprocessableError(code, message string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, code, message)
}
