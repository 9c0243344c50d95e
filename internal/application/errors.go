package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is an orchestration-level error surfaced to callers.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeAlreadyProcessing   = "ALREADY_PROCESSING"
	ErrCodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewAlreadyProcessingError reports that another worker holds the record's
// lock. Callers must back off rather than retry in a loop.
func NewAlreadyProcessingError(txnID string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAlreadyProcessing,
		Message:    fmt.Sprintf("transaction %s is already being processed", txnID),
		HTTPStatus: http.StatusConflict,
	}
}

func NewTransactionNotFoundError(id string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTransactionNotFound,
		Message:    fmt.Sprintf("transaction %s not found", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
