package common

import (
	"net/http"
)

// AppError is an error carrying an API error code and the HTTP status it maps to.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFoundError builds the canonical 404 error for a missing domain entity.
func NotFoundError(entity string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: entity + " not found", HTTPStatus: http.StatusNotFound}
}
