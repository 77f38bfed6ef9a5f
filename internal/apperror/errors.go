package apperror

import (
	"context"
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuth         Kind = "auth"
	KindNotFound     Kind = "not_found"
	KindBusinessRule Kind = "business_rule"
	KindUpstream     Kind = "upstream"
	KindTimeout      Kind = "timeout"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeQuotaExceeded     Code = "QUOTA_EXCEEDED"
	CodePriceMismatch     Code = "PRICE_MISMATCH"
	CodeInvalidTransition Code = "INVALID_STATUS_TRANSITION"
	CodeConflict          Code = "CONFLICT"
	CodeUpstream          Code = "UPSTREAM_ERROR"
	CodeUpstreamTimeout   Code = "UPSTREAM_TIMEOUT"
	CodeInternal          Code = "INTERNAL_ERROR"
)

type Error struct {
	Kind       Kind
	Code       Code
	Message    string
	StatusCode int
	Details    map[string]any
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code Code, message string, status int, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, StatusCode: status, Details: details}
}

func Validation(message string, details map[string]any) *Error {
	return newError(KindValidation, CodeValidation, message, http.StatusBadRequest, details)
}

func Unauthorized(message string) *Error {
	return newError(KindAuth, CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func Forbidden(message string) *Error {
	return newError(KindAuth, CodeForbidden, message, http.StatusForbidden, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, CodeNotFound, message, http.StatusNotFound, nil)
}

func BusinessRule(code Code, message string, details map[string]any) *Error {
	return newError(KindBusinessRule, code, message, http.StatusBadRequest, details)
}

func Conflict(message string, details map[string]any) *Error {
	return newError(KindBusinessRule, CodeConflict, message, http.StatusConflict, details)
}

// Upstream wraps a failure of the database, identity provider or stored procedure.
// Deadline errors become retryable timeouts.
func Upstream(message string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		e := newError(KindTimeout, CodeUpstreamTimeout, "Layanan tidak merespons tepat waktu, silakan coba lagi", http.StatusGatewayTimeout, nil)
		e.Retryable = true
		e.Err = err
		return e
	}
	e := newError(KindUpstream, CodeUpstream, message, http.StatusInternalServerError, nil)
	e.Err = err
	return e
}

func Internal(message string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Upstream(message, err)
	}
	e := newError(KindUpstream, CodeInternal, message, http.StatusInternalServerError, nil)
	e.Err = err
	return e
}

// From converts any error into an *Error, preserving typed errors found in the chain.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Terjadi kesalahan pada server", err)
}
