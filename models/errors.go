package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeTimeout         = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeElementNotFound = "ELEMENT_NOT_FOUND"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeParse           = "PARSE_ERROR"
	ErrCodeEnrichment      = "ENRICHMENT_FAILED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeAlreadyRunning  = "ALREADY_RUNNING"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ExtractError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError creates a new ExtractError.
func NewExtractError(code, message string, err error) *ExtractError {
	return &ExtractError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExtractError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsExtractError returns err as an *ExtractError, wrapping unknown errors
// under ErrCodeInternal. It returns nil for a nil error.
func AsExtractError(err error) *ExtractError {
	if err == nil {
		return nil
	}
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee
	}
	return NewExtractError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the code of the first ExtractError in err's chain, or ""
// when there is none.
func CodeOf(err error) string {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
