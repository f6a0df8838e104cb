// Package errors provides unified error handling with structured error codes.
package errors

import "fmt"

// Code classifies an error for callers that need to branch on failure class.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal

	// Configuration errors: load-time/setup defects, fatal, never retried.
	CodeConfigInvalid
	CodeConfigMissing
	CodeRegionBounds
	CodeFontLoad

	// Input errors: the supplied bitmap does not match the configured layout.
	CodeInputMismatch
	CodeDecodeFailed

	// Transport errors.
	CodeProtocol
	CodeUnavailable
	CodeTimeout
)

var codeNames = map[Code]string{
	CodeUnknown:       "UNKNOWN",
	CodeInternal:      "INTERNAL",
	CodeConfigInvalid: "CONFIG_INVALID",
	CodeConfigMissing: "CONFIG_MISSING",
	CodeRegionBounds:  "REGION_BOUNDS",
	CodeFontLoad:      "FONT_LOAD",
	CodeInputMismatch: "INPUT_MISMATCH",
	CodeDecodeFailed:  "DECODE_FAILED",
	CodeProtocol:      "PROTOCOL",
	CodeUnavailable:   "UNAVAILABLE",
	CodeTimeout:       "TIMEOUT",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsConfiguration reports whether the error is a setup defect that should
// abort the run rather than fail a single capture.
func IsConfiguration(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeConfigInvalid, CodeConfigMissing, CodeRegionBounds, CodeFontLoad:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}
