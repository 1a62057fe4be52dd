// Package errors provides the structured error taxonomy shared by the
// prediction pipeline and both of its outer surfaces.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSchema       ErrorCode = "SCHEMA_ERROR"
	ErrCodeParse        ErrorCode = "PARSE_ERROR"
	ErrCodeUnknownModel ErrorCode = "UNKNOWN_MODEL"
	ErrCodeInference    ErrorCode = "INFERENCE_ERROR"
	ErrCodeIO           ErrorCode = "IO_ERROR"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so errors.Is(err, &StandardError{Code: ErrCodeSchema})
// works as a kind check.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a metadata entry and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSchemaError reports input that does not conform to the feature schema.
func NewSchemaError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchema,
		Message:   "Input does not match the feature schema",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingColumnsError reports required feature columns absent from the input.
func NewMissingColumnsError(columns []string) *StandardError {
	return NewSchemaError(fmt.Sprintf("missing required columns: %s", strings.Join(columns, ", "))).
		WithMetadata("missingColumns", columns)
}

// NewParseError reports malformed tabular input.
func NewParseError(details string, err error) *StandardError {
	if err != nil {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	return &StandardError{
		Code:      ErrCodeParse,
		Message:   "Malformed tabular input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnknownModelError reports a backend name that is not registered. The
// message enumerates every registered name.
func NewUnknownModelError(name string, available []string) *StandardError {
	names := append([]string(nil), available...)
	sort.Strings(names)
	return &StandardError{
		Code:      ErrCodeUnknownModel,
		Message:   fmt.Sprintf("Invalid model choice %q. Available models: %s", name, strings.Join(names, ", ")),
		Details:   fmt.Sprintf("model: %s", name),
		Retryable: false,
		Metadata:  map[string]interface{}{"available": names},
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceError reports a backend failure or malformed backend output.
func NewInferenceError(backend string, err error) *StandardError {
	details := fmt.Sprintf("backend: %s", backend)
	if err != nil {
		details = fmt.Sprintf("backend: %s, error: %s", backend, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeInference,
		Message:   "Error during prediction",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewIOError reports a temporary file or persistence failure.
func NewIOError(operation string, err error) *StandardError {
	details := operation
	if err != nil {
		details = fmt.Sprintf("%s: %s", operation, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeIO,
		Message:   "I/O failure",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Normalization
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the error code carried by err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error code to the status returned by the web surface.
// Caller mistakes are 400s; failures on our side are 500s.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeSchema, ErrCodeParse, ErrCodeUnknownModel:
		return http.StatusBadRequest
	case ErrCodeInference, ErrCodeIO, ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders the human-readable message shown to API and CLI users.
func UserMessage(err error) string {
	stdErr := Normalize(err)
	if stdErr == nil {
		return ""
	}
	if stdErr.Details == "" || stdErr.Code == ErrCodeUnknownModel {
		return stdErr.Message
	}
	return fmt.Sprintf("%s: %s", stdErr.Message, stdErr.Details)
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeSchema, ErrCodeParse:
		return "INPUT"
	case ErrCodeUnknownModel:
		return "REGISTRY"
	case ErrCodeInference:
		return "MODEL"
	case ErrCodeIO:
		return "STORAGE"
	default:
		return "OTHER"
	}
}
