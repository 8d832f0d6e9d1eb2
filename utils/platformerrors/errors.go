package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorType represents the category of error surfaced to tool callers.
type ErrorType string

const (
	// ErrorTypeFetchFailed covers ad-library or creative-download failures.
	// Retryable by the caller.
	ErrorTypeFetchFailed ErrorType = "FETCH_FAILED"
	// ErrorTypeAnalysisFailed covers provider errors for a single creative.
	// Retryable, isolated to the failing item.
	ErrorTypeAnalysisFailed ErrorType = "ANALYSIS_FAILED"
	// ErrorTypeAnalysisUnavailable means the analysis provider is not
	// configured. Not retryable until configuration changes.
	ErrorTypeAnalysisUnavailable ErrorType = "ANALYSIS_UNAVAILABLE"
	// ErrorTypeCacheCorruption marks an index/file mismatch. Self-healed by
	// treating the asset as absent.
	ErrorTypeCacheCorruption ErrorType = "CACHE_CORRUPTION"
	// ErrorTypeValidation marks malformed caller input. No side effects.
	ErrorTypeValidation ErrorType = "VALIDATION"

	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeDatabaseError ErrorType = "DATABASE_ERROR"
	ErrorTypeExternal      ErrorType = "EXTERNAL"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// Layer represents the application layer where the error occurred.
type Layer string

const (
	LayerRepository     Layer = "repository"
	LayerDomain         Layer = "domain"
	LayerRoute          Layer = "route"
	LayerInfrastructure Layer = "infrastructure"
)

// PlatformError is an error carrying classification metadata so that tool
// routes can translate internal failures into typed results.
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Message   string
	Err       error
	Context   map[string]any
	Layer     Layer
	Timestamp time.Time
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s] %s: %v", e.Layer, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s] %s", e.Layer, e.Type, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewError creates a PlatformError with a fresh UUID.
func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error) *PlatformError {
	return NewErrorWithContext(ctx, layer, errorType, message, err, nil)
}

// NewErrorWithContext creates a PlatformError with additional context fields.
func NewErrorWithContext(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, contextFields map[string]any) *PlatformError {
	errorContext := make(map[string]any, len(contextFields))
	for k, v := range contextFields {
		errorContext[k] = v
	}

	return &PlatformError{
		UUID:      uuid.NewString(),
		Type:      errorType,
		Message:   message,
		Err:       err,
		Layer:     layer,
		Timestamp: time.Now().UTC(),
		Context:   errorContext,
	}
}

// AsError wraps an error with layer context, preserving the original
// classification when the cause is already a PlatformError.
func AsError(ctx context.Context, layer Layer, err error, message string) *PlatformError {
	if err == nil {
		return nil
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		wrapped := NewError(ctx, layer, platformErr.Type, fmt.Sprintf("%s: %s", message, platformErr.Message), platformErr)
		wrapped.UUID = platformErr.UUID
		return wrapped
	}

	return NewError(ctx, layer, ErrorTypeInternal, message, err)
}

// TypeOf returns the classification of err, or ErrorTypeInternal when err
// carries none.
func TypeOf(err error) ErrorType {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Type
	}
	return ErrorTypeInternal
}

// IsErrorType checks whether err is a PlatformError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Type == errorType
	}
	return false
}

// Retryable reports whether the caller may usefully retry the operation.
func Retryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeFetchFailed, ErrorTypeAnalysisFailed, ErrorTypeExternal:
		return true
	default:
		return false
	}
}

// ErrorTypeToHTTPStatus maps an error classification to an HTTP status code
// for the REST surface.
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeAnalysisUnavailable:
		return 503
	case ErrorTypeFetchFailed, ErrorTypeAnalysisFailed, ErrorTypeExternal:
		return 502
	default:
		return 500
	}
}

// LogError logs a platform error with its structured fields.
func LogError(logger zerolog.Logger, err *PlatformError) {
	if err == nil {
		return
	}

	event := logger.Error().
		Str("error_uuid", err.UUID).
		Str("error_type", string(err.Type)).
		Str("layer", string(err.Layer)).
		Time("timestamp_utc", err.Timestamp)

	for k, v := range err.Context {
		event = event.Interface(k, v)
	}

	if err.Err != nil {
		event = event.Err(err.Err)
	}

	event.Msg(err.Message)
}
