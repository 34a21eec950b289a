// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// NL->SQL pipeline errors
	ErrCodeInsufficientSlots ErrorCode = "RENDERING_INSUFFICIENT_SLOTS"
	ErrCodeUnknownTemplate   ErrorCode = "UNKNOWN_TEMPLATE"
	ErrCodeTemplateBinding   ErrorCode = "TEMPLATE_BINDING_FAILED"

	// Warehouse errors
	ErrCodeUpstreamExecution   ErrorCode = "UPSTREAM_EXECUTION_FAILED"
	ErrCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeQueryRejected       ErrorCode = "QUERY_REJECTED"

	// Registry lookup errors
	ErrCodeEntityNotFound  ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeUnknownCategory ErrorCode = "UNKNOWN_SSIC_CATEGORY"
	ErrCodeUnknownAreaType ErrorCode = "UNKNOWN_AREA_TYPE"

	// Input validation errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidDate     ErrorCode = "INVALID_DATE"

	// Cache errors
	ErrCodeCacheRead  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWrite ErrorCode = "CACHE_WRITE_FAILED"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code          ErrorCode              `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	Suggestion    string                 `json:"suggestion,omitempty"`
	Documentation string                 `json:"documentation,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message with suggestions
func (e *EnhancedError) UserMessage() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(fmt.Sprintf("\n\nDetails: %s", e.Details))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion))
	}

	return sb.String()
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Common error constructors with pre-configured messages

// NewInsufficientSlotsError creates an error for a template whose required slots are missing
func NewInsufficientSlotsError(intent string, missing []string) *EnhancedError {
	return New(ErrCodeInsufficientSlots, "Question is missing required information").
		WithDetails(fmt.Sprintf("The '%s' analysis requires: %s", intent, strings.Join(missing, ", "))).
		WithSuggestion("Rephrase your question to include the missing detail. For example: 'Compare Bedok vs Tampines last 12 months' or 'Look up UEN 201812345A'.").
		WithMetadata("intent", intent).
		WithMetadata("missing_slots", missing)
}

// NewUpstreamTimeoutError creates an error for a warehouse query exceeding its deadline
func NewUpstreamTimeoutError(err error, timeout string) *EnhancedError {
	return Wrap(err, ErrCodeUpstreamTimeout, "Warehouse query timed out").
		WithDetails(fmt.Sprintf("The analytical store did not answer within %s", timeout)).
		WithSuggestion("Narrow the date range or filters and try again.").
		WithMetadata("retryable", true)
}

// NewUpstreamExecutionError creates an error for warehouse connectivity failures
func NewUpstreamExecutionError(err error) *EnhancedError {
	return Wrap(err, ErrCodeUpstreamExecution, "Warehouse query failed").
		WithDetails("The analytical store is unreachable or rejected the connection").
		WithSuggestion("This is typically a temporary issue. Please try again in a moment.").
		WithMetadata("retryable", true)
}

// NewQueryRejectedError creates an error for a query the warehouse refused to run
func NewQueryRejectedError(err error) *EnhancedError {
	return Wrap(err, ErrCodeQueryRejected, "Warehouse rejected the generated query").
		WithDetails("The rendered SQL did not match the warehouse schema or syntax").
		WithSuggestion("This is an internal error in query generation. If the problem persists, contact support.")
}

// NewEntityNotFoundError creates an error for a UEN with no matching entity
func NewEntityNotFoundError(uen string) *EnhancedError {
	return New(ErrCodeEntityNotFound, "Entity not found").
		WithDetails(fmt.Sprintf("No registered entity found for UEN: %s", uen)).
		WithSuggestion("Check the UEN for typos, or use /api/entities/search?q=<name> to search by entity name.").
		WithMetadata("uen", uen)
}

// NewUnknownCategoryError creates an error for an unrecognized SSIC category id
func NewUnknownCategoryError(category string) *EnhancedError {
	return New(ErrCodeUnknownCategory, "Unknown SSIC category").
		WithDetails(fmt.Sprintf("No category with id '%s' exists in the loaded taxonomy", category)).
		WithSuggestion("Use /api/ssic/categories to list the supported sector and category ids.")
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}

// NewInvalidDateError creates an error for an unparseable date parameter
func NewInvalidDateError(value string) *EnhancedError {
	return New(ErrCodeInvalidDate, "Invalid date format").
		WithDetails(fmt.Sprintf("Could not parse '%s' as a calendar date", value)).
		WithSuggestion("Use ISO format: YYYY-MM-DD.")
}
