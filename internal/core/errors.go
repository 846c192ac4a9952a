package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation        ErrorCategory = "validation"         // Invalid input
	ErrCatAdapter           ErrorCategory = "adapter"            // Model provider failure
	ErrCatParse             ErrorCategory = "parse"              // Model output not valid JSON or schema
	ErrCatToolDisabled      ErrorCategory = "tool_disabled"      // Tool switched off
	ErrCatBusy              ErrorCategory = "busy"               // Re-entrant execution refused
	ErrCatFallbackExhausted ErrorCategory = "fallback_exhausted" // Every model in the chain failed
	ErrCatMissingTool       ErrorCategory = "missing_tool"       // Step requires an unregistered tool
	ErrCatNotFound          ErrorCategory = "not_found"          // Resource not found
	ErrCatTimeout           ErrorCategory = "timeout"            // Operation timed out
	ErrCatConfig            ErrorCategory = "config"             // Invalid configuration
	ErrCatState             ErrorCategory = "state"              // Illegal state transition
	ErrCatInternal          ErrorCategory = "internal"           // Unexpected internal error
)

// Error codes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeTooManyTasks       = "TOO_MANY_TASKS"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodeToolDisabled       = "TOOL_DISABLED"
	CodeOrchestratorBusy   = "ORCHESTRATOR_BUSY"
	CodeFallbackExhausted  = "FALLBACK_EXHAUSTED"
	CodeMissingTool        = "MISSING_TOOL"
	CodeUnknownModel       = "UNKNOWN_MODEL"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeInteractiveExpired = "INTERACTIVE_EXPIRED"
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrValidationList creates a validation error carrying every failed rule.
func ErrValidationList(problems []string) *DomainError {
	return ErrValidation(CodeInvalidInput, strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}

// ErrAdapter creates a provider failure for the named model.
func ErrAdapter(model, message string, retryable bool) *DomainError {
	return (&DomainError{
		Category:  ErrCatAdapter,
		Code:      CodeProviderError,
		Message:   message,
		Retryable: retryable,
	}).WithDetail("model", model)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(model string) *DomainError {
	return (&DomainError{
		Category:  ErrCatAdapter,
		Code:      CodeRateLimited,
		Message:   "provider rate limited the request",
		Retryable: true,
	}).WithDetail("model", model)
}

// ErrParse creates an error for model output that is not valid JSON or
// does not satisfy the requested schema.
func ErrParse(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatParse,
		Code:     code,
		Message:  message,
	}
}

// ErrToolDisabled creates an error for an invocation of a disabled tool.
func ErrToolDisabled(tool string) *DomainError {
	return (&DomainError{
		Category: ErrCatToolDisabled,
		Code:     CodeToolDisabled,
		Message:  fmt.Sprintf("tool %s is disabled", tool),
	}).WithDetail("tool", tool)
}

// ErrOrchestratorBusy creates an error for a re-entrant workflow execution.
func ErrOrchestratorBusy() *DomainError {
	return &DomainError{
		Category: ErrCatBusy,
		Code:     CodeOrchestratorBusy,
		Message:  "workflow is already executing",
	}
}

// ErrFallbackExhausted wraps the original failure once every model in the
// chain has been tried.
func ErrFallbackExhausted(attempted []string, original error) *DomainError {
	return (&DomainError{
		Category: ErrCatFallbackExhausted,
		Code:     CodeFallbackExhausted,
		Message:  fmt.Sprintf("all models failed: %s", strings.Join(attempted, ", ")),
		Cause:    original,
	}).WithDetail("attempted", attempted)
}

// ErrMissingTool creates an error for a workflow step whose tool is not registered.
func ErrMissingTool(step, tool string) *DomainError {
	return (&DomainError{
		Category: ErrCatMissingTool,
		Code:     CodeMissingTool,
		Message:  fmt.Sprintf("step %s requires unregistered tool %s", step, tool),
	}).WithDetail("step", step).WithDetail("tool", tool)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     strings.ToUpper(resource) + "_NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrConfig creates a configuration error.
func ErrConfig(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatConfig,
		Code:     code,
		Message:  message,
	}
}

// ErrInvalidTransition creates an error for an event that is illegal in the current state.
func ErrInvalidTransition(from, event string) *DomainError {
	return (&DomainError{
		Category: ErrCatState,
		Code:     CodeInvalidTransition,
		Message:  fmt.Sprintf("event %s is not allowed in %s", event, from),
	}).WithDetail("from", from).WithDetail("event", event)
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatState,
		Code:     code,
		Message:  message,
	}
}

// ErrInternal creates an unexpected internal error.
func ErrInternal(message string, cause error) *DomainError {
	return &DomainError{
		Category: ErrCatInternal,
		Code:     "INTERNAL",
		Message:  message,
		Cause:    cause,
	}
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Category == cat
}
