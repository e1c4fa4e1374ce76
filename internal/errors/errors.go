package errors

import (
	stderrors "errors"
	"fmt"
)

// FacetError is the structured error type for Facet.
// It provides rich context for error handling, logging, and user presentation.
type FacetError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, State, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FacetError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FacetError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with FacetError.
func (e *FacetError) Is(target error) bool {
	if t, ok := target.(*FacetError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FacetError) WithDetail(key, value string) *FacetError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *FacetError) WithSuggestion(suggestion string) *FacetError {
	e.Suggestion = suggestion
	return e
}

// New creates a new FacetError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *FacetError {
	return &FacetError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a FacetError from an existing error.
// The error's message becomes the FacetError message.
func Wrap(code string, err error) *FacetError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FacetError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a storage I/O error.
// Storage errors route affected indexes into a rebuild.
func StorageError(message string, cause error) *FacetError {
	return New(ErrCodeStorageIO, message, cause)
}

// CorruptionError creates an index-corruption error.
func CorruptionError(message string, cause error) *FacetError {
	return New(ErrCodeCorruptIndex, message, cause)
}

// NotReadyError creates a retryable not-ready error.
// Callers should retry after pending updates drain.
func NotReadyError(message string) *FacetError {
	return New(ErrCodeNotReady, message, nil)
}

// ContractViolation creates a fatal caller-contract error.
// These indicate a programming bug, never a transient condition.
func ContractViolation(message string) *FacetError {
	return New(ErrCodeContractViolation, message, nil)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FacetError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FacetError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a FacetError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *FacetError
	if stderrors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FacetError
	if stderrors.As(err, &fe) {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a FacetError.
// Returns empty string if not a FacetError.
func GetCode(err error) string {
	var fe *FacetError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from a FacetError.
// Returns empty string if not a FacetError.
func GetCategory(err error) Category {
	var fe *FacetError
	if stderrors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
