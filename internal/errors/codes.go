// Package errors provides structured error handling for Facet.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and file I/O errors
//   - 3XX: Engine state errors (not ready, rebuilding)
//   - 4XX: Validation errors
//   - 5XX: Internal and contract errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index storage and file I/O errors.
	CategoryStorage Category = "STORAGE"
	// CategoryState indicates transient engine state errors.
	CategoryState Category = "STATE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Storage errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeStorageIO      = "ERR_206_STORAGE_IO"
	ErrCodeStorageLocked  = "ERR_207_STORAGE_LOCKED"

	// State errors (300-399)
	ErrCodeNotReady           = "ERR_301_NOT_READY"
	ErrCodeRebuildInProgress  = "ERR_302_REBUILD_IN_PROGRESS"
	ErrCodeAccessModeRequired = "ERR_303_ACCESS_MODE_REQUIRED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeUnknownIndex   = "ERR_402_UNKNOWN_INDEX"
	ErrCodeInvalidPath    = "ERR_403_INVALID_PATH"
	ErrCodeInvalidVersion = "ERR_404_INVALID_VERSION"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeContractViolation = "ERR_502_CONTRACT_VIOLATION"
	ErrCodeEngineClosed      = "ERR_503_ENGINE_CLOSED"
	ErrCodeExtractionFailed  = "ERR_504_EXTRACTION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "205" from "ERR_205_CORRUPT_INDEX")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryState
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors: caller bugs and conditions the engine cannot recover from.
	switch code {
	case ErrCodeContractViolation, ErrCodeEngineClosed, ErrCodeDiskFull:
		return SeverityFatal
	}

	// Retryable state errors get warning severity.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// State errors resolve themselves once initialization or rebuild completes;
// lock contention resolves when the competing process releases the lock.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNotReady, ErrCodeRebuildInProgress, ErrCodeAccessModeRequired, ErrCodeStorageLocked:
		return true
	default:
		return false
	}
}
