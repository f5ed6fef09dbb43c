package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Item store errors
	ErrCodeStoreOpen   ErrorCode = "STORE_OPEN"
	ErrCodeStoreQuery  ErrorCode = "STORE_QUERY"
	ErrCodeStoreWrite  ErrorCode = "STORE_WRITE"
	ErrCodeBatchUpdate ErrorCode = "STORE_BATCH_UPDATE"

	// Inventory errors
	ErrCodeInventoryRead ErrorCode = "INVENTORY_READ"
	ErrCodeManifest      ErrorCode = "INVENTORY_MANIFEST"

	// Model errors
	ErrCodeInvalidTarget ErrorCode = "INVALID_TARGET"
	ErrCodeModelMismatch ErrorCode = "MODEL_MISMATCH"
	ErrCodeNotLoaded     ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeLoaderRunning ErrorCode = "LOADER_RUNNING"
	ErrCodeWrongContext  ErrorCode = "WRONG_EXECUTION_CONTEXT"
	ErrCodeUnknownEvent  ErrorCode = "UNKNOWN_EVENT"
	ErrCodeItemNotFound  ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeWorkerStopped ErrorCode = "WORKER_STOPPED"

	// Daemon errors
	ErrCodeDaemonNotRunning     ErrorCode = "DAEMON_NOT_RUNNING"
	ErrCodeDaemonAlreadyRunning ErrorCode = "DAEMON_ALREADY_RUNNING"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// LauncherError represents a structured error with context
type LauncherError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LauncherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LauncherError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *LauncherError) WithDetail(key string, value interface{}) *LauncherError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *LauncherError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new LauncherError
func New(code ErrorCode, message string) *LauncherError {
	return &LauncherError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a LauncherError
func Wrap(err error, code ErrorCode, message string) *LauncherError {
	return &LauncherError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error carries a specific LauncherError code anywhere in its chain
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	lerr, ok := err.(*LauncherError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if lerr.Code == code {
		return true
	}
	return Is(lerr.Cause, code)
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	lerr, ok := err.(*LauncherError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return lerr.Code
}
