package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *LauncherError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *LauncherError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidTarget creates an error for a launch target descriptor that cannot be parsed
func InvalidTarget(descriptor string, err error) *LauncherError {
	return Wrap(err, ErrCodeInvalidTarget, fmt.Sprintf("invalid launch target: %q", descriptor)).
		WithDetail("descriptor", descriptor)
}

// ModelMismatch creates the error reported when an item diverges from the model's copy
func ModelMismatch(id int64, modelItem, candidate string) *LauncherError {
	return New(ErrCodeModelMismatch,
		fmt.Sprintf("item %d does not match the model copy: model=%s candidate=%s", id, modelItem, candidate)).
		WithDetail("id", id).
		WithDetail("model", modelItem).
		WithDetail("candidate", candidate)
}

// StoreWrite wraps a failed item store mutation
func StoreWrite(op string, id int64, err error) *LauncherError {
	return Wrap(err, ErrCodeStoreWrite, fmt.Sprintf("item store %s failed for item %d", op, id)).
		WithDetail("op", op).
		WithDetail("id", id)
}

// ItemNotFound creates an error for an id that is not present in the store or model
func ItemNotFound(id int64) *LauncherError {
	return New(ErrCodeItemNotFound, fmt.Sprintf("item %d not found", id)).
		WithDetail("id", id)
}

// DaemonNotRunning creates an error for clients that cannot reach the daemon
func DaemonNotRunning(socket string) *LauncherError {
	return New(ErrCodeDaemonNotRunning, fmt.Sprintf("launcher daemon is not running (socket %s)", socket)).
		WithDetail("socket", socket)
}
