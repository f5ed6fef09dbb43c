package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/logging"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a hint for the error's code and returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	console := logging.NewConsole(h.Out)
	lerr, _ := err.(*errors.LauncherError)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		console.Error("Configuration not found", nil)
		console.Line("Create launcher.yml or pass --config.")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		console.Error("Invalid configuration", err)
		console.Line("Run 'launcher config schema' to see the accepted keys.")

	case errors.ErrCodeDaemonNotRunning:
		console.Error("The launcher daemon is not running", nil)
		console.Line("Start it with 'launcher daemon start'.")

	case errors.ErrCodeDaemonAlreadyRunning:
		if lerr != nil {
			console.Error(fmt.Sprintf("The launcher daemon is already running (pid %v)", lerr.Details["pid"]), nil)
		} else {
			console.Error("The launcher daemon is already running", nil)
		}

	case errors.ErrCodeItemNotFound:
		if lerr != nil {
			console.Error(fmt.Sprintf("Item %v not found", lerr.Details["id"]), nil)
		} else {
			console.Error("Item not found", nil)
		}
		console.Line("Run 'launcher items list' to see placed items.")

	case errors.ErrCodeInvalidTarget:
		console.Error("Invalid launch target", err)
		console.Line("Targets look like launch:main?component=<package>/<class>, or *BROWSER*.")

	case errors.ErrCodeNotLoaded:
		console.Error("The model has not finished loading", nil)
		console.Line("Retry once 'launcher daemon status' reports the workspace as loaded.")

	default:
		console.Error("Error", err)
	}

	if h.Verbose && lerr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", lerr.ToJSON())
	}
	return err
}
