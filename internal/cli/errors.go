package cli

import (
	"errors"

	"github.com/vk/kernforge/internal/config"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks mistakes in the command line itself.
type usageError struct {
	error
}

func (e usageError) Unwrap() error {
	return e.error
}

// toExitError maps err onto the exit code taxonomy: usage and configuration
// errors exit 2, everything else 1.
func toExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	var usage usageError
	if errors.As(err, &usage) || config.IsError(err) {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}
