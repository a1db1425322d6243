package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports an invalid project. It is always detected before any
// external process runs.
type Error struct {
	// Path is the offending file, when there is one.
	Path     string
	Problems []string
}

// Errorf returns an Error with a single problem.
func Errorf(format string, args ...any) *Error {
	return &Error{Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *Error) Error() string {
	prefix := "invalid configuration"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	return prefix + ": " + strings.Join(e.Problems, "; ")
}

// IsError reports whether err is, or wraps, a configuration Error.
func IsError(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}
