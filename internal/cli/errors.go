package cli

import (
	"errors"
	"fmt"

	"github.com/richinsley/venvboot"
)

// ExitCode is a process exit status.
type ExitCode int

const (
	ExitOK             ExitCode = 0
	ExitGeneralError   ExitCode = 1
	ExitUsageError     ExitCode = 2
	ExitManifestError  ExitCode = 3
	ExitPythonNotFound ExitCode = 4
)

// Error carries an exit code to Execute.
type Error struct {
	Code    ExitCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError attaches message and an exit code derived from err.
func wrapError(message string, err error) *Error {
	return &Error{Code: exitCodeFor(err), Message: message, Err: err}
}

// exitCodeFor classifies err. Manifest and interpreter problems get their
// own codes; a failed pip or venv run propagates the tool's exit status.
func exitCodeFor(err error) ExitCode {
	var cliErr *Error
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	var manifestErr *venvboot.ManifestError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, venvboot.ErrManifestNotFound), errors.As(err, &manifestErr):
		return ExitManifestError
	case errors.Is(err, venvboot.ErrPythonNotFound):
		return ExitPythonNotFound
	}
	return ExitCode(venvboot.ExitCode(err))
}
