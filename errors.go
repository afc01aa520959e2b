package venvboot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifestNotFound is returned when the requirements manifest does not exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrPythonNotFound is returned when no base interpreter can be located.
	ErrPythonNotFound = errors.New("python not found")

	// ErrPythonTooOld is returned when the base interpreter is older than the
	// configured minimum.
	ErrPythonTooOld = errors.New("python version too old")

	// ErrNotWritable is returned when the environment cannot be created
	// because its parent directory is not writable.
	ErrNotWritable = errors.New("directory is not writable")

	// ErrNoActivateScript is returned when the venv module finished but
	// left no activation entry point.
	ErrNoActivateScript = errors.New("environment has no activation script")

	// ErrMissingPackages is returned by verification when requirements
	// declared in the manifest are not installed.
	ErrMissingPackages = errors.New("requirements not installed")
)

// ManifestError describes a malformed line in a requirements manifest.
type ManifestError struct {
	Path string
	Line int
	Msg  string
}

func (e *ManifestError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// CommandError is returned when an external tool exits unsuccessfully.
// ExitCode is -1 when the process was killed rather than exiting.
type CommandError struct {
	Path     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if len(e.Args) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(e.Args, " "))
	}
	switch {
	case e.ExitCode == -1:
		b.WriteString(": child process was killed")
	case e.ExitCode > 0:
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ", stderr: %s", stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Step names one stage of a bootstrap run.
type Step string

const (
	StepManifest Step = "manifest"
	StepLocate   Step = "locate"
	StepCreate   Step = "create"
	StepActivate Step = "activate"
	StepInstall  Step = "install"
	StepVerify   Step = "verify"
	StepStamp    Step = "stamp"
)

// StepError records which bootstrap step failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit status. A failed external command
// propagates its own status; everything else is 1. A nil error is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return 1
}
