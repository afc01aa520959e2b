package venvboot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))

	cmdErr := &CommandError{Path: "pip", Args: []string{"install"}, ExitCode: 2}
	wrapped := &StepError{Step: StepInstall, Err: fmt.Errorf("error installing requirements: %w", cmdErr)}
	assert.Equal(t, 2, ExitCode(wrapped))

	killed := &CommandError{Path: "pip", ExitCode: -1}
	assert.Equal(t, 1, ExitCode(killed))
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Path: "/v/bin/pip", Args: []string{"install", "-r", "requirements.txt"}, ExitCode: 1, Stderr: "ERROR: No matching distribution\n"}
	assert.Equal(t, "/v/bin/pip install -r requirements.txt: exit status 1, stderr: ERROR: No matching distribution", err.Error())

	killed := &CommandError{Path: "python", ExitCode: -1}
	assert.Equal(t, "python: child process was killed", killed.Error())

	notFound := &CommandError{Path: "python", Err: errors.New("executable file not found")}
	assert.Equal(t, "python: executable file not found", notFound.Error())
}

func TestStepErrorUnwrap(t *testing.T) {
	err := &StepError{Step: StepManifest, Err: fmt.Errorf("%w: requirements.txt", ErrManifestNotFound)}
	assert.ErrorIs(t, err, ErrManifestNotFound)
	assert.Equal(t, "manifest step failed: manifest not found: requirements.txt", err.Error())
}

func TestManifestErrorMessage(t *testing.T) {
	assert.Equal(t, "requirements.txt:3: invalid requirement \"!!x\"",
		(&ManifestError{Path: "requirements.txt", Line: 3, Msg: `invalid requirement "!!x"`}).Error())
	assert.Equal(t, "a.txt: include cycle",
		(&ManifestError{Path: "a.txt", Msg: "include cycle"}).Error())
}
