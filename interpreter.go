package venvboot

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Interpreter is the base Python used to create environments.
type Interpreter struct {
	// Path is the interpreter executable.
	Path string

	// LauncherArgs precede every invocation; the Windows "py" launcher
	// needs "-3" to pick a Python 3 interpreter.
	LauncherArgs []string

	Version Version
}

// Command builds an invocation of the interpreter.
func (in *Interpreter) Command(args ...string) Command {
	full := make([]string, 0, len(in.LauncherArgs)+len(args))
	full = append(full, in.LauncherArgs...)
	full = append(full, args...)
	return Command{Path: in.Path, Args: full}
}

// FindInterpreter locates a base interpreter and reads its version.
//
// When explicit is non-empty it is resolved through PATH and used as is.
// Otherwise the Windows search prefers the "py" launcher and then the
// first "python" that is not a Microsoft Store placeholder; other systems
// try "python3" and then "python".
func FindInterpreter(ctx context.Context, r Runner, p Platform, explicit string) (*Interpreter, error) {
	in, err := locateInterpreter(p, explicit)
	if err != nil {
		return nil, err
	}

	out, err := r.Run(ctx, in.Command("--version"))
	if err != nil {
		return nil, fmt.Errorf("error running python --version: %w", err)
	}
	// Python 2 printed its version on stderr.
	text := string(out.Stdout)
	if strings.TrimSpace(text) == "" {
		text = string(out.Stderr)
	}
	in.Version, err = ParsePythonVersion(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing Python version: %w", err)
	}
	return in, nil
}

func locateInterpreter(p Platform, explicit string) (*Interpreter, error) {
	if explicit != "" {
		path, err := lookPath(explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPythonNotFound, explicit, err)
		}
		return &Interpreter{Path: path}, nil
	}

	if p.IsWindows() {
		if path, err := lookPath("py"); err == nil {
			return &Interpreter{Path: path, LauncherArgs: []string{"-3"}}, nil
		}
		path, err := lookPath("python")
		if err == nil && !isStorePlaceholder(path) {
			return &Interpreter{Path: path}, nil
		}
		return nil, fmt.Errorf("%w: neither py nor python found on PATH", ErrPythonNotFound)
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := lookPath(name); err == nil {
			return &Interpreter{Path: path}, nil
		}
	}
	return nil, fmt.Errorf("%w: neither python3 nor python found on PATH", ErrPythonNotFound)
}

// isStorePlaceholder reports whether path is the WindowsApps stub that
// opens the Microsoft Store instead of running Python.
func isStorePlaceholder(path string) bool {
	return strings.Contains(strings.ToLower(path), `microsoft\windowsapps`)
}
