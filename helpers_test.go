package venvboot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner imitates python, the venv module and pip well enough for the
// bootstrapper: "-m venv" lays out an environment on disk, version probes
// answer with fixed strings and pip subcommands return canned output.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Command

	platform      Platform
	pythonVersion string
	installed     []InstalledPackage
	frozen        []string

	// noActivateScript makes "-m venv" leave out the activation script.
	noActivateScript bool

	// errors returned for the matching step
	venvErr    error
	installErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		platform:      HostPlatform(),
		pythonVersion: "Python 3.11.4",
	}
}

func (f *fakeRunner) Run(ctx context.Context, c Command) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	args := c.Args
	base := strings.TrimSuffix(filepath.Base(c.Path), ".exe")
	switch {
	case len(args) >= 2 && args[0] == "-m" && args[1] == "venv":
		if f.venvErr != nil {
			return Output{}, f.venvErr
		}
		return Output{}, f.layout(args[len(args)-1])
	case len(args) == 1 && args[0] == "--version" && strings.HasPrefix(base, "pip"):
		return Output{Stdout: []byte("pip 23.2.1 from /x/site-packages/pip (python 3.11)\n")}, nil
	case len(args) == 1 && args[0] == "--version":
		return Output{Stdout: []byte(f.pythonVersion + "\n")}, nil
	case len(args) > 2 && args[0] == "-c" && args[1] == markerScript:
		return Output{Stdout: evaluateMarkers(args[2:])}, nil
	case len(args) >= 1 && args[0] == "-c":
		return Output{Stdout: []byte("/x/lib/python3.11/site-packages\n")}, nil
	case len(args) >= 1 && args[0] == "install":
		if f.installErr != nil {
			return Output{}, f.installErr
		}
		if c.OnLine != nil {
			c.OnLine("Collecting requests")
			c.OnLine("Successfully installed requests-2.31.0")
		}
		return Output{Stdout: []byte("Successfully installed\n")}, nil
	case len(args) >= 1 && args[0] == "list":
		data, err := json.Marshal(f.installed)
		return Output{Stdout: data}, err
	case len(args) >= 1 && args[0] == "freeze":
		return Output{Stdout: []byte(strings.Join(f.frozen, "\n") + "\n")}, nil
	}
	return Output{}, fmt.Errorf("fakeRunner: unexpected command %s %v", c.Path, args)
}

// layout creates the files "python -m venv" would.
func (f *fakeRunner) layout(dir string) error {
	if err := os.MkdirAll(f.platform.BinPath(dir), 0o755); err != nil {
		return err
	}
	files := []string{f.platform.PythonPath(dir), f.platform.PipPath(dir)}
	if !f.noActivateScript {
		files = append(files, f.platform.ActivateScript(dir))
	}
	for _, p := range files {
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644)
}

// evaluateMarkers answers like a Linux interpreter: markers naming win32
// are false, all others true.
func evaluateMarkers(markers []string) []byte {
	values := make([]bool, len(markers))
	for i, m := range markers {
		values[i] = !strings.Contains(m, "win32")
	}
	data, _ := json.Marshal(values)
	return data
}

// callsWith returns the recorded commands whose first argument is arg0.
func (f *fakeRunner) callsWith(arg0 string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Command
	for _, c := range f.calls {
		if len(c.Args) > 0 && c.Args[0] == arg0 {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stubLookPath makes every executable resolve to /usr/bin/<name> except
// those listed as missing.
func stubLookPath(t *testing.T, missing ...string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		for _, m := range missing {
			if m == name {
				return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
			}
		}
		return "/usr/bin/" + name, nil
	}
	t.Cleanup(func() { lookPath = orig })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
