package venvboot

import (
	"os"
	"path/filepath"
	"strings"
)

// Activation is the process environment of an activated virtual
// environment. It is applied to child commands only; the calling process
// is never modified, so the effect ends with the run like the scripts'
// "activate" did.
type Activation struct {
	// VirtualEnv is the absolute environment directory.
	VirtualEnv string

	// BinPath is prepended to PATH.
	BinPath string

	// Env is the complete child environment.
	Env []string
}

// Activate derives the activated environment from base, which is usually
// os.Environ(). It mirrors the venv activate scripts: VIRTUAL_ENV is set,
// the bin directory goes first on PATH and PYTHONHOME is unset.
func Activate(env *Environment, base []string) (*Activation, error) {
	abs, err := filepath.Abs(env.Path)
	if err != nil {
		return nil, err
	}
	bin := env.Platform.BinPath(abs)

	pathKey := "PATH"
	if env.Platform.IsWindows() {
		// Windows keys are case-insensitive; keep whatever spelling is present.
		for _, kv := range base {
			if k, _, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, "PATH") {
				pathKey = k
				break
			}
		}
	}

	oldPath := lookupEnv(base, pathKey, env.Platform.IsWindows())
	newPath := bin
	if oldPath != "" {
		newPath = bin + string(pathListSeparator(env.Platform)) + oldPath
	}

	out := make([]string, 0, len(base)+2)
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if sameKey(k, pathKey, env.Platform.IsWindows()) ||
			sameKey(k, "VIRTUAL_ENV", env.Platform.IsWindows()) ||
			sameKey(k, "PYTHONHOME", env.Platform.IsWindows()) {
			continue
		}
		out = append(out, kv)
	}
	out = append(out, pathKey+"="+newPath, "VIRTUAL_ENV="+abs)

	return &Activation{VirtualEnv: abs, BinPath: bin, Env: out}, nil
}

// ActivateCurrent activates env on top of the current process environment.
func ActivateCurrent(env *Environment) (*Activation, error) {
	return Activate(env, os.Environ())
}

// Lookup returns the value of key in the activated environment.
func (a *Activation) Lookup(key string) (string, bool) {
	for i := len(a.Env) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(a.Env[i], "=")
		if k == key {
			return v, true
		}
	}
	return "", false
}

func lookupEnv(env []string, key string, foldCase bool) string {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(env[i], "=")
		if sameKey(k, key, foldCase) {
			return v
		}
	}
	return ""
}

func sameKey(a, b string, foldCase bool) bool {
	if foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func pathListSeparator(p Platform) rune {
	if p.IsWindows() {
		return ';'
	}
	return ':'
}
