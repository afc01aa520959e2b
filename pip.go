package venvboot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PipOptions are passed to every pip install.
type PipOptions struct {
	// IndexURL replaces PyPI when set.
	IndexURL string

	// ExtraIndexURL adds a second index when set.
	ExtraIndexURL string

	// NoCache disables pip's cache, useful in CI.
	NoCache bool
}

func (o PipOptions) args() []string {
	var args []string
	if o.NoCache {
		args = append(args, "--no-cache-dir")
	}
	if o.IndexURL != "" {
		args = append(args, "--index-url", o.IndexURL)
	}
	if o.ExtraIndexURL != "" {
		args = append(args, "--extra-index-url", o.ExtraIndexURL)
	}
	return args
}

// InstalledPackage is one entry of "pip list --format=json".
type InstalledPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// pipCommand runs pip from env under the activated environment act. A nil
// activation inherits the current process environment.
func (env *Environment) pipCommand(act *Activation, args ...string) Command {
	cmd := Command{Path: env.PipPath, Args: args}
	if act != nil {
		cmd.Env = act.Env
	}
	return cmd
}

// PipInstallRequirements runs "pip install -r manifestPath" inside env.
// pip's output is streamed to the terminal; each stdout line advances the
// progress callback.
func (env *Environment) PipInstallRequirements(ctx context.Context, r Runner, act *Activation, manifestPath string, opts PipOptions, progress ProgressCallback) error {
	args := []string{"install", "--no-warn-script-location"}
	args = append(args, opts.args()...)
	args = append(args, "-r", manifestPath)

	cmd := env.pipCommand(act, args...)
	cmd.Stream = true
	lineCount := int64(0)
	if progress != nil {
		cmd.OnLine = func(string) {
			lineCount++
			progress("Installing pip requirements...", lineCount, -1)
		}
	}

	if _, err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("error installing requirements: %w", err)
	}
	if progress != nil {
		progress("Pip requirements installed successfully", 100, 100)
	}
	return nil
}

// PipList returns the packages installed in env.
func (env *Environment) PipList(ctx context.Context, r Runner, act *Activation) ([]InstalledPackage, error) {
	out, err := r.Run(ctx, env.pipCommand(act, "list", "--format=json", "--disable-pip-version-check"))
	if err != nil {
		return nil, fmt.Errorf("error running pip list: %w", err)
	}
	var pkgs []InstalledPackage
	if err := json.Unmarshal(out.Stdout, &pkgs); err != nil {
		return nil, fmt.Errorf("error parsing pip list output: %w", err)
	}
	return pkgs, nil
}

var fileURLRe = regexp.MustCompile(`^(.+) @ file:///.+$`)

// PipFreeze returns "pip freeze" output, one requirement per entry. Local
// file URLs are reduced to the bare package name so the list can be
// reinstalled elsewhere.
func (env *Environment) PipFreeze(ctx context.Context, r Runner, act *Activation) ([]string, error) {
	out, err := r.Run(ctx, env.pipCommand(act, "freeze", "--disable-pip-version-check"))
	if err != nil {
		return nil, fmt.Errorf("error running pip freeze: %w", err)
	}

	var pkgs []string
	scanner := bufio.NewScanner(bytes.NewReader(out.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if match := fileURLRe.FindStringSubmatch(line); match != nil {
			line = match[1]
		}
		pkgs = append(pkgs, line)
	}
	return pkgs, scanner.Err()
}

// markerScript evaluates PEP 508 markers with the packaging copy vendored
// in pip, so it works in any environment that has pip.
const markerScript = `import json, sys
from pip._vendor.packaging.markers import Marker
print(json.dumps([Marker(m).evaluate() for m in sys.argv[1:]]))`

// EvaluateMarkers evaluates environment markers against the environment's
// interpreter and returns each marker's result.
func (env *Environment) EvaluateMarkers(ctx context.Context, r Runner, act *Activation, markers []string) (map[string]bool, error) {
	results := make(map[string]bool, len(markers))
	if len(markers) == 0 {
		return results, nil
	}
	cmd := Command{Path: env.PythonPath, Args: append([]string{"-c", markerScript}, markers...)}
	if act != nil {
		cmd.Env = act.Env
	}
	out, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("error evaluating environment markers: %w", err)
	}
	var values []bool
	if err := json.Unmarshal(out.Stdout, &values); err != nil {
		return nil, fmt.Errorf("error parsing marker results: %w", err)
	}
	if len(values) != len(markers) {
		return nil, fmt.Errorf("error parsing marker results: got %d values for %d markers", len(values), len(markers))
	}
	for i, m := range markers {
		results[m] = values[i]
	}
	return results, nil
}

// CheckRequirements lists the packages installed in env and returns the
// requirements of m that pip would have installed but are absent.
func (env *Environment) CheckRequirements(ctx context.Context, r Runner, act *Activation, m *Manifest) ([]Requirement, []InstalledPackage, error) {
	installed, err := env.PipList(ctx, r, act)
	if err != nil {
		return nil, nil, err
	}
	markers, err := env.EvaluateMarkers(ctx, r, act, m.Markers())
	if err != nil {
		return nil, installed, err
	}
	return MissingRequirements(m, installed, markers), installed, nil
}

// MissingRequirements returns the named requirements of m that are absent
// from installed. Unnamed URL and path requirements cannot be checked and
// are skipped. A requirement with an environment marker is only checked
// when markers maps that marker to true; pip does not install it
// otherwise.
func MissingRequirements(m *Manifest, installed []InstalledPackage, markers map[string]bool) []Requirement {
	have := make(map[string]bool, len(installed))
	for _, p := range installed {
		have[NormalizeName(p.Name)] = true
	}

	seen := make(map[string]bool)
	var missing []Requirement
	for _, req := range m.Requirements {
		if req.Name == "" {
			continue
		}
		if req.Marker != "" && !markers[req.Marker] {
			continue
		}
		k := req.Key()
		if have[k] || seen[k] {
			continue
		}
		seen[k] = true
		missing = append(missing, req)
	}
	return missing
}
