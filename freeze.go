package venvboot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FreezeSpec is a JSON snapshot of an environment, enough to recreate it
// with "pip install".
type FreezeSpec struct {
	Name          string   `json:"name"`
	PythonVersion string   `json:"python_version,omitempty"`
	PipVersion    string   `json:"pip_version,omitempty"`
	Packages      []string `json:"packages"`
}

// Freeze captures the installed package set of env.
func (env *Environment) Freeze(ctx context.Context, r Runner, act *Activation) (*FreezeSpec, error) {
	pkgs, err := env.PipFreeze(ctx, r, act)
	if err != nil {
		return nil, err
	}
	spec := &FreezeSpec{Name: env.Name, Packages: pkgs}
	if spec.Packages == nil {
		spec.Packages = []string{}
	}
	if !env.PythonVersion.IsZero() {
		spec.PythonVersion = env.PythonVersion.MinorString()
	}
	if !env.PipVersion.IsZero() {
		spec.PipVersion = env.PipVersion.String()
	}
	return spec, nil
}

// WriteJSON writes spec as indented JSON.
func (spec *FreezeSpec) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(spec); err != nil {
		return fmt.Errorf("error marshaling environment spec to JSON: %w", err)
	}
	return nil
}

// WriteFile writes spec to filePath.
func (spec *FreezeSpec) WriteFile(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("error writing JSON to file: %w", err)
	}
	if err := spec.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
