package venvboot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ProgressCallback is called during long-running operations to report
// progress. total is -1 when unknown.
type ProgressCallback func(message string, current, total int64)

// Environment is a virtual environment on disk together with the paths and
// versions read from it.
type Environment struct {
	// Name is the base name of the environment directory.
	Name string

	// Path is the environment directory as given by the caller.
	Path string

	Platform Platform

	// BinPath holds executables and activation scripts.
	BinPath string

	PythonPath string
	PipPath    string

	PythonVersion Version
	PipVersion    Version

	// SitePackagesPath is empty until Probe succeeds.
	SitePackagesPath string

	// IsNew is true when the directory did not exist, or was cleared,
	// before creation.
	IsNew bool
}

// VenvOptions maps to the flags of Python's venv module. The zero value
// runs a plain "python -m venv <dir>", as the setup scripts did.
type VenvOptions struct {
	// SystemSitePackages gives access to the system site-packages directory.
	SystemSitePackages bool

	// Symlinks creates symlinks to Python files instead of copies.
	Symlinks bool

	// Copies creates copies of Python files instead of symlinks.
	Copies bool

	// Clear deletes the contents of the environment directory first.
	Clear bool

	// Upgrade upgrades an existing environment to the base Python.
	// Ignored when Clear is set.
	Upgrade bool

	// WithoutPip skips pip bootstrapping.
	WithoutPip bool

	// Prompt sets the prompt prefix shown while activated.
	Prompt string

	// UpgradeDeps upgrades pip and setuptools to the latest versions.
	UpgradeDeps bool
}

func (o VenvOptions) args() []string {
	var args []string
	if o.SystemSitePackages {
		args = append(args, "--system-site-packages")
	}
	if o.Symlinks {
		args = append(args, "--symlinks")
	}
	if o.Copies {
		args = append(args, "--copies")
	}
	if o.Clear {
		args = append(args, "--clear")
	} else if o.Upgrade {
		args = append(args, "--upgrade")
	}
	if o.WithoutPip {
		args = append(args, "--without-pip")
	}
	if o.Prompt != "" {
		args = append(args, "--prompt", o.Prompt)
	}
	if o.UpgradeDeps {
		args = append(args, "--upgrade-deps")
	}
	return args
}

// NewEnvironment describes the environment at venvPath without touching
// the filesystem.
func NewEnvironment(p Platform, venvPath string) *Environment {
	return &Environment{
		Name:       filepath.Base(venvPath),
		Path:       venvPath,
		Platform:   p,
		BinPath:    p.BinPath(venvPath),
		PythonPath: p.PythonPath(venvPath),
		PipPath:    p.PipPath(venvPath),
	}
}

// OpenEnvironment returns an existing environment. It fails when the
// directory has no interpreter.
func OpenEnvironment(p Platform, venvPath string) (*Environment, error) {
	env := NewEnvironment(p, venvPath)
	if _, err := os.Stat(env.PythonPath); err != nil {
		return nil, fmt.Errorf("no environment at %s: %w", venvPath, err)
	}
	return env, nil
}

// CreateVenv creates, or re-creates, a virtual environment at venvPath from
// the base interpreter and probes the result. Creation on top of an
// existing environment is left to the venv module.
//
// Output of the venv module is streamed to the runner's terminal.
func CreateVenv(ctx context.Context, r Runner, base *Interpreter, p Platform, venvPath string, opts VenvOptions, progress ProgressCallback) (*Environment, error) {
	if base == nil {
		return nil, fmt.Errorf("base interpreter is nil")
	}

	_, statErr := os.Stat(venvPath)
	env := NewEnvironment(p, venvPath)
	env.IsNew = os.IsNotExist(statErr) || opts.Clear

	args := append([]string{"-m", "venv"}, opts.args()...)
	args = append(args, venvPath)
	cmd := base.Command(args...)
	cmd.Stream = true
	if _, err := r.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("failed to create virtual environment: %w", err)
	}

	if progress != nil {
		if env.IsNew {
			progress("Created virtual environment", 30, 100)
		} else {
			progress("Updated virtual environment", 30, 100)
		}
	}

	if err := env.Probe(ctx, r, !opts.WithoutPip); err != nil {
		return nil, err
	}

	if progress != nil {
		progress("Virtual environment setup complete", 100, 100)
	}
	return env, nil
}

// Probe reads the interpreter version, the site-packages path and, when
// withPip is set, the pip version. The queries run concurrently.
func (env *Environment) Probe(ctx context.Context, r Runner, withPip bool) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out, err := r.Run(ctx, Command{Path: env.PythonPath, Args: []string{"--version"}})
		if err != nil {
			return fmt.Errorf("error getting Python version: %w", err)
		}
		env.PythonVersion, err = ParsePythonVersion(string(out.Stdout))
		if err != nil {
			return fmt.Errorf("error parsing Python version: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		out, err := r.Run(ctx, Command{
			Path: env.PythonPath,
			Args: []string{"-c", "import sysconfig; print(sysconfig.get_path('purelib'))"},
		})
		if err != nil {
			return fmt.Errorf("error getting site-packages path: %w", err)
		}
		env.SitePackagesPath = strings.TrimSpace(string(out.Stdout))
		return nil
	})

	if withPip {
		g.Go(func() error {
			out, err := r.Run(ctx, Command{Path: env.PipPath, Args: []string{"--version"}})
			if err != nil {
				return fmt.Errorf("error getting pip version: %w", err)
			}
			env.PipVersion, err = ParsePipVersion(string(out.Stdout))
			if err != nil {
				return fmt.Errorf("error parsing pip version: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// HasActivateScript reports whether the platform activation entry point
// exists.
func (env *Environment) HasActivateScript() bool {
	_, err := os.Stat(env.Platform.ActivateScript(env.Path))
	return err == nil
}
