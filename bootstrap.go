package venvboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultEnvDir is the environment directory both setup scripts created.
const DefaultEnvDir = "venv"

// Options configures a bootstrap run. The zero value reproduces the setup
// scripts: create ./venv, install ./requirements.txt, print the default
// shell's activation command.
type Options struct {
	// EnvDir is the environment directory.
	EnvDir string

	// Manifest is the requirements file.
	Manifest string

	// Python overrides base interpreter discovery.
	Python string

	// MinPython rejects older base interpreters ("3.10", "3.11.2").
	MinPython string

	// Shell selects the printed activation command.
	Shell Shell

	Venv VenvOptions
	Pip  PipOptions

	// Force reinstalls even when the stamp matches the manifest.
	Force bool

	// Verify checks that every named requirement is installed.
	Verify bool

	// ContinueOnError prints the completion message even when a step
	// fails, as setup.bat did. The step's error is still returned.
	ContinueOnError bool
}

func (o Options) withDefaults() Options {
	if o.EnvDir == "" {
		o.EnvDir = DefaultEnvDir
	}
	if o.Manifest == "" {
		o.Manifest = DefaultManifest
	}
	return o
}

// Result describes a finished run.
type Result struct {
	Env        *Environment
	Activation *Activation
	Manifest   *Manifest

	// ActivationCommand is the command printed in the completion message.
	ActivationCommand string

	// Installed is true when pip ran; Skipped when the stamp matched.
	Installed bool
	Skipped   bool

	// Missing lists requirements verification could not find.
	Missing []Requirement
}

// Bootstrapper creates an environment, activates it, installs the
// manifest into it and prints how to reactivate it.
type Bootstrapper struct {
	Options Options

	// Platform defaults to the host layout.
	Platform Platform

	// Runner defaults to an ExecRunner streaming to Out and os.Stderr.
	Runner Runner

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Out receives tool output and the completion message; defaults to
	// os.Stdout.
	Out io.Writer

	// Progress is optional.
	Progress ProgressCallback

	// Environ returns the environment activation starts from; defaults to
	// os.Environ.
	Environ func() []string

	// ToolVersion is recorded in the stamp.
	ToolVersion string
}

// Run performs the bootstrap. Steps run strictly in order and each blocks
// on its external command. A failed external command surfaces as a
// *StepError wrapping a *CommandError, so ExitCode(err) yields the tool's
// exit status.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	opts := b.Options.withDefaults()
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	p := b.Platform
	if p.GOOS == "" {
		p = HostPlatform()
	}
	r := b.Runner
	if r == nil {
		r = &ExecRunner{Stdout: out, Stderr: os.Stderr, Logger: logger}
	}

	activation, err := p.ActivationCommand(opts.EnvDir, opts.Shell)
	if err != nil {
		return nil, err
	}
	res := &Result{ActivationCommand: activation}

	fail := func(step Step, err error) (*Result, error) {
		logger.Error("bootstrap step failed", zap.String("step", string(step)), zap.Error(err))
		if opts.ContinueOnError {
			fmt.Fprintln(out, CompletionMessage(activation))
		}
		return res, &StepError{Step: step, Err: err}
	}

	m, err := ParseManifest(opts.Manifest)
	if err != nil {
		return fail(StepManifest, err)
	}
	res.Manifest = m
	logger.Info("manifest loaded",
		zap.String("path", m.Path),
		zap.Int("requirements", len(m.Requirements)),
		zap.Strings("files", m.Files))
	logger.Debug("manifest pip options", zap.Strings("options", m.Options))
	if len(m.RemoteIncludes) > 0 {
		logger.Warn("remote manifest includes are left to pip and not verified", zap.Strings("urls", m.RemoteIncludes))
	}

	base, err := FindInterpreter(ctx, r, p, opts.Python)
	if err != nil {
		return fail(StepLocate, err)
	}
	if opts.MinPython != "" {
		min, err := ParseVersion(opts.MinPython)
		if err != nil {
			return fail(StepLocate, fmt.Errorf("invalid minimum python version: %w", err))
		}
		if !base.Version.AtLeast(min) {
			return fail(StepLocate, fmt.Errorf("%w: found %s, need %s", ErrPythonTooOld, base.Version.String(), min.String()))
		}
	}
	logger.Info("using base interpreter", zap.String("path", base.Path), zap.Stringer("version", base.Version))

	if dir := nearestExistingDir(opts.EnvDir); !isDirWritable(dir) {
		return fail(StepCreate, fmt.Errorf("%w: %s", ErrNotWritable, dir))
	}
	env, err := CreateVenv(ctx, r, base, p, opts.EnvDir, opts.Venv, b.Progress)
	if err != nil {
		return fail(StepCreate, err)
	}
	res.Env = env
	if !env.HasActivateScript() {
		return fail(StepCreate, fmt.Errorf("%w: %s", ErrNoActivateScript, p.ActivateScript(env.Path)))
	}
	logger.Info("environment ready",
		zap.String("path", env.Path),
		zap.Bool("new", env.IsNew),
		zap.Stringer("python", env.PythonVersion),
		zap.Stringer("pip", env.PipVersion))

	environ := b.Environ
	if environ == nil {
		environ = os.Environ
	}
	act, err := Activate(env, environ())
	if err != nil {
		return fail(StepActivate, err)
	}
	res.Activation = act

	if !opts.Force && !env.IsNew {
		stamp, err := ReadStamp(env.Path)
		if err != nil {
			logger.Warn("ignoring unreadable stamp", zap.Error(err))
		}
		res.Skipped = stamp.Matches(m, env.PythonVersion)
	}

	if res.Skipped {
		logger.Info("manifest unchanged since last install, skipping pip", zap.String("sha256", m.Hash()))
	} else {
		// a failed install must not leave the previous stamp behind
		if err := RemoveStamp(env.Path); err != nil {
			return fail(StepStamp, err)
		}
		if err := env.PipInstallRequirements(ctx, r, act, opts.Manifest, opts.Pip, b.Progress); err != nil {
			return fail(StepInstall, err)
		}
		res.Installed = true
	}

	if opts.Verify {
		missing, installed, err := env.CheckRequirements(ctx, r, act, m)
		if err != nil {
			return fail(StepVerify, err)
		}
		res.Missing = missing
		if len(res.Missing) > 0 {
			return fail(StepVerify, missingError(res.Missing))
		}
		logger.Info("verified requirements", zap.Int("installed", len(installed)))
	}

	if res.Installed {
		stamp := &Stamp{
			ManifestHash:  m.Hash(),
			PythonVersion: env.PythonVersion.String(),
			Requirements:  m.Names(),
			InstalledAt:   time.Now().UTC(),
			ToolVersion:   b.ToolVersion,
		}
		if err := WriteStamp(env.Path, stamp); err != nil {
			return fail(StepStamp, err)
		}
	}

	fmt.Fprintln(out, CompletionMessage(activation))
	return res, nil
}

func missingError(missing []Requirement) error {
	names := make([]string, len(missing))
	for i, req := range missing {
		names[i] = req.Name
	}
	return fmt.Errorf("%w: %v", ErrMissingPackages, names)
}

// nearestExistingDir returns path when it is an existing directory,
// otherwise its closest existing ancestor; the venv module creates missing
// parents.
func nearestExistingDir(path string) string {
	dir, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return dir
	}
	for {
		parent := filepath.Dir(dir)
		if _, err := os.Stat(parent); err == nil || errors.Is(err, os.ErrPermission) || parent == dir {
			return parent
		}
		dir = parent
	}
}
