package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/richinsley/venvboot"
	"github.com/richinsley/venvboot/internal/config"
)

// envFlags are shared by the commands that inspect an existing environment.
type envFlags struct {
	envDir   string
	manifest string
	shell    string
}

func addEnvFlags(cmd *cobra.Command, f *envFlags, withManifest, withShell bool) {
	cmd.Flags().StringVar(&f.envDir, "env-dir", venvboot.DefaultEnvDir, "Environment directory")
	if withManifest {
		cmd.Flags().StringVarP(&f.manifest, "requirement", "r", venvboot.DefaultManifest, "Requirements manifest")
	}
	if withShell {
		cmd.Flags().StringVar(&f.shell, "shell", "", "Shell: sh, bash, zsh, fish, csh, cmd, powershell")
	}
}

// resolve overlays changed flags on the loaded configuration.
func (f *envFlags) resolve(cmd *cobra.Command, cfg config.Config) config.Config {
	if cmd.Flags().Changed("env-dir") {
		cfg.EnvDir = f.envDir
	}
	if cmd.Flags().Changed("requirement") {
		cfg.Manifest = f.manifest
	}
	if cmd.Flags().Changed("shell") {
		cfg.Shell = f.shell
	}
	return cfg
}

// openEnv opens the environment at dir or explains how to create it.
func (a *app) openEnv(dir string) (*venvboot.Environment, error) {
	env, err := venvboot.OpenEnvironment(a.platform, dir)
	if err != nil {
		return nil, &Error{
			Code:    ExitGeneralError,
			Message: fmt.Sprintf("no environment at %s (run \"venvboot setup\" first)", dir),
			Err:     err,
		}
	}
	return env, nil
}

func newVerifyCommand(a *app) *cobra.Command {
	f := &envFlags{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the environment contains every requirement of the manifest",
		Long: `Check that the environment exists, has its activation script and contains
every named requirement of the manifest, using pip's own package listing.

Examples:
  venvboot verify
  venvboot verify --env-dir .venv -r requirements-dev.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = f.resolve(cmd, cfg)

			m, err := venvboot.ParseManifest(cfg.Manifest)
			if err != nil {
				return wrapError("invalid manifest", err)
			}
			env, err := a.openEnv(cfg.EnvDir)
			if err != nil {
				return err
			}
			if !env.HasActivateScript() {
				return &Error{
					Code:    ExitGeneralError,
					Message: fmt.Sprintf("environment at %s has no activation script %s", cfg.EnvDir, a.platform.ActivateScript(cfg.EnvDir)),
				}
			}
			act, err := venvboot.ActivateCurrent(env)
			if err != nil {
				return wrapError("activation failed", err)
			}
			missing, _, err := env.CheckRequirements(cmd.Context(), a.commandRunner(), act, m)
			if err != nil {
				return wrapError("checking requirements failed", err)
			}

			if len(missing) > 0 {
				names := make([]string, len(missing))
				for i, req := range missing {
					names[i] = req.Name
					fmt.Fprintf(a.stdout, "missing: %s (%s:%d)\n", req.Raw, req.File, req.Line)
				}
				return &Error{
					Code:    ExitGeneralError,
					Message: "environment is incomplete",
					Err:     fmt.Errorf("%w: %s", venvboot.ErrMissingPackages, strings.Join(names, ", ")),
				}
			}
			fmt.Fprintf(a.stdout, "All %d requirements are installed in %s\n", len(m.Names()), cfg.EnvDir)
			return nil
		},
	}
	addEnvFlags(cmd, f, true, false)
	return cmd
}

func newActivateCommand(a *app) *cobra.Command {
	f := &envFlags{}
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Print the command that activates the environment",
		Long: `Print the command that activates the environment in your shell. The
environment cannot be activated from a child process, so run the printed
command yourself, or on POSIX shells:

  eval "$(venvboot activate)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = f.resolve(cmd, cfg)
			shell, err := venvboot.ParseShell(cfg.Shell)
			if err != nil {
				return &Error{Code: ExitUsageError, Message: "invalid shell", Err: err}
			}
			line, err := a.platform.ActivationCommand(cfg.EnvDir, shell)
			if err != nil {
				return &Error{Code: ExitUsageError, Message: "invalid shell", Err: err}
			}
			fmt.Fprintln(a.stdout, line)
			return nil
		},
	}
	addEnvFlags(cmd, f, false, true)
	return cmd
}

func newFreezeCommand(a *app) *cobra.Command {
	f := &envFlags{}
	var output string
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Write the environment's installed packages as JSON",
		Long: `Write the environment's name, Python and pip versions and its installed
packages (pip freeze) as JSON, to stdout or to a file.

Examples:
  venvboot freeze
  venvboot freeze -o environment.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = f.resolve(cmd, cfg)

			env, err := a.openEnv(cfg.EnvDir)
			if err != nil {
				return err
			}
			r := a.commandRunner()
			if err := env.Probe(cmd.Context(), r, true); err != nil {
				return wrapError("reading environment failed", err)
			}
			act, err := venvboot.ActivateCurrent(env)
			if err != nil {
				return wrapError("activation failed", err)
			}
			spec, err := env.Freeze(cmd.Context(), r, act)
			if err != nil {
				return wrapError("freeze failed", err)
			}

			if output == "" || output == "-" {
				return spec.WriteJSON(a.stdout)
			}
			if err := spec.WriteFile(output); err != nil {
				return wrapError("freeze failed", err)
			}
			a.logger.Info("environment frozen", zap.String("file", output), zap.Int("packages", len(spec.Packages)))
			return nil
		},
	}
	addEnvFlags(cmd, f, false, false)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
