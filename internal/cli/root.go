// Package cli implements the cobra commands of the venvboot binary.
//
// The root command runs setup, so a bare "venvboot" behaves like the
// setup.sh / setup.bat scripts it replaces. The other subcommands (verify,
// activate, freeze) work on an environment that already exists.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/richinsley/venvboot"
	"github.com/richinsley/venvboot/internal/config"
)

// Version, Commit and Date are injected from main at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// app holds state shared by all commands of one invocation.
type app struct {
	// global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// environ overrides the process environment for config loading;
	// nil means os.Environ.
	environ map[string]string

	// runner overrides the command runner; nil means an ExecRunner.
	runner venvboot.Runner

	platform venvboot.Platform
	logger   *zap.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	sf := &setupFlags{}

	rootCmd := &cobra.Command{
		Use:   "venvboot",
		Short: "Create a Python virtual environment and install requirements.txt into it",
		Long: `venvboot creates a virtual environment (./venv), activates it, installs the
packages listed in ./requirements.txt and prints the command that activates
the environment again later.

Running venvboot without a subcommand is the same as "venvboot setup".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		Args:          cobra.NoArgs,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetup(cmd, sf)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print errors as JSON")
	addSetupFlags(rootCmd, sf)

	rootCmd.AddCommand(newSetupCommand(a))
	rootCmd.AddCommand(newVerifyCommand(a))
	rootCmd.AddCommand(newActivateCommand(a))
	rootCmd.AddCommand(newFreezeCommand(a))

	return rootCmd
}

// init prepares the logger and output writers before any command runs.
func (a *app) init(cmd *cobra.Command) error {
	if a.stdout == nil {
		a.stdout = cmd.OutOrStdout()
	}
	if a.stderr == nil {
		a.stderr = cmd.ErrOrStderr()
	}
	if a.platform.GOOS == "" {
		a.platform = venvboot.HostPlatform()
	}
	if a.logger != nil {
		return nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

// loadConfig reads the config file and environment.
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.configPath, a.environ)
	if err != nil {
		return config.Config{}, &Error{Code: ExitUsageError, Message: "invalid configuration", Err: err}
	}
	return cfg, nil
}

func (a *app) commandRunner() venvboot.Runner {
	if a.runner != nil {
		return a.runner
	}
	return &venvboot.ExecRunner{Stdout: a.stdout, Stderr: a.stderr, Logger: a.logger}
}

// Execute runs rootCmd and exits with the status derived from its error.
// SIGINT and SIGTERM cancel the command context, which kills any running
// venv or pip child.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		jsonOutput, _ := rootCmd.PersistentFlags().GetBool("json")
		printError(os.Stderr, err, jsonOutput)
		os.Exit(int(exitCodeFor(err)))
	}
}

// printError writes err as "Error: ..." or, with --json, as a JSON object.
func printError(w io.Writer, err error, jsonOutput bool) {
	if !jsonOutput {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	obj := map[string]any{
		"error": map[string]any{
			"message":   err.Error(),
			"exit_code": int(exitCodeFor(err)),
		},
	}
	var stepErr *venvboot.StepError
	if errors.As(err, &stepErr) {
		obj["error"].(map[string]any)["step"] = string(stepErr.Step)
	}
	data, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(w, string(data))
}
