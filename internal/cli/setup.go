package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/richinsley/venvboot"
	"github.com/richinsley/venvboot/internal/config"
)

// setupFlags holds the setup command's flags. Only flags the user set
// override the config file and environment.
type setupFlags struct {
	envDir             string
	manifest           string
	python             string
	minPython          string
	shell              string
	indexURL           string
	extraIndexURL      string
	prompt             string
	noCache            bool
	upgradeDeps        bool
	systemSitePackages bool
	clear              bool
	force              bool
	verify             bool
	continueOnError    bool
}

func addSetupFlags(cmd *cobra.Command, f *setupFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.envDir, "env-dir", venvboot.DefaultEnvDir, "Environment directory")
	fl.StringVarP(&f.manifest, "requirement", "r", venvboot.DefaultManifest, "Requirements manifest")
	fl.StringVar(&f.python, "python", "", "Base interpreter (default: python3/python, or py on Windows)")
	fl.StringVar(&f.minPython, "min-python", "", "Reject base interpreters older than this version")
	fl.StringVar(&f.shell, "shell", "", "Shell for the printed activation command: sh, bash, zsh, fish, csh, cmd, powershell")
	fl.StringVar(&f.indexURL, "index-url", "", "Package index URL")
	fl.StringVar(&f.extraIndexURL, "extra-index-url", "", "Additional package index URL")
	fl.StringVar(&f.prompt, "prompt", "", "Prompt prefix of the activated environment")
	fl.BoolVar(&f.noCache, "no-cache", false, "Disable the pip cache")
	fl.BoolVar(&f.upgradeDeps, "upgrade-deps", false, "Upgrade pip and setuptools in the new environment")
	fl.BoolVar(&f.systemSitePackages, "system-site-packages", false, "Give the environment access to system site-packages")
	fl.BoolVar(&f.clear, "clear", false, "Delete the environment's contents before creating it")
	fl.BoolVar(&f.force, "force", false, "Reinstall even if the manifest is unchanged since the last run")
	fl.BoolVar(&f.verify, "verify", false, "Check every requirement is installed afterwards")
	fl.BoolVar(&f.continueOnError, "continue-on-error", false, "Print the completion message even if a step fails")
}

// options merges changed flags into cfg.
func (f *setupFlags) options(cmd *cobra.Command, cfg config.Config) (venvboot.Options, error) {
	fl := cmd.Flags()
	strs := []struct {
		name string
		dst  *string
		val  string
	}{
		{"env-dir", &cfg.EnvDir, f.envDir},
		{"requirement", &cfg.Manifest, f.manifest},
		{"python", &cfg.Python, f.python},
		{"min-python", &cfg.MinPython, f.minPython},
		{"shell", &cfg.Shell, f.shell},
		{"index-url", &cfg.IndexURL, f.indexURL},
		{"extra-index-url", &cfg.ExtraIndexURL, f.extraIndexURL},
		{"prompt", &cfg.Prompt, f.prompt},
	}
	for _, s := range strs {
		if fl.Changed(s.name) {
			*s.dst = s.val
		}
	}
	bools := []struct {
		name string
		dst  *bool
		val  bool
	}{
		{"no-cache", &cfg.NoCache, f.noCache},
		{"upgrade-deps", &cfg.UpgradeDeps, f.upgradeDeps},
		{"system-site-packages", &cfg.SystemSitePackages, f.systemSitePackages},
		{"verify", &cfg.Verify, f.verify},
		{"continue-on-error", &cfg.ContinueOnError, f.continueOnError},
	}
	for _, b := range bools {
		if fl.Changed(b.name) {
			*b.dst = b.val
		}
	}

	if err := cfg.Validate(); err != nil {
		return venvboot.Options{}, &Error{Code: ExitUsageError, Message: "invalid flags", Err: err}
	}
	opts := cfg.Options()
	opts.Venv.Clear = f.clear
	opts.Force = f.force
	return opts, nil
}

func newSetupCommand(a *app) *cobra.Command {
	f := &setupFlags{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the environment and install the manifest (default command)",
		Long: `Create the virtual environment, activate it for the duration of the run,
install every requirement of the manifest into it and print how to activate
it again.

Examples:
  venvboot setup
  venvboot setup --env-dir .venv -r requirements-dev.txt --verify
  venvboot setup --shell powershell`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetup(cmd, f)
		},
	}
	addSetupFlags(cmd, f)
	return cmd
}

func (a *app) runSetup(cmd *cobra.Command, f *setupFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	opts, err := f.options(cmd, cfg)
	if err != nil {
		return err
	}
	if _, err := a.platform.ActivationCommand(opts.EnvDir, opts.Shell); err != nil {
		return &Error{Code: ExitUsageError, Message: "invalid shell", Err: err}
	}

	b := &venvboot.Bootstrapper{
		Options:     opts,
		Platform:    a.platform,
		Runner:      a.commandRunner(),
		Logger:      a.logger,
		Out:         a.stdout,
		ToolVersion: Version,
		Progress: func(message string, current, total int64) {
			a.logger.Debug(message, zap.Int64("current", current), zap.Int64("total", total))
		},
	}
	if _, err := b.Run(cmd.Context()); err != nil {
		return wrapError("setup failed", err)
	}
	return nil
}
