// Package venvboot bootstraps a Python project's virtual environment from Go.
//
// It does what a pair of setup.sh / setup.bat scripts does, on every
// platform from one binary: create an isolated environment, activate it,
// install the requirements manifest into it and print the command that
// reactivates it later.
//
// # Bootstrapping
//
// The zero Options reproduce the scripts exactly: ./venv from
// ./requirements.txt.
//
//	b := &venvboot.Bootstrapper{Logger: logger}
//	res, err := b.Run(ctx)
//	if err != nil {
//	    os.Exit(venvboot.ExitCode(err))
//	}
//	fmt.Println(res.ActivationCommand) // source venv/bin/activate
//
// Steps run in order and each blocks on one external command. When a step
// fails, Run returns a *StepError naming it; if the cause is a failed tool,
// ExitCode returns that tool's exit status. Setting
// Options.ContinueOnError prints the completion message even after a
// failure, which is what setup.bat did.
//
// # Environments
//
// Lower-level pieces are usable on their own:
//
//	base, err := venvboot.FindInterpreter(ctx, runner, venvboot.HostPlatform(), "")
//	env, err := venvboot.CreateVenv(ctx, runner, base, venvboot.HostPlatform(), "venv", venvboot.VenvOptions{}, nil)
//	act, err := venvboot.ActivateCurrent(env)
//	err = env.PipInstallRequirements(ctx, runner, act, "requirements.txt", venvboot.PipOptions{}, nil)
//
// Activation never changes the calling process. It produces the child
// environment (VIRTUAL_ENV, PATH, no PYTHONHOME) that pip runs under.
//
// # Manifests
//
// ParseManifest validates requirements.txt before anything is created, so
// a missing or malformed manifest leaves no half-built environment. Nested
// -r includes are followed and include cycles are rejected.
//
// # Stamps
//
// After a successful install a small msgpack record (.venvboot) is written
// into the environment. A rerun with an unchanged manifest and interpreter
// skips pip unless Options.Force is set.
//
// # Platform Support
//
// Windows environments keep executables in Scripts\ and are activated from
// cmd or PowerShell; Linux and macOS use bin/ and sh, bash, zsh, fish or
// csh.
package venvboot
