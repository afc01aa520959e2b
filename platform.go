package venvboot

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Shell identifies the interactive shell the user will reactivate the
// environment from. It only affects the printed activation command.
type Shell string

const (
	ShellSh         Shell = "sh"
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellCsh        Shell = "csh"
	ShellCmd        Shell = "cmd"
	ShellPowerShell Shell = "powershell"
)

// ParseShell validates a shell name. The empty string is returned unchanged
// and means "the platform default".
func ParseShell(s string) (Shell, error) {
	switch sh := Shell(strings.ToLower(strings.TrimSpace(s))); sh {
	case "", ShellSh, ShellBash, ShellZsh, ShellFish, ShellCsh, ShellCmd, ShellPowerShell:
		return sh, nil
	case "pwsh":
		return ShellPowerShell, nil
	default:
		return "", fmt.Errorf("unknown shell %q", s)
	}
}

// Platform describes the on-disk layout of a virtual environment for one
// operating system family.
type Platform struct {
	// GOOS is the Go name of the operating system.
	GOOS string

	// BinDir is the directory inside the environment that holds
	// executables and activation scripts ("Scripts" or "bin").
	BinDir string

	// ExeSuffix is appended to executable names (".exe" on Windows).
	ExeSuffix string

	// Sep is the path separator used in printed commands.
	Sep string
}

// PlatformFor returns the layout used on goos.
func PlatformFor(goos string) Platform {
	if goos == "windows" {
		return Platform{GOOS: goos, BinDir: "Scripts", ExeSuffix: ".exe", Sep: `\`}
	}
	return Platform{GOOS: goos, BinDir: "bin", Sep: "/"}
}

// HostPlatform returns the layout of the running operating system.
func HostPlatform() Platform {
	return PlatformFor(runtime.GOOS)
}

// IsWindows reports whether p is the Windows layout.
func (p Platform) IsWindows() bool {
	return p.GOOS == "windows"
}

// DefaultShell is cmd on Windows and sh elsewhere, matching setup.bat and
// setup.sh.
func (p Platform) DefaultShell() Shell {
	if p.IsWindows() {
		return ShellCmd
	}
	return ShellSh
}

// SupportsShell reports whether s can activate an environment built with
// this layout.
func (p Platform) SupportsShell(s Shell) bool {
	switch s {
	case ShellPowerShell, ShellSh, ShellBash:
		return true
	case ShellCmd:
		return p.IsWindows()
	case ShellZsh, ShellFish, ShellCsh:
		return !p.IsWindows()
	}
	return false
}

// BinPath returns the executables directory of the environment at envDir.
func (p Platform) BinPath(envDir string) string {
	return filepath.Join(envDir, p.BinDir)
}

// PythonPath returns the interpreter inside the environment at envDir.
func (p Platform) PythonPath(envDir string) string {
	return filepath.Join(envDir, p.BinDir, "python"+p.ExeSuffix)
}

// PipPath returns the pip executable inside the environment at envDir.
func (p Platform) PipPath(envDir string) string {
	return filepath.Join(envDir, p.BinDir, "pip"+p.ExeSuffix)
}

// ActivateScript returns the activation entry point whose presence marks a
// usable environment: Scripts\activate.bat on Windows, bin/activate elsewhere.
func (p Platform) ActivateScript(envDir string) string {
	if p.IsWindows() {
		return filepath.Join(envDir, p.BinDir, "activate.bat")
	}
	return filepath.Join(envDir, p.BinDir, "activate")
}

// ActivationCommand returns the command a user types in shell s to
// reactivate the environment at envDir. An empty shell selects the
// platform default.
func (p Platform) ActivationCommand(envDir string, s Shell) (string, error) {
	if s == "" {
		s = p.DefaultShell()
	}
	if !p.SupportsShell(s) {
		return "", fmt.Errorf("shell %q cannot activate a %s environment", s, p.GOOS)
	}

	switch s {
	case ShellCmd:
		return quoteCmd(p.display(envDir, p.BinDir, "activate")), nil
	case ShellPowerShell:
		dir := p.display(envDir, p.BinDir, "Activate.ps1")
		if !isAbsDisplay(envDir) && !strings.HasPrefix(dir, ".") {
			dir = "." + p.Sep + dir
		}
		return "& " + quoteCmd(dir), nil
	case ShellFish:
		return "source " + quoteSh(p.display(envDir, p.BinDir, "activate.fish")), nil
	case ShellCsh:
		return "source " + quoteSh(p.display(envDir, p.BinDir, "activate.csh")), nil
	default:
		// Git Bash on Windows reads Scripts/activate with forward slashes.
		parts := []string{envDir, p.BinDir, "activate"}
		return "source " + quoteSh(joinDisplay("/", parts...)), nil
	}
}

// display joins elements with the platform separator for printing.
func (p Platform) display(elem ...string) string {
	return joinDisplay(p.Sep, elem...)
}

func joinDisplay(sep string, elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.ReplaceAll(e, `\`, "/")
		e = strings.TrimRight(e, "/")
		if e == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(e, "/", sep))
	}
	return strings.Join(parts, sep)
}

// isAbsDisplay treats both POSIX and drive-letter paths as absolute so the
// Windows layout can be rendered on any host.
func isAbsDisplay(path string) bool {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return true
	}
	return len(path) >= 2 && path[1] == ':'
}

func quoteSh(s string) string {
	if strings.ContainsAny(s, " \t'\"$") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

func quoteCmd(s string) string {
	if strings.ContainsAny(s, " \t&") {
		return `"` + s + `"`
	}
	return s
}

// CompletionMessage is the line printed after a run, naming the
// reactivation command.
func CompletionMessage(activation string) string {
	return "Setup complete. To activate the environment run: " + activation
}
