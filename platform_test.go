package venvboot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationCommandDefaults(t *testing.T) {
	posix, err := PlatformFor("linux").ActivationCommand("venv", "")
	require.NoError(t, err)
	assert.Equal(t, "source venv/bin/activate", posix)

	win, err := PlatformFor("windows").ActivationCommand("venv", "")
	require.NoError(t, err)
	assert.Equal(t, `venv\Scripts\activate`, win)
}

func TestActivationCommandShells(t *testing.T) {
	linux := PlatformFor("linux")
	windows := PlatformFor("windows")

	tests := []struct {
		name  string
		p     Platform
		dir   string
		shell Shell
		want  string
	}{
		{"bash", linux, "venv", ShellBash, "source venv/bin/activate"},
		{"fish", linux, "venv", ShellFish, "source venv/bin/activate.fish"},
		{"csh", linux, ".venv", ShellCsh, "source .venv/bin/activate.csh"},
		{"pwsh on linux", linux, "venv", ShellPowerShell, "& ./venv/bin/Activate.ps1"},
		{"powershell", windows, "venv", ShellPowerShell, `& .\venv\Scripts\Activate.ps1`},
		{"git bash", windows, "venv", ShellBash, "source venv/Scripts/activate"},
		{"cmd absolute", windows, `C:\work\venv`, ShellCmd, `C:\work\venv\Scripts\activate`},
		{"cmd spaces", windows, `C:\my work\venv`, ShellCmd, `"C:\my work\venv\Scripts\activate"`},
		{"sh spaces", linux, "my env", ShellSh, "source 'my env/bin/activate'"},
		{"sh absolute", linux, "/srv/app/venv", ShellSh, "source /srv/app/venv/bin/activate"},
		{"trailing slash", linux, "venv/", ShellSh, "source venv/bin/activate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.ActivationCommand(tt.dir, tt.shell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActivationCommandUnsupportedShell(t *testing.T) {
	_, err := PlatformFor("linux").ActivationCommand("venv", ShellCmd)
	assert.Error(t, err)

	_, err = PlatformFor("windows").ActivationCommand("venv", ShellFish)
	assert.Error(t, err)
}

func TestParseShell(t *testing.T) {
	s, err := ParseShell(" PowerShell ")
	require.NoError(t, err)
	assert.Equal(t, ShellPowerShell, s)

	s, err = ParseShell("pwsh")
	require.NoError(t, err)
	assert.Equal(t, ShellPowerShell, s)

	s, err = ParseShell("")
	require.NoError(t, err)
	assert.Equal(t, Shell(""), s)

	_, err = ParseShell("tcsh")
	assert.Error(t, err)
}

func TestPlatformLayout(t *testing.T) {
	linux := PlatformFor("darwin")
	assert.Equal(t, filepath.Join("venv", "bin", "python"), linux.PythonPath("venv"))
	assert.Equal(t, filepath.Join("venv", "bin", "pip"), linux.PipPath("venv"))
	assert.Equal(t, filepath.Join("venv", "bin", "activate"), linux.ActivateScript("venv"))

	windows := PlatformFor("windows")
	assert.Equal(t, filepath.Join("venv", "Scripts", "python.exe"), windows.PythonPath("venv"))
	assert.Equal(t, filepath.Join("venv", "Scripts", "pip.exe"), windows.PipPath("venv"))
	assert.Equal(t, filepath.Join("venv", "Scripts", "activate.bat"), windows.ActivateScript("venv"))
}

func TestCompletionMessage(t *testing.T) {
	assert.Equal(t,
		"Setup complete. To activate the environment run: source venv/bin/activate",
		CompletionMessage("source venv/bin/activate"))
}
