package venvboot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivatePOSIX(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "venv")
	env := NewEnvironment(PlatformFor("linux"), dir)

	act, err := Activate(env, []string{
		"HOME=/home/me",
		"PATH=/usr/local/bin:/usr/bin",
		"PYTHONHOME=/opt/python",
		"VIRTUAL_ENV=/old/venv",
	})
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, act.VirtualEnv)
	assert.Equal(t, filepath.Join(abs, "bin"), act.BinPath)

	path, ok := act.Lookup("PATH")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(abs, "bin")+":/usr/local/bin:/usr/bin", path)

	venv, ok := act.Lookup("VIRTUAL_ENV")
	require.True(t, ok)
	assert.Equal(t, abs, venv)

	_, ok = act.Lookup("PYTHONHOME")
	assert.False(t, ok)

	home, ok := act.Lookup("HOME")
	require.True(t, ok)
	assert.Equal(t, "/home/me", home)
}

func TestActivateWindowsKeepsPathSpelling(t *testing.T) {
	env := NewEnvironment(PlatformFor("windows"), "venv")

	act, err := Activate(env, []string{`Path=C:\Windows`, `pythonhome=C:\Python311`})
	require.NoError(t, err)

	path, ok := act.Lookup("Path")
	require.True(t, ok)
	assert.Equal(t, act.BinPath+`;C:\Windows`, path)

	_, ok = act.Lookup("PATH")
	assert.False(t, ok)
	_, ok = act.Lookup("pythonhome")
	assert.False(t, ok)
}

func TestActivateEmptyPath(t *testing.T) {
	env := NewEnvironment(PlatformFor("linux"), "venv")

	act, err := Activate(env, nil)
	require.NoError(t, err)

	path, ok := act.Lookup("PATH")
	require.True(t, ok)
	assert.Equal(t, act.BinPath, path)
}
