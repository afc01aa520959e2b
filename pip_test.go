package venvboot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipFreeze(t *testing.T) {
	r := newFakeRunner()
	r.frozen = []string{
		"flask==3.0.0",
		"localpkg @ file:///home/dev/vendor/localpkg",
		"# Editable Git install with no remote (geo-utils==0.1)",
		"-e git+https://github.com/example/geo.git@abc123#egg=geo_utils",
		"",
	}
	env := NewEnvironment(HostPlatform(), "/v")
	act := &Activation{Env: []string{"VIRTUAL_ENV=/v"}}

	pkgs, err := env.PipFreeze(context.Background(), r, act)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"flask==3.0.0",
		"localpkg",
		"-e git+https://github.com/example/geo.git@abc123#egg=geo_utils",
	}, pkgs)

	calls := r.callsWith("freeze")
	require.Len(t, calls, 1)
	assert.Equal(t, act.Env, calls[0].Env)
}

func TestPipList(t *testing.T) {
	r := newFakeRunner()
	r.installed = []InstalledPackage{{Name: "Flask", Version: "3.0.0"}}
	env := NewEnvironment(HostPlatform(), "/v")

	pkgs, err := env.PipList(context.Background(), r, nil)
	require.NoError(t, err)
	assert.Equal(t, r.installed, pkgs)
	assert.Nil(t, r.callsWith("list")[0].Env)
}

func TestPipInstallRequirementsError(t *testing.T) {
	r := newFakeRunner()
	r.installErr = &CommandError{Path: "pip", ExitCode: 1}
	env := NewEnvironment(HostPlatform(), "/v")

	err := env.PipInstallRequirements(context.Background(), r, nil, "requirements.txt", PipOptions{}, nil)
	assert.ErrorContains(t, err, "error installing requirements")
	assert.Equal(t, 1, ExitCode(err))
}

func TestPipOptionsArgs(t *testing.T) {
	assert.Empty(t, PipOptions{}.args())
	assert.Equal(t,
		[]string{"--no-cache-dir", "--index-url", "https://a/simple", "--extra-index-url", "https://b/simple"},
		PipOptions{IndexURL: "https://a/simple", ExtraIndexURL: "https://b/simple", NoCache: true}.args())
}

func TestMissingRequirements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	writeFile(t, path, "Flask\nflask_cors>=4\nnumpy\nnumpy<2\n./vendor/localpkg\n")
	m, err := ParseManifest(path)
	require.NoError(t, err)

	missing := MissingRequirements(m, []InstalledPackage{
		{Name: "flask", Version: "3.0.0"},
		{Name: "Flask-CORS", Version: "4.0.0"},
	}, nil)
	require.Len(t, missing, 1)
	assert.Equal(t, "numpy", missing[0].Name)
	assert.Equal(t, 3, missing[0].Line)

	assert.Empty(t, MissingRequirements(m, []InstalledPackage{
		{Name: "flask"}, {Name: "flask.cors"}, {Name: "NumPy"},
	}, nil))
}

func TestMissingRequirementsMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	writeFile(t, path, "flask\npywin32; sys_platform == \"win32\"\nuvloop ; sys_platform != \"win32\"\n")
	m, err := ParseManifest(path)
	require.NoError(t, err)
	installed := []InstalledPackage{{Name: "Flask", Version: "3.0.0"}}

	missing := MissingRequirements(m, installed, map[string]bool{
		`sys_platform == "win32"`: false,
		`sys_platform != "win32"`: true,
	})
	require.Len(t, missing, 1)
	assert.Equal(t, "uvloop", missing[0].Name)

	// unevaluated markers are not held against the environment
	assert.Empty(t, MissingRequirements(m, installed, nil))
}

func TestCheckRequirementsEvaluatesMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	writeFile(t, path, "flask\npywin32; sys_platform == \"win32\"\nuvloop; sys_platform != \"win32\"\n")
	m, err := ParseManifest(path)
	require.NoError(t, err)

	r := newFakeRunner()
	r.installed = []InstalledPackage{{Name: "Flask", Version: "3.0.0"}}
	env := NewEnvironment(HostPlatform(), "/v")
	act := &Activation{Env: []string{"VIRTUAL_ENV=/v"}}

	missing, installed, err := env.CheckRequirements(context.Background(), r, act, m)
	require.NoError(t, err)
	assert.Len(t, installed, 1)
	require.Len(t, missing, 1)
	assert.Equal(t, "uvloop", missing[0].Name)

	evals := r.callsWith("-c")
	require.Len(t, evals, 1)
	assert.Equal(t, env.PythonPath, evals[0].Path)
	assert.Equal(t, []string{"-c", markerScript, `sys_platform == "win32"`, `sys_platform != "win32"`}, evals[0].Args)
	assert.Equal(t, act.Env, evals[0].Env)
}

func TestEvaluateMarkersWithoutMarkers(t *testing.T) {
	r := newFakeRunner()
	env := NewEnvironment(HostPlatform(), "/v")

	got, err := env.EvaluateMarkers(context.Background(), r, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, r.callCount())
}
