package venvboot

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeze(t *testing.T) {
	r := newFakeRunner()
	r.frozen = []string{"flask==3.0.0", "numpy==1.26.0"}
	env := NewEnvironment(HostPlatform(), "/srv/geo")
	env.PythonVersion = Version{3, 11, 4}
	env.PipVersion = Version{23, 2, 1}

	spec, err := env.Freeze(context.Background(), r, nil)
	require.NoError(t, err)
	assert.Equal(t, &FreezeSpec{
		Name:          "geo",
		PythonVersion: "3.11",
		PipVersion:    "23.2.1",
		Packages:      []string{"flask==3.0.0", "numpy==1.26.0"},
	}, spec)

	var buf bytes.Buffer
	require.NoError(t, spec.WriteJSON(&buf))
	var decoded FreezeSpec
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *spec, decoded)

	path := filepath.Join(t.TempDir(), "env.json")
	require.NoError(t, spec.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}

func TestFreezeEmptyEnvironment(t *testing.T) {
	env := NewEnvironment(HostPlatform(), "/srv/empty")

	spec, err := env.Freeze(context.Background(), newFakeRunner(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, spec.WriteJSON(&buf))
	assert.JSONEq(t, `{"name":"empty","packages":[]}`, buf.String())
}
