//go:build !windows

package venvboot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDirWritable(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, isDirWritable(dir))
	assert.False(t, isDirWritable(filepath.Join(dir, "missing")))

	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(locked, 0o555))
	assert.False(t, isDirWritable(locked))
}
