//go:build !windows

package venvboot

import "golang.org/x/sys/unix"

// isDirWritable reports whether the current user may create entries in dir.
func isDirWritable(dir string) bool {
	return unix.Access(dir, unix.W_OK|unix.X_OK) == nil
}
