//go:build windows

package venvboot

import (
	"os"

	"golang.org/x/sys/windows"
)

// isDirWritable reports whether the current user may create files in dir.
// FILE_ATTRIBUTE_READONLY is not consulted: Windows ignores it on
// directories and Explorer sets it on customized folders.
func isDirWritable(dir string) bool {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil || attrs&windows.FILE_ATTRIBUTE_DIRECTORY == 0 {
		return false
	}
	f, err := os.CreateTemp(dir, ".venvboot-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
