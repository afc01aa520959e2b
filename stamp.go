package venvboot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// StampFile is the name of the record left inside an environment after a
// successful install.
const StampFile = ".venvboot"

// Stamp records what the last successful run installed. A later run with
// the same manifest hash and interpreter version skips pip.
type Stamp struct {
	ManifestHash  string    `msgpack:"manifest_sha256"`
	PythonVersion string    `msgpack:"python_version"`
	Requirements  []string  `msgpack:"requirements"`
	InstalledAt   time.Time `msgpack:"installed_at"`
	ToolVersion   string    `msgpack:"tool_version"`
}

// StampPath returns the stamp location for the environment at envDir.
func StampPath(envDir string) string {
	return filepath.Join(envDir, StampFile)
}

// ReadStamp loads the stamp of the environment at envDir. It returns
// (nil, nil) when there is none.
func ReadStamp(envDir string) (*Stamp, error) {
	data, err := os.ReadFile(StampPath(envDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading stamp: %w", err)
	}
	var s Stamp
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error decoding stamp: %w", err)
	}
	return &s, nil
}

// WriteStamp stores s in the environment at envDir. The file is replaced
// atomically so an interrupted run never leaves a partial stamp.
func WriteStamp(envDir string, s *Stamp) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("error encoding stamp: %w", err)
	}
	tmp, err := os.CreateTemp(envDir, StampFile+".*")
	if err != nil {
		return fmt.Errorf("error writing stamp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing stamp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing stamp: %w", err)
	}
	if err := os.Rename(tmp.Name(), StampPath(envDir)); err != nil {
		return fmt.Errorf("error writing stamp: %w", err)
	}
	return nil
}

// Matches reports whether the stamp was written for manifest m and an
// interpreter of version v.
func (s *Stamp) Matches(m *Manifest, v Version) bool {
	return s != nil && s.ManifestHash == m.Hash() && s.PythonVersion == v.String()
}

// RemoveStamp deletes the stamp, if any.
func RemoveStamp(envDir string) error {
	err := os.Remove(StampPath(envDir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
