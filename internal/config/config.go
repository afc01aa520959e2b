// Package config loads venvboot settings from defaults, an optional YAML
// file and VENVBOOT_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/richinsley/venvboot"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = ".venvboot.yaml"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "VENVBOOT_"

// Config mirrors venvboot.Options in a form that YAML and environment
// variables can fill.
type Config struct {
	EnvDir    string `yaml:"env_dir" env:"ENV_DIR"`
	Manifest  string `yaml:"manifest" env:"MANIFEST"`
	Python    string `yaml:"python" env:"PYTHON"`
	MinPython string `yaml:"min_python" env:"MIN_PYTHON"`

	// Shell is read from VENVBOOT_SHELL_KIND; VENVBOOT_SHELL would be too
	// easily confused with $SHELL.
	Shell string `yaml:"shell" env:"SHELL_KIND"`

	IndexURL      string `yaml:"index_url" env:"INDEX_URL"`
	ExtraIndexURL string `yaml:"extra_index_url" env:"EXTRA_INDEX_URL"`
	NoCache       bool   `yaml:"no_cache" env:"NO_CACHE"`

	SystemSitePackages bool   `yaml:"system_site_packages" env:"SYSTEM_SITE_PACKAGES"`
	UpgradeDeps        bool   `yaml:"upgrade_deps" env:"UPGRADE_DEPS"`
	Prompt             string `yaml:"prompt" env:"PROMPT"`

	Verify          bool `yaml:"verify" env:"VERIFY"`
	ContinueOnError bool `yaml:"continue_on_error" env:"CONTINUE_ON_ERROR"`
}

// Default returns the settings setup.sh and setup.bat used.
func Default() Config {
	return Config{
		EnvDir:   venvboot.DefaultEnvDir,
		Manifest: venvboot.DefaultManifest,
	}
}

// Load builds the configuration. An empty path reads DefaultFile if it
// exists; a named file must exist. environ overrides the process
// environment when non-nil, which tests use.
func Load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	file, required := path, true
	if file == "" {
		file, required = DefaultFile, false
	}
	if err := cfg.readFile(file, required); err != nil {
		return Config{}, err
	}

	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks fields that have a fixed vocabulary or format.
func (c Config) Validate() error {
	if c.EnvDir == "" {
		return errors.New("env_dir must not be empty")
	}
	if c.Manifest == "" {
		return errors.New("manifest must not be empty")
	}
	if _, err := venvboot.ParseShell(c.Shell); err != nil {
		return err
	}
	if c.MinPython != "" {
		if _, err := venvboot.ParseVersion(c.MinPython); err != nil {
			return fmt.Errorf("min_python: %w", err)
		}
	}
	return nil
}

// Options converts the configuration into bootstrap options.
func (c Config) Options() venvboot.Options {
	shell, _ := venvboot.ParseShell(c.Shell)
	return venvboot.Options{
		EnvDir:    c.EnvDir,
		Manifest:  c.Manifest,
		Python:    c.Python,
		MinPython: c.MinPython,
		Shell:     shell,
		Venv: venvboot.VenvOptions{
			SystemSitePackages: c.SystemSitePackages,
			UpgradeDeps:        c.UpgradeDeps,
			Prompt:             c.Prompt,
		},
		Pip: venvboot.PipOptions{
			IndexURL:      c.IndexURL,
			ExtraIndexURL: c.ExtraIndexURL,
			NoCache:       c.NoCache,
		},
		Verify:          c.Verify,
		ContinueOnError: c.ContinueOnError,
	}
}
