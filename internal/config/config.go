// Package config loads a project's vmc.toml build manifest: the target
// backend, format list and cache switch a bare `vmc build` invocation
// falls back to when the CLI flags don't already say.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// manifestName is the file DiscoverManifest walks parent directories
// looking for, the same walk-up-to-root pattern the source tooling uses
// for its own project manifest.
const manifestName = "vmc.toml"

// Manifest is a loaded vmc.toml, plus the location it was found at.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config is vmc.toml's schema.
type Config struct {
	Package PackageConfig `toml:"package"`
	Build   BuildConfig   `toml:"build"`
}

// PackageConfig names the module being built.
type PackageConfig struct {
	Name string `toml:"name"`
}

// BuildConfig carries the defaults `vmc build` uses when its flags are
// left unset: target, emitted formats, and whether the on-disk cache is
// used. Entry is parsed but no command reads it.
type BuildConfig struct {
	Target string   `toml:"target"`
	Emit   []string `toml:"emit"`
	Entry  string   `toml:"entry"`
	Cache  bool     `toml:"cache"`
}

// DiscoverManifest walks upward from startDir looking for vmc.toml,
// returning (nil, false, nil) if none is found before reaching the
// filesystem root.
func DiscoverManifest(startDir string) (*Manifest, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, false, fmt.Errorf("config: resolving start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := Load(candidate)
			if err != nil {
				return nil, true, err
			}
			return &Manifest{Path: candidate, Root: dir, Config: cfg}, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("config: stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

// Load parses and validates the vmc.toml file at path.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: parsing TOML: %w", path, err)
	}
	if !meta.IsDefined("package") || strings.TrimSpace(cfg.Package.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if meta.IsDefined("build", "target") && strings.TrimSpace(cfg.Build.Target) == "" {
		return Config{}, fmt.Errorf("%s: [build].target is defined but empty", path)
	}
	return cfg, nil
}
