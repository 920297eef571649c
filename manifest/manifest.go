// Package manifest handles lslc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"

	"github.com/chazu/lslc/compiler"
	"github.com/chazu/lslc/pkg/il"
	"github.com/chazu/lslc/pkg/image"
	"github.com/chazu/lslc/pkg/library"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "lslc.toml"

// Manifest represents an lslc.toml project configuration.
type Manifest struct {
	Compile CompileConfig `toml:"compile"`
	Library LibraryConfig `toml:"library"`
	Output  OutputConfig  `toml:"output"`
	Cache   CacheConfig   `toml:"cache"`

	// Dir is the directory containing the lslc.toml file (set at load time).
	Dir string `toml:"-"`
}

// CompileConfig selects the backend and its limits.
type CompileConfig struct {
	Memory     int    `toml:"memory"`
	Privileged bool   `toml:"privileged"`
	Backend    string `toml:"backend"`
}

// LibraryConfig points at a replacement library table.
type LibraryConfig struct {
	File string `toml:"file"`
}

// OutputConfig names the files a compile writes. Empty names are skipped.
type OutputConfig struct {
	Image   string `toml:"image"`
	Asm     string `toml:"asm"`
	Pretty  string `toml:"pretty"`
	IL      string `toml:"il"`
	Symbols string `toml:"symbols"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no lslc.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses an lslc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an lslc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Compile.Memory == 0 {
		m.Compile.Memory = image.DefaultMemory
	}
	if m.Compile.Backend == "" {
		m.Compile.Backend = "lso"
	}
}

// ApplyEnv overrides settings from LSLC_MEMORY, LSLC_PRIVILEGED, LSLC_BACKEND
// and LSLC_CACHE. The environment is re-read on every call.
func (m *Manifest) ApplyEnv() error {
	env.Load()
	m.Compile.Memory = env.Int("LSLC_MEMORY", m.Compile.Memory)
	if env.Has("LSLC_PRIVILEGED") {
		m.Compile.Privileged = env.Bool("LSLC_PRIVILEGED")
	}
	m.Compile.Backend = env.Str("LSLC_BACKEND", m.Compile.Backend)
	if env.Has("LSLC_CACHE") {
		m.Cache.Enabled = true
		m.Cache.Path = env.Str("LSLC_CACHE")
	}
	return m.Validate()
}

// Validate checks settings that Load cannot enforce through types.
func (m *Manifest) Validate() error {
	switch m.Compile.Backend {
	case "lso", "il":
	default:
		return fmt.Errorf("unknown backend %q (want lso or il)", m.Compile.Backend)
	}
	if m.Compile.Memory <= image.HeaderSize {
		return fmt.Errorf("memory %d is smaller than the image header", m.Compile.Memory)
	}
	return nil
}

// resolve makes a configured path absolute against the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// LibraryPath returns the absolute library table path, or "" for the built-in table.
func (m *Manifest) LibraryPath() string {
	return m.resolve(m.Library.File)
}

// CachePath returns the absolute cache database path, or "" for the default location.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// OutputPath returns the absolute path configured for an output kind
// ("image", "asm", "pretty", "il" or "symbols"), or "" when that output is off.
func (m *Manifest) OutputPath(kind string) string {
	switch kind {
	case "image":
		return m.resolve(m.Output.Image)
	case "asm":
		return m.resolve(m.Output.Asm)
	case "pretty":
		return m.resolve(m.Output.Pretty)
	case "il":
		return m.resolve(m.Output.IL)
	case "symbols":
		return m.resolve(m.Output.Symbols)
	}
	return ""
}

// CompileOptions builds compiler options from the manifest, loading the
// library table when one is configured.
func (m *Manifest) CompileOptions() (compiler.Options, error) {
	opts := compiler.Options{
		Privileged: m.Compile.Privileged,
		Memory:     m.Compile.Memory,
	}
	if path := m.LibraryPath(); path != "" {
		lib, err := library.LoadFile(path)
		if err != nil {
			return compiler.Options{}, err
		}
		opts.Library = lib
	}
	switch m.Compile.Backend {
	case "il":
		opts.Backend = il.Backend{}
	default:
		opts.Backend = image.Backend{Memory: m.Compile.Memory}
	}
	return opts, nil
}
