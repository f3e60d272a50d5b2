// Package manifest handles casegen.toml generator configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/casegen/generator"
)

// FileName is the name of the configuration file.
const FileName = "casegen.toml"

// Manifest represents a casegen.toml configuration.
type Manifest struct {
	Generator Generator `toml:"generator"`
	Emit      Emit      `toml:"emit"`

	// Dir is the directory containing the casegen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Generator configures input and output locations, relative to Dir.
// "-" names standard input or output.
type Generator struct {
	Input    string `toml:"input"`
	Output   string `toml:"output"`
	Metadata string `toml:"metadata"`
}

// Emit configures the generated text.
type Emit struct {
	Indent       int      `toml:"indent"`
	DefaultType  string   `toml:"default-type"`
	ExitPrefixes []string `toml:"exit-prefixes"`
	ErrorPrefix  string   `toml:"error-prefix"`
}

// Default returns the configuration used when no casegen.toml exists.
func Default() *Manifest {
	opts := generator.DefaultOptions()
	return &Manifest{
		Generator: Generator{
			Input:  "bytecodes.toml",
			Output: "generated_cases.c.h",
		},
		Emit: Emit{
			Indent:       opts.Indent,
			DefaultType:  opts.DefaultType,
			ExitPrefixes: opts.ExitPrefixes,
			ErrorPrefix:  opts.ErrorPrefix,
		},
		Dir: ".",
	}
}

// Load parses a casegen.toml file from the given directory. Settings it
// leaves out keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse error in %s: unknown key %q", path, undecoded[0].String())
	}
	if m.Emit.Indent < 0 {
		return nil, fmt.Errorf("%s: emit.indent must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a casegen.toml file,
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

// InputPath returns the path of the definitions file.
func (m *Manifest) InputPath() string {
	return m.resolve(m.Generator.Input)
}

// OutputPath returns the path of the generated file.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Generator.Output)
}

// MetadataPath returns the path of the metadata sidecar, or "" when none
// is configured.
func (m *Manifest) MetadataPath() string {
	return m.resolve(m.Generator.Metadata)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || p == "-" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Options returns the generator options the manifest describes.
func (m *Manifest) Options() generator.Options {
	return generator.Options{
		Source:       m.Generator.Input,
		Indent:       m.Emit.Indent,
		DefaultType:  m.Emit.DefaultType,
		ExitPrefixes: m.Emit.ExitPrefixes,
		ErrorPrefix:  m.Emit.ErrorPrefix,
	}
}
