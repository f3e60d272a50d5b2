package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/casegen/defs"
	"github.com/chazu/casegen/generator"
	"github.com/chazu/casegen/manifest"
	"github.com/chazu/casegen/metadata"
)

var log = commonlog.GetLogger("casegen")

// config holds the command-line settings; empty fields defer to the
// manifest.
type config struct {
	input    string
	output   string
	metadata string
	manifest string
	dir      string // where to search for casegen.toml; "" is the working directory
}

// run loads the definitions, generates the cases and writes the artifacts.
// Nothing is written unless generation succeeds.
func run(cfg config) error {
	m, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	input := m.InputPath()
	source := m.Generator.Input
	if cfg.input != "" {
		input, source = cfg.input, cfg.input
	}
	output := m.OutputPath()
	if cfg.output != "" {
		output = cfg.output
	}
	metaPath := m.MetadataPath()
	if cfg.metadata != "" {
		metaPath = cfg.metadata
	}
	if source == "-" {
		source = "<stdin>"
	}

	d, err := defs.Load(input)
	if err != nil {
		return err
	}
	if err := defs.Validate(d); err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	log.Noticef("Read %d instructions, %d supers, and %d families from %s",
		len(d.Instructions), len(d.Supers), len(d.Families), input)

	opts := m.Options()
	opts.Source = source
	res, err := generator.Generate(d, opts)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Warning(w)
	}

	artifacts := []artifact{{path: output, data: []byte(res.Code)}}
	if metaPath != "" {
		data, err := metadata.Marshal(res.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		artifacts = append(artifacts, artifact{path: metaPath, data: data})
	}
	if err := writeArtifacts(artifacts...); err != nil {
		return err
	}
	if metaPath != "" {
		log.Infof("Wrote metadata for %d opcodes to %s", len(res.Metadata.Opcodes), metaPath)
	}
	log.Noticef("Wrote %d instructions to %s", res.Instructions+res.Supers, output)
	return nil
}

// loadManifest returns the explicitly named manifest, else the nearest
// one, else the defaults.
func loadManifest(cfg config) (*manifest.Manifest, error) {
	if cfg.manifest != "" {
		dir := cfg.manifest
		if filepath.Base(dir) == manifest.FileName {
			dir = filepath.Dir(dir)
		}
		return manifest.Load(dir)
	}

	start := cfg.dir
	if start == "" {
		start = "."
	}
	m, err := manifest.FindAndLoad(start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
		m.Dir = start
	}
	return m, nil
}

// artifact is one output file of a run.
type artifact struct {
	path string // "-" is standard output
	data []byte
}

// writeArtifact replaces path with data. See writeArtifacts.
func writeArtifact(path string, data []byte) error {
	return writeArtifacts(artifact{path: path, data: data})
}

// writeArtifacts replaces each artifact's file through a temporary file in
// the same directory, so readers never see a partial file. Every temporary
// file is written before the first rename; a failure while staging leaves
// all destinations untouched.
func writeArtifacts(arts ...artifact) error {
	staged := make([]string, len(arts))
	defer func() {
		for _, name := range staged {
			if name != "" {
				os.Remove(name)
			}
		}
	}()

	for i, a := range arts {
		if a.path == "-" {
			continue
		}
		name, err := stage(a)
		if err != nil {
			return err
		}
		staged[i] = name
	}

	for i, a := range arts {
		if a.path == "-" {
			if _, err := os.Stdout.Write(a.data); err != nil {
				return err
			}
			continue
		}
		if err := os.Rename(staged[i], a.path); err != nil {
			return fmt.Errorf("cannot write %s: %w", a.path, err)
		}
		staged[i] = ""
	}
	return nil
}

// stage writes a's data to a new temporary file beside a.path and returns
// its name.
func stage(a artifact) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(a.path), "."+filepath.Base(a.path)+".*")
	if err != nil {
		return "", fmt.Errorf("cannot write %s: %w", a.path, err)
	}
	if _, err := tmp.Write(a.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cannot write %s: %w", a.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cannot write %s: %w", a.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cannot write %s: %w", a.path, err)
	}
	return tmp.Name(), nil
}
