package defs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Format is an encoding of a Definitions record set.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatOf picks the format from a file extension. Standard input ("-") is
// read as TOML.
func FormatOf(path string) (Format, error) {
	if path == "-" {
		return FormatTOML, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return 0, fmt.Errorf("cannot infer definitions format of %s (want .toml, .yaml, .yml or .cbor)", path)
}

// Load reads a record set from path; "-" reads standard input.
func Load(path string) (*Definitions, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	d, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return d, nil
}

// Decode parses a record set. Unknown keys are rejected for the text formats.
func Decode(data []byte, format Format) (*Definitions, error) {
	var d Definitions
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &d)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatCBOR:
		if err := cbor.Unmarshal(data, &d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %v", format)
	}
	return &d, nil
}

// Encode writes the record set in the given format.
func Encode(d *Definitions, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(d); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatCBOR:
		em, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		return em.Marshal(d)
	}
	return nil, fmt.Errorf("unsupported format %v", format)
}
