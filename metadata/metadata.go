// Package metadata describes the generated opcodes for tools that need
// their stack effects without parsing the emitted C: disassemblers,
// stack depth checkers and the like. Tables travel as canonical CBOR.
package metadata

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is the format version written into every table.
const Version = 1

// Opcode kinds.
const (
	KindInst  = "inst"
	KindSuper = "super"
)

// Opcode summarizes one generated case.
type Opcode struct {
	Name       string   `cbor:"1,keyasint"`
	Kind       string   `cbor:"2,keyasint"`
	Popped     string   `cbor:"3,keyasint,omitempty"` // cells popped, e.g. "2" or "1 + oparg"
	Pushed     string   `cbor:"4,keyasint,omitempty"`
	CacheWords int      `cbor:"5,keyasint,omitempty"`
	Predicted  bool     `cbor:"6,keyasint,omitempty"`
	Family     string   `cbor:"7,keyasint,omitempty"`
	Components []string `cbor:"8,keyasint,omitempty"`
}

// Table is the metadata of one generated file, in emission order.
type Table struct {
	Version int      `cbor:"1,keyasint"`
	Source  string   `cbor:"2,keyasint,omitempty"`
	Opcodes []Opcode `cbor:"3,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("metadata: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Table to CBOR bytes.
func Marshal(t *Table) ([]byte, error) {
	return cborEncMode.Marshal(t)
}

// Unmarshal deserializes a Table from CBOR bytes. Every superinstruction
// component must name an instruction of the same table.
func Unmarshal(data []byte) (*Table, error) {
	var t Table
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("metadata: unmarshal table: %w", err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("metadata: unsupported version %d", t.Version)
	}
	for _, op := range t.Opcodes {
		for _, name := range op.Components {
			if c, ok := t.Lookup(name); !ok || c.Kind != KindInst {
				return nil, fmt.Errorf("metadata: %s: unknown component %s", op.Name, name)
			}
		}
	}
	return &t, nil
}

// Lookup returns the opcode with the given name.
func (t *Table) Lookup(name string) (*Opcode, bool) {
	for i := range t.Opcodes {
		if t.Opcodes[i].Name == name {
			return &t.Opcodes[i], true
		}
	}
	return nil, false
}
