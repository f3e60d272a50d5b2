// Package generator compiles resolved instruction definitions into the
// case bodies of a bytecode interpreter's dispatch loop.
package generator

import (
	"slices"

	"github.com/chazu/casegen/defs"
)

// Options control the shape of the emitted text.
type Options struct {
	// Source is the input name recorded in the generated header.
	Source string

	// Indent is the number of spaces before each TARGET label. Statements
	// inside a case are indented four more.
	Indent int

	// DefaultType is the slot type of stack effects that declare none.
	DefaultType string

	// ExitPrefixes are the statement prefixes that end a body without
	// falling through to the stack bookkeeping.
	ExitPrefixes []string

	// ErrorPrefix starts the label ERROR_IF jumps to when inputs are still
	// on the stack, as in pop_2_error.
	ErrorPrefix string
}

// DefaultOptions returns the options matching the classic dispatch loop.
func DefaultOptions() Options {
	return Options{
		Indent:       8,
		DefaultType:  defs.DefaultType,
		ExitPrefixes: []string{"goto ", "return ", "DISPATCH", "GO_TO_", "Py_UNREACHABLE()"},
		ErrorPrefix:  "pop_",
	}
}

// withDefaults fills the empty fields of o from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DefaultType == "" {
		o.DefaultType = def.DefaultType
	}
	if len(o.ExitPrefixes) == 0 {
		o.ExitPrefixes = def.ExitPrefixes
	} else {
		o.ExitPrefixes = slices.Clone(o.ExitPrefixes)
	}
	if o.ErrorPrefix == "" {
		o.ErrorPrefix = def.ErrorPrefix
	}
	return o
}
