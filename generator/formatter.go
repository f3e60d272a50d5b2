package generator

import (
	"fmt"
	"strings"

	"github.com/chazu/casegen/defs"
)

// Formatter accumulates indented C text.
type Formatter struct {
	sb     strings.Builder
	prefix string
}

// NewFormatter returns a formatter whose lines start with indent spaces.
func NewFormatter(indent int) *Formatter {
	return &Formatter{prefix: strings.Repeat(" ", indent)}
}

// Emit writes one line at the current indentation. An empty line is
// written without trailing spaces.
func (f *Formatter) Emit(line string) {
	if line != "" {
		f.sb.WriteString(f.prefix)
		f.sb.WriteString(line)
	}
	f.sb.WriteByte('\n')
}

// Emitf formats and writes one line.
func (f *Formatter) Emitf(format string, args ...interface{}) {
	f.Emit(fmt.Sprintf(format, args...))
}

// Indent runs fn with the indentation increased by four spaces.
func (f *Formatter) Indent(fn func()) {
	saved := f.prefix
	f.prefix += "    "
	fn()
	f.prefix = saved
}

// Block writes head followed by " {", the indented output of fn, and the
// closing brace. An empty head opens a bare block.
func (f *Formatter) Block(head string, fn func()) {
	if head == "" {
		f.Emit("{")
	} else {
		f.Emit(head + " {")
	}
	f.Indent(fn)
	f.Emit("}")
}

// Declare writes the declaration of the variable for eff, initialized to
// init when it is not empty.
func (f *Formatter) Declare(eff *defs.StackEffect, init string) {
	decl := declType(eff)
	if !strings.HasSuffix(decl, "*") {
		decl += " "
	}
	decl += eff.Name
	if init != "" {
		decl += " = " + init
	}
	f.Emit(decl + ";")
}

// Assign writes dst = src;.
func (f *Formatter) Assign(dst, src string) {
	f.Emit(dst + " = " + src + ";")
}

// String returns the text written so far.
func (f *Formatter) String() string {
	return f.sb.String()
}

// declType is the C type of the variable bound to eff. An array effect is
// bound to a pointer to its first element.
func declType(eff *defs.StackEffect) string {
	if eff.Size != "" {
		return eff.Type + "*"
	}
	return eff.Type
}
