// Package defs holds instruction definition records and the resolved model
// the generator compiles.
package defs

// Unused is the effect name for a slot whose value is discarded.
const Unused = "unused"

// DefaultType is the element type of a stack slot that declares none.
const DefaultType = "PyObject *"

// StackEffect is a named logical stack slot.
//
// A slot with a Size denotes a contiguous run of that many cells (an array
// effect). A slot with a Cond is present only when the condition holds; an
// absent slot occupies no cells. A slot never carries both.
type StackEffect struct {
	Name string
	Type string
	Cond string
	Size string
}

// IsUnused reports whether the slot's value is discarded.
func (e *StackEffect) IsUnused() bool {
	return e.Name == Unused
}

// IsScalar reports whether the slot is exactly one unconditional cell.
func (e *StackEffect) IsScalar() bool {
	return e.Cond == "" && e.Size == ""
}

// SameShape reports whether e and o always occupy the same number of cells.
func (e *StackEffect) SameShape(o *StackEffect) bool {
	return e.Cond == o.Cond && e.Size == o.Size
}

// CacheEffect is an inline operand read from the code units following the
// opcode.
type CacheEffect struct {
	Name string
	Size int // in 16-bit code units
}

// Bits returns the width of the value read for the effect.
func (c *CacheEffect) Bits() int {
	return c.Size * 16
}

// IsUnused reports whether the operand is skipped without being read.
func (c *CacheEffect) IsUnused() bool {
	return c.Name == Unused
}

// Instruction is a resolved instruction definition.
type Instruction struct {
	Name    string
	Stack   []*StackEffect // stack inputs, bottom of stack first
	Cache   []*CacheEffect // cache inputs, in read order
	Outputs []*StackEffect // pushed bottom first
	Body    string
}

// CacheWords returns the number of code units the cache effects occupy.
func (in *Instruction) CacheWords() int {
	n := 0
	for _, c := range in.Cache {
		n += c.Size
	}
	return n
}

// Input returns the named stack input, or nil.
func (in *Instruction) Input(name string) *StackEffect {
	if name == Unused {
		return nil
	}
	for _, eff := range in.Stack {
		if eff.Name == name {
			return eff
		}
	}
	return nil
}

// Super is a resolved superinstruction: components fused into one dispatch
// unit, in execution order.
type Super struct {
	Name       string
	Components []*Instruction
}

// Family groups an instruction with its specializations.
type Family struct {
	Name    string
	Members []*Instruction
}
