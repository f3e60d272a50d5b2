package stacking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/casegen/defs"
)

// ErrFrozen is returned when merging effects that were not obtained from
// Copy or that were already merged into a follower.
var ErrFrozen = errors.New("effects are frozen")

// PeekEffect reads an input slot. Its offset is relative to the stack
// pointer on entry to the instruction.
type PeekEffect struct {
	StackOffset
	Dst *defs.StackEffect
}

// Location resolves the slot the input is read from.
func (p *PeekEffect) Location() Location {
	return p.locate(p.Dst)
}

// PokeEffect writes an output slot. Its offset is relative to the stack
// pointer on entry to the instruction; see Effects.StoreLocation for the
// slot after the stack adjustment.
type PokeEffect struct {
	StackOffset
	Src *defs.StackEffect
}

// Location resolves the output slot against the entry stack pointer.
func (p *PokeEffect) Location() Location {
	return p.locate(p.Src)
}

// CopyEffect is a value handed from one component of a superinstruction
// to the next without touching the stack.
type CopyEffect struct {
	Src *defs.StackEffect
	Dst *defs.StackEffect
}

// Effects is the stack traffic of one instruction, in execution order:
// copies from a fused predecessor, then peeks, then pokes.
type Effects struct {
	Instr  *defs.Instruction
	Copies []CopyEffect
	Peeks  []*PeekEffect // top of stack first
	Pokes  []*PokeEffect // bottom of the new stack first
	frozen bool
}

// New builds the peeks and pokes of in. The result is frozen: only a
// Copy of it can take part in a merge.
func New(in *defs.Instruction) *Effects {
	e := &Effects{Instr: in, frozen: true}
	for i := len(in.Stack) - 1; i >= 0; i-- {
		peek := &PeekEffect{Dst: in.Stack[i]}
		for _, prev := range e.Peeks {
			peek.Deeper(prev.Dst)
		}
		e.Peeks = append(e.Peeks, peek)
	}
	for _, out := range in.Outputs {
		poke := &PokeEffect{Src: out}
		for _, peek := range e.Peeks {
			poke.Deeper(peek.Dst)
		}
		for _, prev := range e.Pokes {
			poke.Higher(prev.Src)
		}
		poke.Higher(out)
		e.Pokes = append(e.Pokes, poke)
	}
	return e
}

// Copy returns freshly built, mergeable effects for the same instruction.
func (e *Effects) Copy() *Effects {
	c := New(e.Instr)
	c.frozen = false
	return c
}

// Frozen reports whether e can no longer be merged forward.
func (e *Effects) Frozen() bool {
	return e.frozen
}

// net returns the displacement from the entry stack pointer to the stack
// pointer after the instruction: every remaining peek is popped and every
// remaining poke is pushed.
func (e *Effects) net() *StackOffset {
	var o StackOffset
	for _, peek := range e.Peeks {
		o.Deeper(peek.Dst)
	}
	for _, poke := range e.Pokes {
		o.Higher(poke.Src)
	}
	return &o
}

// Adjustment returns the stack pointer movement the instruction performs
// after its body.
func (e *Effects) Adjustment() Adjustment {
	return e.net().adjustment()
}

// StoreLocation resolves the slot of poke relative to the stack pointer
// after the adjustment.
func (e *Effects) StoreLocation(poke *PokeEffect) Location {
	o := poke.StackOffset.Clone()
	for _, peek := range e.Peeks {
		o.Higher(peek.Dst)
	}
	for _, p := range e.Pokes {
		o.Deeper(p.Src)
	}
	return o.locate(poke.Src)
}

// Pending returns the inputs still on the stack while the body runs: the
// number of plain cells and the symbolic counts of sized or conditional
// inputs.
func (e *Effects) Pending() (int, []string) {
	n := 0
	var terms []string
	for _, peek := range e.Peeks {
		if text, ok := symbolic(peek.Dst); ok {
			terms = append(terms, text)
		} else {
			n++
		}
	}
	return n, terms
}

// AliasError reports a fusion that would use one name both as the source
// of a copy and as a variable the follower assigns.
type AliasError struct {
	Producer string
	Consumer string
	Names    []string
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("fusing %s into %s aliases %s", e.Producer, e.Consumer, strings.Join(e.Names, ", "))
}

// Merge elides the cells that e pushes last and follow pops first. Each
// such pair becomes a CopyEffect on follow; the remaining effects of
// follow are rebased so the elided cells no longer count. e is frozen
// afterwards.
func (e *Effects) Merge(follow *Effects) error {
	if e.frozen {
		return fmt.Errorf("%w: %s", ErrFrozen, e.Instr.Name)
	}
	if follow.frozen {
		return fmt.Errorf("%w: %s", ErrFrozen, follow.Instr.Name)
	}
	e.frozen = true

	sources := make(map[string]bool)
	dests := make(map[string]bool)
	for len(e.Pokes) > 0 && len(follow.Peeks) > 0 {
		poke := e.Pokes[len(e.Pokes)-1]
		peek := follow.Peeks[0]
		if !e.fusible(poke, peek) {
			break
		}
		e.Pokes = e.Pokes[:len(e.Pokes)-1]
		follow.Peeks = follow.Peeks[1:]
		for _, p := range follow.Peeks {
			p.Higher(peek.Dst)
		}
		for _, p := range follow.Pokes {
			p.Higher(peek.Dst)
		}

		src, dst := poke.Src, peek.Dst
		if !dst.IsUnused() {
			if dst.Name != src.Name {
				sources[src.Name] = true
			}
			dests[dst.Name] = true
		}
		follow.Copies = append(follow.Copies, CopyEffect{Src: src, Dst: dst})
	}

	for _, peek := range follow.Peeks {
		if !peek.Dst.IsUnused() {
			dests[peek.Dst.Name] = true
		}
	}
	for _, out := range follow.Instr.Outputs {
		if !out.IsUnused() {
			dests[out.Name] = true
		}
	}

	var clash []string
	for name := range sources {
		if dests[name] {
			clash = append(clash, name)
		}
	}
	if len(clash) > 0 {
		slices.Sort(clash)
		return &AliasError{Producer: e.Instr.Name, Consumer: follow.Instr.Name, Names: clash}
	}
	return nil
}

// fusible reports whether the value poke stores is exactly the cell peek
// loads next.
func (e *Effects) fusible(poke *PokeEffect, peek *PeekEffect) bool {
	src, dst := poke.Src, peek.Dst
	if !src.IsScalar() || !dst.IsScalar() || src.Type != dst.Type {
		return false
	}
	if src.IsUnused() && !dst.IsUnused() {
		return false
	}
	return e.StoreLocation(poke).Slot() == peek.Location().Slot()
}
