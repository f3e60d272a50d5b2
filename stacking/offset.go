// Package stacking resolves logical stack slots into stack_pointer
// arithmetic and fuses the stack traffic of adjacent instructions.
//
// Offsets are kept as two lists of effects relative to a reference point:
// deep holds effects between the reference and the addressed slot going
// down, high holds effects going up. Registering an effect on one side
// cancels an effect of the same shape on the other side, so a resolved
// offset only names the cells that actually separate a slot from the
// stack pointer.
package stacking

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/casegen/defs"
)

// StackOffset is the displacement of a slot from the stack pointer.
type StackOffset struct {
	deep []*defs.StackEffect
	high []*defs.StackEffect
}

// Deeper records that eff lies between the reference and the slot, below
// the reference.
func (o *StackOffset) Deeper(eff *defs.StackEffect) {
	if i := indexShape(o.high, eff); i >= 0 {
		o.high = slices.Delete(o.high, i, i+1)
		return
	}
	o.deep = append(o.deep, eff)
}

// Higher records that eff lies between the reference and the slot, above
// the reference.
func (o *StackOffset) Higher(eff *defs.StackEffect) {
	if i := indexShape(o.deep, eff); i >= 0 {
		o.deep = slices.Delete(o.deep, i, i+1)
		return
	}
	o.high = append(o.high, eff)
}

// Clone returns an independent copy of o.
func (o *StackOffset) Clone() *StackOffset {
	return &StackOffset{deep: slices.Clone(o.deep), high: slices.Clone(o.high)}
}

// isZero reports whether o names no displacement at all.
func (o *StackOffset) isZero() bool {
	return len(o.deep) == 0 && len(o.high) == 0
}

func indexShape(effs []*defs.StackEffect, eff *defs.StackEffect) int {
	for i, e := range effs {
		if e == eff {
			return i
		}
	}
	for i, e := range effs {
		if e.SameShape(eff) {
			return i
		}
	}
	return -1
}

// locate resolves the slot occupied by me, taking o as the displacement of
// the cell just above it.
func (o *StackOffset) locate(me *defs.StackEffect) Location {
	temp := o.Clone()
	temp.Deeper(me)
	return Location{
		terms: temp.terms(),
		cond:  me.Cond,
		array: me.Size != "",
	}
}

// term is one signed addend of an index expression.
type term struct {
	sign byte // '+' or '-'
	text string
}

// terms folds the plain cells into one constant and keeps symbolic sizes
// and conditions as separate addends. A negative constant leads, a
// positive one trails.
func (o *StackOffset) terms() []term {
	num := 0
	var out []term
	for _, eff := range o.deep {
		if text, ok := symbolic(eff); ok {
			out = append(out, term{'-', text})
		} else {
			num--
		}
	}
	for _, eff := range o.high {
		if text, ok := symbolic(eff); ok {
			out = append(out, term{'+', text})
		} else {
			num++
		}
	}
	if num < 0 {
		out = append([]term{{'-', strconv.Itoa(-num)}}, out...)
	} else if num > 0 {
		out = append(out, term{'+', strconv.Itoa(num)})
	}
	return out
}

// symbolic returns the cell count of a sized or conditional effect as an
// expression. Plain scalars report false.
func symbolic(eff *defs.StackEffect) (string, bool) {
	switch {
	case eff.Size != "":
		return maybeParenthesize(eff.Size), true
	case eff.Cond != "":
		return "(" + parenthesizeCond(eff.Cond) + " ? 1 : 0)", true
	}
	return "", false
}

// joinTerms renders terms with spaces around binary operators but none
// after a leading unary minus.
func joinTerms(terms []term) string {
	var sb strings.Builder
	for _, t := range terms {
		switch {
		case sb.Len() > 0:
			sb.WriteByte(' ')
			sb.WriteByte(t.sign)
			sb.WriteByte(' ')
		case t.sign == '-':
			sb.WriteByte('-')
		}
		sb.WriteString(t.text)
	}
	return sb.String()
}

// parenthesizeCond wraps a condition that is itself a conditional
// expression.
func parenthesizeCond(cond string) string {
	if strings.Contains(cond, "?") {
		return "(" + cond + ")"
	}
	return cond
}

// maybeParenthesize leaves identifiers, numbers and products of them
// alone and wraps anything else.
func maybeParenthesize(expr string) string {
	for _, r := range expr {
		if r != ' ' && r != '*' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "(" + expr + ")"
		}
	}
	return expr
}

// Location is a resolved slot.
type Location struct {
	terms []term
	cond  string
	array bool
}

// Index returns the index expression relative to stack_pointer.
func (l Location) Index() string {
	if len(l.terms) == 0 {
		return "0"
	}
	return joinTerms(l.terms)
}

// IsArray reports whether the location is the start address of a run of
// cells rather than a single cell.
func (l Location) IsArray() bool {
	return l.array
}

// Slot returns the lvalue for the location: an indexed access for a cell,
// or the start address for an array.
func (l Location) Slot() string {
	if l.array {
		return joinTerms(append([]term{{'+', "stack_pointer"}}, l.terms...))
	}
	return "stack_pointer[" + l.Index() + "]"
}

// Expr returns the expression that reads the location. A conditional cell
// reads as NULL when its condition is false.
func (l Location) Expr() string {
	slot := l.Slot()
	if l.cond != "" && !l.array {
		return parenthesizeCond(l.cond) + " ? " + slot + " : NULL"
	}
	return slot
}

// Adjustment is the net stack pointer movement of an instruction.
type Adjustment struct {
	Const  int      // plain cells; positive grows the stack
	Shrink []string // symbolic cell counts removed
	Grow   []string // symbolic cell counts added
}

// IsZero reports whether the adjustment moves nothing.
func (a Adjustment) IsZero() bool {
	return a.Const == 0 && len(a.Shrink) == 0 && len(a.Grow) == 0
}

// Statements returns the STACK_GROW / STACK_SHRINK lines realizing a.
// Every shrink comes before any grow, so the stack never rises above its
// final height in between.
func (a Adjustment) Statements() []string {
	var out []string
	if a.Const < 0 {
		out = append(out, "STACK_SHRINK("+strconv.Itoa(-a.Const)+");")
	}
	for _, t := range a.Shrink {
		out = append(out, "STACK_SHRINK("+t+");")
	}
	if a.Const > 0 {
		out = append(out, "STACK_GROW("+strconv.Itoa(a.Const)+");")
	}
	for _, t := range a.Grow {
		out = append(out, "STACK_GROW("+t+");")
	}
	return out
}

// adjustment reads the net displacement recorded in o. Effects on the
// deep side were popped, effects on the high side were pushed.
func (o *StackOffset) adjustment() Adjustment {
	var a Adjustment
	for _, eff := range o.deep {
		if text, ok := symbolic(eff); ok {
			a.Shrink = append(a.Shrink, text)
		} else {
			a.Const--
		}
	}
	for _, eff := range o.high {
		if text, ok := symbolic(eff); ok {
			a.Grow = append(a.Grow, text)
		} else {
			a.Const++
		}
	}
	return a
}

// Count returns the number of cells effs occupy as an expression such as
// "2", "oparg" or "1 + oparg".
func Count(effs []*defs.StackEffect) string {
	num := 0
	var parts []string
	for _, eff := range effs {
		if text, ok := symbolic(eff); ok {
			parts = append(parts, text)
		} else {
			num++
		}
	}
	if num > 0 || len(parts) == 0 {
		parts = append([]string{strconv.Itoa(num)}, parts...)
	}
	return strings.Join(parts, " + ")
}
