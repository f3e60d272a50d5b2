package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/casegen/body"
	"github.com/chazu/casegen/defs"
	"github.com/chazu/casegen/stacking"
)

// writer emits the cases of one generated file.
type writer struct {
	a   *Analyzer
	out *Formatter
}

// writeHeader marks the file as generated.
func (w *writer) writeHeader() {
	if src := w.a.opts.Source; src != "" {
		w.out.sb.WriteString("// This file is generated by casegen from " + src + "\n")
	} else {
		w.out.sb.WriteString("// This file is generated by casegen\n")
	}
	w.out.sb.WriteString("// Do not edit!\n")
}

// writeInstruction emits the case for a single instruction.
func (w *writer) writeInstruction(in *defs.Instruction) {
	w.out.Emit("")
	w.out.Block("TARGET("+in.Name+")", func() {
		if w.a.predictions[in.Name] {
			w.out.Emitf("PREDICTED(%s);", in.Name)
		}
		if !w.writeComponent(stacking.New(in), false) {
			w.out.Emit("DISPATCH();")
		}
	})
}

// writeSuper emits the case for a superinstruction: the hoisted variables,
// then each component in its own block with the next code unit fetched
// between components.
func (w *writer) writeSuper(sup *defs.Super) error {
	vars, err := w.a.hoist(sup)
	if err != nil {
		return err
	}

	effects := make([]*stacking.Effects, len(sup.Components))
	for i, in := range sup.Components {
		effects[i] = stacking.New(in).Copy()
	}
	for i := 0; i+1 < len(effects); i++ {
		if err := effects[i].Merge(effects[i+1]); err != nil {
			return err
		}
	}

	w.out.Emit("")
	w.out.Block("TARGET("+sup.Name+")", func() {
		for _, eff := range vars {
			w.out.Declare(eff, "")
		}
		exits := false
		for i, eff := range effects {
			if i > 0 {
				w.out.Emit("NEXTOPARG();")
				w.out.Emit("next_instr++;")
			}
			w.out.Block("", func() {
				exits = w.writeComponent(eff, true)
			})
		}
		if !exits {
			w.out.Emit("DISPATCH();")
		}
	})
	return nil
}

// writeComponent emits the cache reads, stack loads, body, stack
// adjustment and stores of one instruction. With hoisted set, stack
// variables are assigned rather than declared. It reports whether the body
// always exits, in which case nothing follows the body.
func (w *writer) writeComponent(e *stacking.Effects, hoisted bool) bool {
	in := e.Instr
	out := w.out

	offset := 0
	for _, c := range in.Cache {
		if !c.IsUnused() {
			out.Emitf("uint%d_t %s = read_u%d(&next_instr[%d].cache);", c.Bits(), c.Name, c.Bits(), offset)
		}
		offset += c.Size
	}

	for _, c := range e.Copies {
		if !c.Dst.IsUnused() && c.Dst.Name != c.Src.Name {
			out.Assign(c.Dst.Name, c.Src.Name)
		}
	}

	for _, peek := range e.Peeks {
		if peek.Dst.IsUnused() {
			continue
		}
		if hoisted {
			out.Assign(peek.Dst.Name, peek.Location().Expr())
		} else {
			out.Declare(peek.Dst, peek.Location().Expr())
		}
	}

	for _, eff := range in.Outputs {
		if eff.IsUnused() || in.Input(eff.Name) != nil {
			continue
		}
		var init string
		switch {
		case eff.Size != "":
			if poke := findPoke(e, eff); poke != nil {
				init = poke.Location().Slot()
			}
		case eff.Cond != "":
			init = "NULL"
		}
		switch {
		case !hoisted:
			out.Declare(eff, init)
		case init != "":
			out.Assign(eff.Name, init)
		}
	}

	blk := w.a.blocks[in]
	w.writeBody(e, blk)
	if blk.AlwaysExits(w.a.opts.ExitPrefixes) {
		return true
	}

	for _, stmt := range e.Adjustment().Statements() {
		out.Emit(stmt)
	}
	for _, poke := range e.Pokes {
		src := poke.Src
		if src.IsUnused() || storedInPlace(e, poke) {
			continue
		}
		loc := e.StoreLocation(poke)
		if loc.IsArray() {
			// Written in place through the pointer.
			continue
		}
		slot := loc.Slot()
		if src.Cond != "" {
			out.Emitf("if (%s) { %s = %s; }", src.Cond, slot, src.Name)
		} else {
			out.Assign(slot, src.Name)
		}
	}

	if offset > 0 {
		out.Emitf("next_instr += %d;", offset)
	}
	return false
}

// writeBody emits the body lines, turning each ERROR_IF into a jump that
// first drops the inputs still on the stack.
func (w *writer) writeBody(e *stacking.Effects, blk *body.Block) {
	n, terms := e.Pending()
	target := ErrorTarget(w.a.opts.ErrorPrefix, n)

	for _, stmt := range blk.Stmts {
		switch s := stmt.(type) {
		case *body.Text:
			w.out.Emit(s.Line)
		case *body.ErrorIf:
			label := target + s.Label
			comment := ""
			if s.Comment != "" {
				comment = " " + s.Comment
			}
			if len(terms) == 0 {
				w.out.Emitf("%sif (%s) goto %s;%s", s.Indent, s.Cond, label, comment)
				continue
			}
			w.out.Emitf("%sif (%s) {%s", s.Indent, s.Cond, comment)
			for _, t := range terms {
				w.out.Emitf("%s    STACK_SHRINK(%s);", s.Indent, t)
			}
			w.out.Emitf("%s    goto %s;", s.Indent, label)
			w.out.Emitf("%s}", s.Indent)
		}
	}
}

// ErrorTarget returns the label prefix an error exit uses when n inputs
// are still on the stack: "" for none, otherwise e.g. "pop_2_".
func ErrorTarget(prefix string, n int) string {
	if n == 0 {
		return ""
	}
	return prefix + strconv.Itoa(n) + "_"
}

func findPoke(e *stacking.Effects, eff *defs.StackEffect) *stacking.PokeEffect {
	for _, poke := range e.Pokes {
		if poke.Src == eff {
			return poke
		}
	}
	return nil
}

// storedInPlace reports whether poke writes an output that shares its
// name and entry cell with an input still read from the stack, so the cell
// already holds the variable.
func storedInPlace(e *stacking.Effects, poke *stacking.PokeEffect) bool {
	for _, peek := range e.Peeks {
		if peek.Dst.Name == poke.Src.Name {
			return peek.Location().Slot() == poke.Location().Slot()
		}
	}
	return false
}

// describe summarizes a component for debug logging.
func describe(e *stacking.Effects, blk *body.Block) string {
	var parts []string
	if len(e.Copies) > 0 {
		parts = append(parts, fmt.Sprintf("%d copies", len(e.Copies)))
	}
	parts = append(parts, fmt.Sprintf("%d peeks", len(e.Peeks)), fmt.Sprintf("%d pokes", len(e.Pokes)))
	if n := len(blk.ErrorIfs()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d error exits", n))
	}
	if adj := e.Adjustment(); adj.IsZero() {
		parts = append(parts, "stack unchanged")
	} else {
		parts = append(parts, strings.Join(adj.Statements(), " "))
	}
	return strings.Join(parts, ", ")
}
