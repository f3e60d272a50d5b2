package generator

import (
	"errors"

	"github.com/tliron/commonlog"

	"github.com/chazu/casegen/defs"
	"github.com/chazu/casegen/metadata"
	"github.com/chazu/casegen/stacking"
)

var log = commonlog.GetLogger("casegen.generator")

// Result is a generated file and what went into it.
type Result struct {
	Code     string
	Metadata *metadata.Table
	Warnings []string

	Instructions int
	Supers       int
	Families     int
}

// Generate compiles d into dispatch cases: every instruction in input
// order, then every superinstruction. Any failure aborts the whole file;
// the returned error joins one *Error per offending definition.
func Generate(d *defs.Definitions, opts Options) (*Result, error) {
	if opts.Indent < 0 {
		return nil, errors.New("generator: negative indent")
	}

	a := NewAnalyzer(opts)
	a.Analyze(d)
	if err := a.Err(); err != nil {
		return nil, err
	}

	w := &writer{a: a, out: NewFormatter(a.opts.Indent)}
	w.writeHeader()
	for _, in := range a.instrs {
		log.Debugf("%s: %s", in.Name, describe(stacking.New(in), a.blocks[in]))
		w.writeInstruction(in)
	}
	for _, sup := range a.supers {
		log.Debugf("%s: %d components", sup.Name, len(sup.Components))
		if err := w.writeSuper(sup); err != nil {
			a.fail(sup.Name, err)
		}
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Code:         w.out.String(),
		Metadata:     a.table(),
		Warnings:     a.Warnings(),
		Instructions: len(a.instrs),
		Supers:       len(a.supers),
		Families:     len(a.families),
	}, nil
}

// table summarizes the generated opcodes.
func (a *Analyzer) table() *metadata.Table {
	t := &metadata.Table{Version: metadata.Version, Source: a.opts.Source}
	for _, in := range a.instrs {
		t.Opcodes = append(t.Opcodes, metadata.Opcode{
			Name:       in.Name,
			Kind:       metadata.KindInst,
			Popped:     stacking.Count(in.Stack),
			Pushed:     stacking.Count(in.Outputs),
			CacheWords: in.CacheWords(),
			Predicted:  a.predictions[in.Name],
			Family:     a.familyOf[in.Name],
		})
	}
	for _, sup := range a.supers {
		op := metadata.Opcode{Name: sup.Name, Kind: metadata.KindSuper}
		for _, c := range sup.Components {
			op.Components = append(op.Components, c.Name)
		}
		t.Opcodes = append(t.Opcodes, op)
	}
	return t
}
