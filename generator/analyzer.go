package generator

import (
	"errors"
	"fmt"

	"github.com/chazu/casegen/body"
	"github.com/chazu/casegen/defs"
)

// Error identifies the instruction, superinstruction or family a failure
// belongs to.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Analyzer resolves a record set into the model the writers consume:
// instructions by name, parsed bodies, superinstructions, families and
// the set of prediction targets. Every problem is recorded; nothing is
// emitted from a record set with errors.
type Analyzer struct {
	opts Options

	instrs      []*defs.Instruction
	index       map[string]*defs.Instruction
	blocks      map[*defs.Instruction]*body.Block
	supers      []*defs.Super
	families    []*defs.Family
	familyOf    map[string]string
	predictions map[string]bool

	errors   []error
	warnings []string
}

// NewAnalyzer creates an analyzer for the given options.
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{
		opts:        opts.withDefaults(),
		index:       make(map[string]*defs.Instruction),
		blocks:      make(map[*defs.Instruction]*body.Block),
		familyOf:    make(map[string]string),
		predictions: make(map[string]bool),
	}
}

// errorf records a failure attributed to name.
func (a *Analyzer) errorf(name string, format string, args ...interface{}) {
	a.errors = append(a.errors, &Error{Name: name, Err: fmt.Errorf(format, args...)})
}

// fail records err attributed to name.
func (a *Analyzer) fail(name string, err error) {
	a.errors = append(a.errors, &Error{Name: name, Err: err})
}

func (a *Analyzer) warnf(format string, args ...interface{}) {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// Err returns every recorded failure joined, or nil.
func (a *Analyzer) Err() error {
	return errors.Join(a.errors...)
}

// Warnings returns the recorded warnings in the order they were found.
func (a *Analyzer) Warnings() []string {
	return a.warnings
}

// Analyze resolves d. Call Err afterwards to learn whether it succeeded.
func (a *Analyzer) Analyze(d *defs.Definitions) {
	taken := make(map[string]bool)
	claim := func(name string) bool {
		if taken[name] {
			a.errorf(name, "duplicate definition")
			return false
		}
		taken[name] = true
		return true
	}

	for i := range d.Instructions {
		rec := &d.Instructions[i]
		name := rec.Name
		if name == "" {
			name = fmt.Sprintf("inst #%d", i+1)
		}
		in, err := rec.Instruction(a.opts.DefaultType)
		if err != nil {
			a.fail(name, err)
			continue
		}
		if !claim(in.Name) {
			continue
		}
		blk, err := body.Parse(in.Body)
		if err != nil {
			a.fail(in.Name, err)
			continue
		}
		if body.Mentions(in.Body, "stack_pointer") {
			a.warnf("%s: body accesses stack_pointer directly, bypassing its declared stack effect", in.Name)
		}
		a.instrs = append(a.instrs, in)
		a.index[in.Name] = in
		a.blocks[in] = blk
	}

	a.findPredictions()

	for _, rec := range d.Supers {
		if !claim(rec.Name) {
			continue
		}
		a.analyzeSuper(rec)
	}
	for _, rec := range d.Families {
		a.analyzeFamily(rec)
	}
}

// findPredictions collects the instructions other bodies transfer to.
func (a *Analyzer) findPredictions() {
	for _, in := range a.instrs {
		for _, target := range body.Targets(in.Body) {
			if a.index[target] == nil {
				a.warnf("%s: prediction target %s is not an instruction", in.Name, target)
				continue
			}
			a.predictions[target] = true
		}
	}
}

func (a *Analyzer) analyzeSuper(rec defs.SuperDef) {
	if len(rec.Ops) < 2 {
		a.errorf(rec.Name, "superinstruction needs at least two components, got %d", len(rec.Ops))
		return
	}
	sup := &defs.Super{Name: rec.Name}
	ok := true
	for _, op := range rec.Ops {
		in := a.index[op]
		if in == nil {
			a.errorf(rec.Name, "unknown instruction %s", op)
			ok = false
			continue
		}
		sup.Components = append(sup.Components, in)
	}
	if ok {
		a.supers = append(a.supers, sup)
	}
}

// analyzeFamily checks that every member exists and shares the stack and
// cache layout of the first member.
func (a *Analyzer) analyzeFamily(rec defs.FamilyDef) {
	fam := &defs.Family{Name: rec.Name}
	for _, m := range rec.Members {
		in := a.index[m]
		if in == nil {
			a.errorf(rec.Name, "unknown family member %s", m)
			continue
		}
		if prev, ok := a.familyOf[m]; ok {
			a.errorf(rec.Name, "%s already belongs to family %s", m, prev)
			continue
		}
		a.familyOf[m] = rec.Name
		fam.Members = append(fam.Members, in)
	}
	if len(fam.Members) == 0 {
		a.families = append(a.families, fam)
		return
	}

	head := fam.Members[0]
	for _, m := range fam.Members[1:] {
		if len(m.Stack) != len(head.Stack) {
			a.errorf(rec.Name, "%s pops %d values, %s pops %d", m.Name, len(m.Stack), head.Name, len(head.Stack))
		}
		if len(m.Outputs) != len(head.Outputs) {
			a.errorf(rec.Name, "%s pushes %d values, %s pushes %d", m.Name, len(m.Outputs), head.Name, len(head.Outputs))
		}
		if m.CacheWords() != head.CacheWords() {
			a.errorf(rec.Name, "%s uses %d cache entries, %s uses %d", m.Name, m.CacheWords(), head.Name, head.CacheWords())
		}
	}
	a.families = append(a.families, fam)
}

// hoist returns the named stack variables of every component of sup, in
// first-use order, declared once for the whole superinstruction.
func (a *Analyzer) hoist(sup *defs.Super) ([]*defs.StackEffect, error) {
	var vars []*defs.StackEffect
	seen := make(map[string]*defs.StackEffect)
	var errs []error
	add := func(owner string, eff *defs.StackEffect) {
		if eff.IsUnused() {
			return
		}
		prev, ok := seen[eff.Name]
		if !ok {
			seen[eff.Name] = eff
			vars = append(vars, eff)
			return
		}
		if declType(prev) != declType(eff) {
			errs = append(errs, fmt.Errorf("%s declares %s as %q, earlier component as %q", owner, eff.Name, declType(eff), declType(prev)))
		}
	}
	for _, in := range sup.Components {
		for _, eff := range in.Stack {
			add(in.Name, eff)
		}
		for _, eff := range in.Outputs {
			add(in.Name, eff)
		}
	}
	return vars, errors.Join(errs...)
}
