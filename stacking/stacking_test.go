package stacking

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/chazu/casegen/defs"
)

func scalar(name string) *defs.StackEffect {
	return &defs.StackEffect{Name: name, Type: defs.DefaultType}
}

func array(name, size string) *defs.StackEffect {
	return &defs.StackEffect{Name: name, Type: defs.DefaultType, Size: size}
}

func conditional(name, cond string) *defs.StackEffect {
	return &defs.StackEffect{Name: name, Type: defs.DefaultType, Cond: cond}
}

func inst(name string, inputs, outputs []*defs.StackEffect) *defs.Instruction {
	return &defs.Instruction{Name: name, Stack: inputs, Outputs: outputs, Body: "{\n}\n"}
}

func TestScalarOffsets(t *testing.T) {
	for n := 0; n <= 3; n++ {
		for m := 0; m <= 3; m++ {
			var inputs, outputs []*defs.StackEffect
			for i := 0; i < n; i++ {
				inputs = append(inputs, scalar(fmt.Sprintf("in%d", i)))
			}
			for i := 0; i < m; i++ {
				outputs = append(outputs, scalar(fmt.Sprintf("out%d", i)))
			}
			e := New(inst("OP", inputs, outputs))

			for i, peek := range e.Peeks {
				want := fmt.Sprintf("stack_pointer[-%d]", i+1)
				if got := peek.Location().Expr(); got != want {
					t.Errorf("%d in, %d out: peek %s = %s, want %s", n, m, peek.Dst.Name, got, want)
				}
			}
			for j, poke := range e.Pokes {
				want := fmt.Sprintf("stack_pointer[-%d]", m-j)
				if got := e.StoreLocation(poke).Slot(); got != want {
					t.Errorf("%d in, %d out: store %s = %s, want %s", n, m, poke.Src.Name, got, want)
				}
			}
			adj := e.Adjustment()
			if adj.Const != m-n || len(adj.Grow) != 0 || len(adj.Shrink) != 0 {
				t.Errorf("%d in, %d out: adjustment = %+v, want %d", n, m, adj, m-n)
			}
		}
	}
}

func TestEntryFramePokes(t *testing.T) {
	e := New(inst("OP", []*defs.StackEffect{scalar("a"), scalar("b"), scalar("c")}, []*defs.StackEffect{scalar("x"), scalar("y")}))
	if got := e.Pokes[0].Location().Slot(); got != "stack_pointer[-3]" {
		t.Errorf("x = %s, want stack_pointer[-3]", got)
	}
	if got := e.Pokes[1].Location().Slot(); got != "stack_pointer[-2]" {
		t.Errorf("y = %s, want stack_pointer[-2]", got)
	}
	if got := e.Adjustment().Statements(); !reflect.DeepEqual(got, []string{"STACK_SHRINK(1);"}) {
		t.Errorf("adjustment = %q", got)
	}
}

func TestCancellation(t *testing.T) {
	x := scalar("x")

	var o StackOffset
	o.Higher(x)
	o.Deeper(x)
	if !o.isZero() {
		t.Errorf("higher then deeper left %+v", o)
	}

	o.Deeper(x)
	o.Higher(x)
	if !o.isZero() {
		t.Errorf("deeper then higher left %+v", o)
	}

	o.Higher(x)
	o.Deeper(scalar("y"))
	if !o.isZero() {
		t.Errorf("equal shapes should cancel, left %+v", o)
	}

	o.Higher(array("args", "oparg"))
	o.Deeper(scalar("z"))
	if o.isZero() {
		t.Fatal("different shapes must not cancel")
	}
	if got := o.locate(scalar("me")).Index(); got != "-2 + oparg" {
		t.Errorf("index = %q, want %q", got, "-2 + oparg")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var o StackOffset
	o.Deeper(scalar("a"))
	c := o.Clone()
	c.Higher(scalar("b"))
	if o.isZero() || !c.isZero() {
		t.Errorf("clone shares state: o=%+v c=%+v", o, c)
	}
}

func TestArrayEffects(t *testing.T) {
	e := New(inst("BUILD_LIST", []*defs.StackEffect{array("values", "oparg")}, []*defs.StackEffect{scalar("list")}))

	loc := e.Peeks[0].Location()
	if !loc.IsArray() {
		t.Error("array input should resolve to an address")
	}
	if got := loc.Expr(); got != "stack_pointer - oparg" {
		t.Errorf("values = %q, want %q", got, "stack_pointer - oparg")
	}
	if got := e.Pokes[0].Location().Slot(); got != "stack_pointer[-oparg]" {
		t.Errorf("list entry slot = %q", got)
	}
	if got := e.StoreLocation(e.Pokes[0]).Slot(); got != "stack_pointer[-1]" {
		t.Errorf("list store = %q, want stack_pointer[-1]", got)
	}
	want := []string{"STACK_SHRINK(oparg);", "STACK_GROW(1);"}
	if got := e.Adjustment().Statements(); !reflect.DeepEqual(got, want) {
		t.Errorf("adjustment = %q, want %q", got, want)
	}
}

func TestAdjustmentShrinksBeforeGrowing(t *testing.T) {
	tests := []struct {
		adj  Adjustment
		want []string
	}{
		{Adjustment{}, nil},
		{Adjustment{Const: 2, Shrink: []string{"oparg"}}, []string{"STACK_SHRINK(oparg);", "STACK_GROW(2);"}},
		{Adjustment{Const: -1, Grow: []string{"oparg"}}, []string{"STACK_SHRINK(1);", "STACK_GROW(oparg);"}},
		{
			Adjustment{Const: 1, Shrink: []string{"oparg", "(oparg & 1 ? 1 : 0)"}, Grow: []string{"n"}},
			[]string{"STACK_SHRINK(oparg);", "STACK_SHRINK((oparg & 1 ? 1 : 0));", "STACK_GROW(1);", "STACK_GROW(n);"},
		},
	}
	for _, tc := range tests {
		if got := tc.adj.Statements(); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%+v: Statements = %q, want %q", tc.adj, got, tc.want)
		}
	}
}

func TestArrayAtTop(t *testing.T) {
	e := New(inst("OP", nil, []*defs.StackEffect{array("values", "2*oparg")}))
	if got := e.StoreLocation(e.Pokes[0]).Slot(); got != "stack_pointer - 2*oparg" {
		t.Errorf("values = %q", got)
	}
	if got := e.Pokes[0].Location().Slot(); got != "stack_pointer" {
		t.Errorf("entry address = %q, want stack_pointer", got)
	}
}

func TestConditionalOutputs(t *testing.T) {
	e := New(inst("LOAD_GLOBAL", nil, []*defs.StackEffect{conditional("null", "oparg & 1"), scalar("v")}))

	if got := e.Pokes[0].Location().Expr(); got != "oparg & 1 ? stack_pointer[0] : NULL" {
		t.Errorf("null entry = %q", got)
	}
	if got := e.Pokes[1].Location().Slot(); got != "stack_pointer[(oparg & 1 ? 1 : 0)]" {
		t.Errorf("v entry = %q", got)
	}
	if got := e.StoreLocation(e.Pokes[0]).Slot(); got != "stack_pointer[-1 - (oparg & 1 ? 1 : 0)]" {
		t.Errorf("null store = %q", got)
	}
	if got := e.StoreLocation(e.Pokes[1]).Slot(); got != "stack_pointer[-1]" {
		t.Errorf("v store = %q", got)
	}
	want := []string{"STACK_GROW(1);", "STACK_GROW((oparg & 1 ? 1 : 0));"}
	if got := e.Adjustment().Statements(); !reflect.DeepEqual(got, want) {
		t.Errorf("adjustment = %q, want %q", got, want)
	}
}

func TestConditionalInput(t *testing.T) {
	e := New(inst("CALL", []*defs.StackEffect{conditional("self", "x ? y : z"), scalar("callable")}, nil))
	want := "(x ? y : z) ? stack_pointer[-1 - ((x ? y : z) ? 1 : 0)] : NULL"
	if got := e.Peeks[1].Location().Expr(); got != want {
		t.Errorf("self = %q, want %q", got, want)
	}
}

func TestPending(t *testing.T) {
	e := New(inst("OP", []*defs.StackEffect{array("args", "oparg"), scalar("a"), conditional("b", "flag"), scalar("unused")}, nil))
	n, terms := e.Pending()
	if n != 2 {
		t.Errorf("pending cells = %d, want 2", n)
	}
	if want := []string{"(flag ? 1 : 0)", "oparg"}; !reflect.DeepEqual(terms, want) {
		t.Errorf("pending terms = %q, want %q", terms, want)
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		effs []*defs.StackEffect
		want string
	}{
		{nil, "0"},
		{[]*defs.StackEffect{scalar("a"), scalar("b")}, "2"},
		{[]*defs.StackEffect{array("args", "oparg")}, "oparg"},
		{[]*defs.StackEffect{scalar("a"), array("args", "oparg - 1")}, "1 + (oparg - 1)"},
		{[]*defs.StackEffect{conditional("n", "oparg & 1"), scalar("v")}, "1 + (oparg & 1 ? 1 : 0)"},
	}
	for _, tc := range tests {
		if got := Count(tc.effs); got != tc.want {
			t.Errorf("Count = %q, want %q", got, tc.want)
		}
	}
}

func TestParenthesize(t *testing.T) {
	tests := map[string]string{
		"oparg":       "oparg",
		"2*oparg":     "2*oparg",
		"oparg * 2":   "oparg * 2",
		"oparg - 1":   "(oparg - 1)",
		"(oparg>>1)":  "((oparg>>1))",
		"oparg & 0xF": "(oparg & 0xF)",
	}
	for in, want := range tests {
		if got := maybeParenthesize(in); got != want {
			t.Errorf("maybeParenthesize(%q) = %q, want %q", in, got, want)
		}
	}
	if got := parenthesizeCond("oparg & 1"); got != "oparg & 1" {
		t.Errorf("parenthesizeCond = %q", got)
	}
	if got := parenthesizeCond("a ? b : c"); got != "(a ? b : c)" {
		t.Errorf("parenthesizeCond = %q", got)
	}
}

func TestMergeLoadAdd(t *testing.T) {
	load := inst("LOAD", nil, []*defs.StackEffect{scalar("v")})
	add := inst("ADD", []*defs.StackEffect{scalar("other"), scalar("v")}, []*defs.StackEffect{scalar("sum")})

	p := New(load).Copy()
	f := New(add).Copy()
	if err := p.Merge(f); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(f.Copies) != 1 || f.Copies[0].Src.Name != "v" || f.Copies[0].Dst.Name != "v" {
		t.Fatalf("copies = %+v, want v -> v", f.Copies)
	}
	if len(p.Pokes) != 0 {
		t.Errorf("producer still pokes %d values", len(p.Pokes))
	}
	if len(f.Peeks) != 1 || f.Peeks[0].Dst.Name != "other" {
		t.Fatalf("follower peeks = %+v, want only other", f.Peeks)
	}
	if got := f.Peeks[0].Location().Expr(); got != "stack_pointer[-1]" {
		t.Errorf("other = %s, want stack_pointer[-1]", got)
	}
	if got := f.StoreLocation(f.Pokes[0]).Slot(); got != "stack_pointer[-1]" {
		t.Errorf("sum store = %s, want stack_pointer[-1]", got)
	}
	if !p.Adjustment().IsZero() || !f.Adjustment().IsZero() {
		t.Errorf("adjustments = %+v, %+v, want none", p.Adjustment(), f.Adjustment())
	}
	if !p.Frozen() || f.Frozen() {
		t.Errorf("frozen = %v, %v, want producer frozen only", p.Frozen(), f.Frozen())
	}
}

func TestMergeIsSingleUse(t *testing.T) {
	load := inst("LOAD", nil, []*defs.StackEffect{scalar("v")})
	pop := inst("POP", []*defs.StackEffect{scalar("v")}, nil)

	p := New(load).Copy()
	if err := p.Merge(New(pop).Copy()); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second := New(pop).Copy()
	if err := p.Merge(second); !errors.Is(err, ErrFrozen) {
		t.Fatalf("second merge error = %v, want ErrFrozen", err)
	}
	if len(second.Copies) != 0 || len(second.Peeks) != 1 {
		t.Errorf("second consumer was modified: %+v", second)
	}

	if err := New(load).Merge(New(pop).Copy()); !errors.Is(err, ErrFrozen) {
		t.Errorf("merging uncopied effects: err = %v, want ErrFrozen", err)
	}
	if err := New(load).Copy().Merge(New(pop)); !errors.Is(err, ErrFrozen) {
		t.Errorf("merging into uncopied effects: err = %v, want ErrFrozen", err)
	}
}

func TestMergeSeveral(t *testing.T) {
	p := New(inst("A", nil, []*defs.StackEffect{scalar("a"), scalar("b")})).Copy()
	f := New(inst("B", []*defs.StackEffect{scalar("x"), scalar("y")}, nil)).Copy()
	if err := p.Merge(f); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(f.Copies) != 2 {
		t.Fatalf("copies = %+v, want two", f.Copies)
	}
	if f.Copies[0].Src.Name != "b" || f.Copies[0].Dst.Name != "y" ||
		f.Copies[1].Src.Name != "a" || f.Copies[1].Dst.Name != "x" {
		t.Errorf("copies = %+v, want b->y, a->x", f.Copies)
	}
	if len(p.Pokes) != 0 || len(f.Peeks) != 0 {
		t.Error("all cells should be elided")
	}
}

func TestMergePartial(t *testing.T) {
	p := New(inst("A", nil, []*defs.StackEffect{scalar("a"), scalar("b")})).Copy()
	f := New(inst("B", []*defs.StackEffect{scalar("y")}, []*defs.StackEffect{scalar("r")})).Copy()
	if err := p.Merge(f); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(p.Pokes) != 1 || p.Pokes[0].Src.Name != "a" {
		t.Fatalf("producer pokes = %+v, want a", p.Pokes)
	}
	if got := p.StoreLocation(p.Pokes[0]).Slot(); got != "stack_pointer[-1]" {
		t.Errorf("a store = %s", got)
	}
	if p.Adjustment().Const != 1 || f.Adjustment().Const != 1 {
		t.Errorf("adjustments = %+v, %+v, want +1 each", p.Adjustment(), f.Adjustment())
	}
	if got := f.StoreLocation(f.Pokes[0]).Slot(); got != "stack_pointer[-1]" {
		t.Errorf("r store = %s", got)
	}
}

func TestMergeStopsAtMismatch(t *testing.T) {
	tests := []struct {
		name string
		out  *defs.StackEffect
		in   *defs.StackEffect
	}{
		{"type", &defs.StackEffect{Name: "x", Type: "int"}, scalar("x")},
		{"unused source", scalar("unused"), scalar("x")},
		{"array", array("xs", "oparg"), array("xs", "oparg")},
		{"conditional", conditional("x", "oparg"), conditional("x", "oparg")},
	}
	for _, tc := range tests {
		p := New(inst("A", nil, []*defs.StackEffect{tc.out})).Copy()
		f := New(inst("B", []*defs.StackEffect{tc.in}, nil)).Copy()
		if err := p.Merge(f); err != nil {
			t.Errorf("%s: Merge: %v", tc.name, err)
			continue
		}
		if len(f.Copies) != 0 || len(p.Pokes) != 1 || len(f.Peeks) != 1 {
			t.Errorf("%s: cells were fused", tc.name)
		}
	}
}

func TestMergeUnusedDestination(t *testing.T) {
	p := New(inst("A", nil, []*defs.StackEffect{scalar("x")})).Copy()
	f := New(inst("B", []*defs.StackEffect{scalar("unused")}, []*defs.StackEffect{scalar("x")})).Copy()
	if err := p.Merge(f); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(f.Copies) != 1 {
		t.Errorf("copies = %+v, want one", f.Copies)
	}
}

func TestMergeRejectsAliasing(t *testing.T) {
	p := New(inst("A", nil, []*defs.StackEffect{scalar("x")})).Copy()
	f := New(inst("B", []*defs.StackEffect{scalar("y")}, []*defs.StackEffect{scalar("x")})).Copy()

	err := p.Merge(f)
	var alias *AliasError
	if !errors.As(err, &alias) {
		t.Fatalf("Merge error = %v, want *AliasError", err)
	}
	if alias.Producer != "A" || alias.Consumer != "B" || !reflect.DeepEqual(alias.Names, []string{"x"}) {
		t.Errorf("alias = %+v", alias)
	}
	if want := "fusing A into B aliases x"; err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestMergeRejectsAliasedPeek(t *testing.T) {
	p := New(inst("A", nil, []*defs.StackEffect{scalar("x")})).Copy()
	f := New(inst("B", []*defs.StackEffect{scalar("x"), scalar("y")}, nil)).Copy()

	var alias *AliasError
	if err := p.Merge(f); !errors.As(err, &alias) {
		t.Fatalf("Merge error = %v, want *AliasError", err)
	}
}
