package defs

import (
	"fmt"
)

// Definitions is the record set a front-end hands to the generator.
type Definitions struct {
	Instructions []InstDef   `toml:"inst" json:"inst,omitempty" yaml:"inst,omitempty"`
	Supers       []SuperDef  `toml:"super" json:"super,omitempty" yaml:"super,omitempty"`
	Families     []FamilyDef `toml:"family" json:"family,omitempty" yaml:"family,omitempty"`
}

// InstDef is the interchange form of one instruction.
type InstDef struct {
	Name    string   `toml:"name" json:"name" yaml:"name"`
	Inputs  []Effect `toml:"inputs" json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []Effect `toml:"outputs" json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Body    string   `toml:"body" json:"body" yaml:"body"`
}

// Effect is the interchange form of one input or output. A nonzero Cache
// marks an inline cache operand of that many code units; anything else is a
// stack slot.
type Effect struct {
	Name  string `toml:"name" json:"name" yaml:"name"`
	Type  string `toml:"type" json:"type,omitempty" yaml:"type,omitempty"`
	Cond  string `toml:"cond" json:"cond,omitempty" yaml:"cond,omitempty"`
	Size  string `toml:"size" json:"size,omitempty" yaml:"size,omitempty"`
	Cache int    `toml:"cache" json:"cache,omitempty" yaml:"cache,omitempty"`
}

// SuperDef names the components of a superinstruction.
type SuperDef struct {
	Name string   `toml:"name" json:"name" yaml:"name"`
	Ops  []string `toml:"ops" json:"ops,omitempty" yaml:"ops,omitempty"`
}

// FamilyDef names an instruction family; the first member is the generic
// instruction the others specialize.
type FamilyDef struct {
	Name    string   `toml:"name" json:"name" yaml:"name"`
	Members []string `toml:"members" json:"members,omitempty" yaml:"members,omitempty"`
}

// Instruction resolves the record into the model, rejecting effect lists the
// generator cannot lay out. defaultType is used for slots without a type.
func (d *InstDef) Instruction(defaultType string) (*Instruction, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("instruction without a name")
	}
	if defaultType == "" {
		defaultType = DefaultType
	}

	in := &Instruction{Name: d.Name, Body: d.Body}
	inputs := make(map[string]*StackEffect)
	caches := make(map[string]bool)

	for _, e := range d.Inputs {
		if e.Cache != 0 {
			c, err := e.cacheEffect()
			if err != nil {
				return nil, err
			}
			if !c.IsUnused() {
				if caches[c.Name] || inputs[c.Name] != nil {
					return nil, fmt.Errorf("duplicate input %q", c.Name)
				}
				caches[c.Name] = true
			}
			in.Cache = append(in.Cache, c)
			continue
		}
		se, err := e.stackEffect(defaultType)
		if err != nil {
			return nil, err
		}
		if !se.IsUnused() {
			if caches[se.Name] || inputs[se.Name] != nil {
				return nil, fmt.Errorf("duplicate input %q", se.Name)
			}
			inputs[se.Name] = se
		}
		in.Stack = append(in.Stack, se)
	}

	outputs := make(map[string]bool)
	for _, e := range d.Outputs {
		if e.Cache != 0 {
			return nil, fmt.Errorf("output %q cannot be a cache effect", e.Name)
		}
		se, err := e.stackEffect(defaultType)
		if err != nil {
			return nil, err
		}
		if !se.IsUnused() {
			if outputs[se.Name] {
				return nil, fmt.Errorf("duplicate output %q", se.Name)
			}
			if caches[se.Name] {
				return nil, fmt.Errorf("output %q shadows a cache input", se.Name)
			}
			if prev := inputs[se.Name]; prev != nil && (prev.Type != se.Type || !prev.SameShape(se)) {
				return nil, fmt.Errorf("output %q reuses an input name with a different type or shape", se.Name)
			}
			outputs[se.Name] = true
		}
		in.Outputs = append(in.Outputs, se)
	}
	return in, nil
}

func (e *Effect) stackEffect(defaultType string) (*StackEffect, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("stack effect without a name")
	}
	if e.Cond != "" && e.Size != "" {
		return nil, fmt.Errorf("stack effect %q has both a condition and a size", e.Name)
	}
	typ := e.Type
	if typ == "" {
		typ = defaultType
	}
	return &StackEffect{Name: e.Name, Type: typ, Cond: e.Cond, Size: e.Size}, nil
}

func (e *Effect) cacheEffect() (*CacheEffect, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("cache effect without a name")
	}
	if e.Type != "" || e.Cond != "" || e.Size != "" {
		return nil, fmt.Errorf("cache effect %q cannot have a type, condition or size", e.Name)
	}
	if e.Cache < 0 {
		return nil, fmt.Errorf("cache effect %q has unsupported size %d", e.Name, e.Cache)
	}
	// Skipped operands are never read, so any width is fine.
	if e.Name != Unused {
		switch e.Cache {
		case 1, 2, 4:
		default:
			return nil, fmt.Errorf("cache effect %q has unsupported size %d (want 1, 2 or 4 code units)", e.Name, e.Cache)
		}
	}
	return &CacheEffect{Name: e.Name, Size: e.Cache}, nil
}
