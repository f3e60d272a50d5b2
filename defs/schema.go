package defs

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Validate checks the record set against the embedded CUE schema: required
// fields, identifier syntax and positive cache sizes. Semantic checks happen
// when records are resolved.
func Validate(d *Definitions) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("defs: compile schema: %w", err)
	}

	v := ctx.Encode(d)
	if err := v.Err(); err != nil {
		return fmt.Errorf("defs: encode records: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Definitions"))
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("defs: invalid records: %s", cueerrors.Details(err, nil))
	}
	return nil
}
